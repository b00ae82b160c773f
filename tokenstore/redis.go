package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig configures a [Redis] store.
//
// RedisConfig instances are intended to be configured during initialization
// and then treated as immutable.
type RedisConfig struct {
	// Prefix namespaces the two slot keys and the event channel. Defaults
	// to "tabsession".
	Prefix string
	// Logger receives subscriber diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Redis persists the token slots in a shared Redis instance and propagates
// mutation events over a pub/sub channel, so every store attached to the
// same prefix — in this process or another — observes every mutation.
// It implements [Store]; one Redis value stands in for one tab.
type Redis struct {
	client  *redis.Client
	prefix  string
	channel string
	origin  string
	log     zerolog.Logger

	mu       sync.Mutex
	watchers map[uint64]WatchFunc
	nextID   uint64
	closed   bool

	sub  *redis.PubSub
	done chan struct{}
	wg   sync.WaitGroup
}

type wireEvent struct {
	Slot    string `json:"slot"`
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
	Origin  string `json:"origin"`
}

// NewRedis attaches a store to client under cfg.Prefix and starts the
// event subscriber. The caller owns the client; Close releases only the
// subscription.
func NewRedis(client *redis.Client, cfg RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "tabsession"
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	r := &Redis{
		client:   client,
		prefix:   prefix,
		channel:  prefix + ":events",
		origin:   uuid.NewString(),
		log:      logger,
		watchers: make(map[uint64]WatchFunc),
		done:     make(chan struct{}),
	}

	r.sub = client.Subscribe(context.Background(), r.channel)
	// Force the SUBSCRIBE round-trip so no event published after NewRedis
	// returns can be missed.
	if _, err := r.sub.Receive(context.Background()); err != nil {
		_ = r.sub.Close()
		return nil, err
	}

	r.wg.Add(1)
	go r.receive()

	return r, nil
}

func (r *Redis) receive() {
	defer r.wg.Done()
	ch := r.sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				r.log.Warn().Err(err).Msg("tokenstore: dropping malformed event payload")
				continue
			}
			if !ValidSlot(Slot(we.Slot)) {
				continue
			}
			ev := Event{Slot: Slot(we.Slot), Value: we.Value, Present: we.Present, Origin: we.Origin}
			r.mu.Lock()
			fns := make([]WatchFunc, 0, len(r.watchers))
			for _, fn := range r.watchers {
				fns = append(fns, fn)
			}
			r.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
		case <-r.done:
			return
		}
	}
}

// Origin returns the store's writer identity.
func (r *Redis) Origin() string { return r.origin }

func (r *Redis) key(slot Slot) string {
	return r.prefix + ":" + string(slot)
}

// Get reads a slot from Redis.
func (r *Redis) Get(ctx context.Context, slot Slot) (string, bool, error) {
	if !ValidSlot(slot) {
		return "", false, ErrUnknownSlot
	}
	if r.isClosed() {
		return "", false, ErrStoreClosed
	}
	v, err := r.client.Get(ctx, r.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set writes a slot and publishes the change event. The write commits
// before the publish, so any reader woken by the event sees the new value.
func (r *Redis) Set(ctx context.Context, slot Slot, value string) error {
	if !ValidSlot(slot) {
		return ErrUnknownSlot
	}
	if r.isClosed() {
		return ErrStoreClosed
	}
	if err := r.client.Set(ctx, r.key(slot), value, 0).Err(); err != nil {
		return err
	}
	return r.publish(ctx, wireEvent{Slot: string(slot), Value: value, Present: true, Origin: r.origin})
}

// Clear removes a slot and publishes the change event.
func (r *Redis) Clear(ctx context.Context, slot Slot) error {
	if !ValidSlot(slot) {
		return ErrUnknownSlot
	}
	if r.isClosed() {
		return ErrStoreClosed
	}
	if err := r.client.Del(ctx, r.key(slot)).Err(); err != nil {
		return err
	}
	return r.publish(ctx, wireEvent{Slot: string(slot), Present: false, Origin: r.origin})
}

func (r *Redis) publish(ctx context.Context, we wireEvent) error {
	payload, err := json.Marshal(we)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Watch registers fn for every event on the shared channel, including this
// store's own writes. The returned cancel is idempotent.
func (r *Redis) Watch(fn WatchFunc) (func(), error) {
	if fn == nil {
		return func() {}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrStoreClosed
	}
	id := r.nextID
	r.nextID++
	r.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers, id)
			r.mu.Unlock()
		})
	}, nil
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close stops the subscriber and drops all watchers. It does not close the
// underlying client. Close is idempotent.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.watchers = make(map[uint64]WatchFunc)
	r.mu.Unlock()

	close(r.done)
	err := r.sub.Close()
	r.wg.Wait()
	return err
}
