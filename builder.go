package tabsession

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/rentdesk/tabsession/roleroute"
	"github.com/rentdesk/tabsession/tokenstore"
)

// Builder assembles a [Provider] from a config and injected collaborators.
// A token store and an identity resolver are required; everything else has
// a working default. Build may be called once per Builder.
type Builder struct {
	config   Config
	store    tokenstore.Store
	identity IdentityResolver
	creds    CredentialService
	nav      Navigator
	notifier Notifier
	logger   *zerolog.Logger

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenStore injects the token persistence substrate. Required.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.store = store
	return b
}

// WithIdentity injects the identity-resolution collaborator. Required.
func (b *Builder) WithIdentity(resolver IdentityResolver) *Builder {
	b.identity = resolver
	return b
}

// WithCredentials injects the credential-exchange collaborator. Without
// it, Login is unavailable, logout skips the remote revoke, and expired
// tokens are never renewed.
func (b *Builder) WithCredentials(creds CredentialService) *Builder {
	b.creds = creds
	return b
}

// WithNavigator injects the host application's routing integration.
// Defaults to a no-op.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.nav = nav
	return b
}

// WithNotifier injects the outcome display sink. Defaults to a no-op.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger injects the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// Build validates the configuration and collaborators and assembles the
// Provider. The Provider is inert until [Provider.Mount] is called.
func (b *Builder) Build() (*Provider, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("token store required")
	}
	if b.identity == nil {
		return nil, errors.New("identity resolver required")
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}
	nav := b.nav
	if nav == nil {
		nav = NoOpNavigator{}
	}

	metrics := newMetrics(cfg.Metrics)
	ctrl := newController(cfg.Session, b.store, b.identity, b.creds, logger, metrics)

	p := &Provider{
		ctrl:    ctrl,
		router:  roleroute.NewRouter(cfg.Router),
		syncer:  newSynchronizer(cfg.Sync, ctrl, b.store, logger),
		notify:  newNotifyDispatcher(cfg.Notify, b.notifier, metrics),
		nav:     nav,
		log:     logger.With().Str("component", "provider").Logger(),
		metrics: metrics,
	}

	b.built = true
	return p, nil
}
