// Package identity provides the default HTTP implementation of the
// identity-resolution and credential-exchange collaborators, speaking a
// small JSON protocol to an external identity service:
//
//	GET  /auth/me       resolve the bearer token to a user record
//	POST /auth/login    exchange credentials for a token pair
//	POST /auth/refresh  exchange a refresh token for a new pair
//	POST /auth/logout   revoke the bearer token
//
// The client classifies failures for the session controller: 401 and 403
// map to tabsession.ErrUnauthorized, everything else (transport errors,
// 5xx, unexpected bodies) to tabsession.ErrIdentityUnavailable.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentdesk/tabsession"
)

// Config configures a [Client].
type Config struct {
	// BaseURL is the identity service root, e.g. "https://api.example.com".
	BaseURL string
	// Timeout bounds each request when the supplied context carries no
	// earlier deadline. Defaults to 15 seconds.
	Timeout time.Duration
	// HTTPClient overrides the transport. Defaults to a dedicated client
	// with Timeout applied.
	HTTPClient *http.Client
	// Logger receives request diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Client implements [tabsession.IdentityResolver] and
// [tabsession.CredentialService] over HTTP.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("identity: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{base: base, http: hc, log: logger.With().Str("component", "identity").Logger()}, nil
}

// ResolveIdentity fetches the user record behind accessToken.
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (*tabsession.UserRecord, error) {
	var user tabsession.UserRecord
	if err := c.do(ctx, http.MethodGet, "/auth/me", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges a username/password pair for tokens. A 401 maps to
// [tabsession.ErrInvalidCredentials] rather than ErrUnauthorized, since no
// token was being presented.
func (c *Client) Login(ctx context.Context, username, password string) (tabsession.TokenPair, error) {
	body := map[string]string{"username": username, "password": password}
	var pair tabsession.TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &pair)
	if errors.Is(err, tabsession.ErrUnauthorized) {
		return tabsession.TokenPair{}, tabsession.ErrInvalidCredentials
	}
	if err != nil {
		return tabsession.TokenPair{}, err
	}
	return pair, nil
}

// Renew exchanges a refresh token for a new pair.
func (c *Client) Renew(ctx context.Context, refreshToken string) (tabsession.TokenPair, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var pair tabsession.TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &pair); err != nil {
		return tabsession.TokenPair{}, err
	}
	return pair, nil
}

// Revoke invalidates accessToken server-side.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Join(tabsession.ErrIdentityUnavailable, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return errors.Join(tabsession.ErrIdentityUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if tabID := tabsession.TabIDFromContext(ctx); tabID != "" {
		req.Header.Set("X-Tab-ID", tabID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("identity request failed")
		return errors.Join(tabsession.ErrIdentityUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return tabsession.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("identity request rejected")
		return fmt.Errorf("%w: %s returned %d", tabsession.ErrIdentityUnavailable, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(tabsession.ErrIdentityUnavailable, err)
	}
	return nil
}
