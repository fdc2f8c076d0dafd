// Package proxy ties the auth client and the world session together:
// login, realm selection, world session and keepalive.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/hermesgo/internal/addoncheck"
	"github.com/udisondev/hermesgo/internal/auth"
	"github.com/udisondev/hermesgo/internal/config"
	"github.com/udisondev/hermesgo/internal/version"
	"github.com/udisondev/hermesgo/internal/world"
)

// ErrNoRealm is returned when no online realm matches the configured name.
var ErrNoRealm = errors.New("no matching online realm")

const (
	maxReconnects  = 3
	reconnectDelay = 2 * time.Second
)

// Option is a functional option for Proxy configuration.
type Option func(*Proxy)

// WithDialer replaces the dialer used for auth and world connections.
func WithDialer(d *net.Dialer) Option {
	return func(p *Proxy) {
		p.dialer = d
	}
}

// WithReconnectDelay replaces the pause between world reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(p *Proxy) {
		p.reconnectDelay = d
	}
}

// Proxy logs one account into a legacy realm and keeps the session alive.
type Proxy struct {
	cfg   config.Proxy
	info  version.Info
	fixes *addoncheck.FixTable
	store *auth.SessionStore

	dialer         *net.Dialer
	reconnectDelay time.Duration

	// onSession вызывается для каждой новой world сессии до Run
	onSession func(*world.Session) error
}

// New validates cfg and loads the addon fix tables.
func New(cfg config.Proxy, opts ...Option) (*Proxy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	info, err := cfg.Info()
	if err != nil {
		return nil, err
	}

	fixes, err := addoncheck.DefaultFixes()
	if err != nil {
		return nil, fmt.Errorf("loading built-in addon fixes: %w", err)
	}
	if cfg.AddonFixes != "" {
		extra, err := addoncheck.LoadFixes(cfg.AddonFixes)
		if err != nil {
			return nil, err
		}
		fixes = fixes.Merge(extra)
	}

	p := &Proxy{
		cfg:            cfg,
		info:           info,
		fixes:          fixes,
		store:          auth.NewSessionStore(),
		dialer:         &net.Dialer{Timeout: cfg.DialTimeout},
		reconnectDelay: reconnectDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// OnSession registers a hook run for every world session before its
// receive loop starts; use it to add frame handlers.
func (p *Proxy) OnSession(fn func(*world.Session) error) {
	p.onSession = fn
}

// Sessions returns the store of session keys kept for reconnects.
func (p *Proxy) Sessions() *auth.SessionStore {
	return p.store
}

func (p *Proxy) clientConfig() auth.ClientConfig {
	return auth.ClientConfig{
		Info:     p.info,
		Locale:   p.cfg.Locale,
		Platform: p.cfg.Platform,
		OS:       p.cfg.OS,
	}
}

// Login authenticates against the auth server and fetches the realm list.
// A session key younger than SessionTTL is reused through the reconnect
// exchange; if that fails a full logon follows.
func (p *Proxy) Login(ctx context.Context) (auth.SessionKey, []auth.Realm, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.HandshakeTimeout)
	defer cancel()

	p.store.CleanExpired(p.cfg.SessionTTL)
	if key, ok := p.store.Load(p.cfg.Username, p.cfg.SessionTTL); ok {
		realms, err := p.reconnect(ctx, key)
		if err == nil {
			return key, realms, nil
		}
		if ctx.Err() != nil {
			return auth.SessionKey{}, nil, err
		}
		slog.Warn("auth reconnect failed, logging in again", "user", p.cfg.Username, "err", err)
		p.store.Remove(p.cfg.Username)
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", p.cfg.AuthAddress())
	if err != nil {
		return auth.SessionKey{}, nil, fmt.Errorf("dialing auth server: %w", err)
	}
	defer conn.Close()

	c := auth.NewClient(conn, p.clientConfig())
	creds := auth.Credentials{
		Username:     strings.ToUpper(p.cfg.Username),
		PasswordHash: auth.HashPassword(p.cfg.Username, p.cfg.Password),
	}
	key, err := c.Authenticate(ctx, creds)
	if err != nil {
		return auth.SessionKey{}, nil, fmt.Errorf("authenticating: %w", err)
	}
	p.store.Store(p.cfg.Username, key)
	slog.Debug("session key stored", "user", p.cfg.Username, "sessions", p.store.Count())

	realms, err := c.RequestRealmList(ctx)
	if err != nil {
		return auth.SessionKey{}, nil, fmt.Errorf("requesting realm list: %w", err)
	}
	return key, realms, nil
}

func (p *Proxy) reconnect(ctx context.Context, key auth.SessionKey) ([]auth.Realm, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.cfg.AuthAddress())
	if err != nil {
		return nil, fmt.Errorf("dialing auth server: %w", err)
	}
	defer conn.Close()

	c := auth.NewClient(conn, p.clientConfig())
	if err := c.Reconnect(ctx, strings.ToUpper(p.cfg.Username), key); err != nil {
		return nil, fmt.Errorf("reconnecting: %w", err)
	}
	realms, err := c.RequestRealmList(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting realm list: %w", err)
	}
	return realms, nil
}

// PickRealm returns the online realm named name (case-insensitive), or the
// first online realm when name is empty.
func PickRealm(realms []auth.Realm, name string) (auth.Realm, error) {
	for _, r := range realms {
		if !r.Online() {
			continue
		}
		if name == "" || strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	if name == "" {
		return auth.Realm{}, ErrNoRealm
	}
	return auth.Realm{}, fmt.Errorf("realm %q: %w", name, ErrNoRealm)
}

// Run logs in and keeps a world session until ctx is done. Lost
// connections are retried a few times; refusals are returned at once.
func (p *Proxy) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !retryable(err) || attempt == maxReconnects {
			return err
		}

		slog.Warn("world session lost, reconnecting", "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.reconnectDelay):
		}
	}
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var rejected *auth.RejectedError
	if errors.As(err, &rejected) || world.IsRefused(err) {
		return false
	}
	return !errors.Is(err, ErrNoRealm)
}

// session runs one login and one world session.
func (p *Proxy) session(ctx context.Context) error {
	key, realms, err := p.Login(ctx)
	if err != nil {
		return err
	}
	realm, err := PickRealm(realms, p.cfg.Realm)
	if err != nil {
		return err
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", realm.Address)
	if err != nil {
		return fmt.Errorf("dialing realm %s: %w", realm.Name, err)
	}
	slog.Info("connected to realm", "realm", realm.Name, "remote", realm.Address)

	ws, err := world.NewSession(conn, world.Config{
		Info:     p.info,
		Username: p.cfg.Username,
		Key:      key,
		ServerID: uint32(realm.ID),
		RealmID:  uint32(realm.ID),
		Fixes:    p.fixes,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer ws.Close()

	if p.onSession != nil {
		if err := p.onSession(ws); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.Run(gctx)
	})
	g.Go(func() error {
		return p.keepalive(gctx, ws)
	})
	return g.Wait()
}

// keepalive pings the world server once authenticated.
func (p *Proxy) keepalive(ctx context.Context, ws *world.Session) error {
	hctx, cancel := context.WithTimeout(ctx, p.cfg.HandshakeTimeout)
	err := ws.WaitAuthenticated(hctx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("world handshake: %w", err)
	}

	ticker := time.NewTicker(p.cfg.KeepaliveInterval)
	defer ticker.Stop()

	var latency time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := ws.Ping(latency); err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
			latency = time.Since(start)
		}
	}
}
