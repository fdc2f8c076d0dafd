// Package world runs the client side of a legacy world connection: the
// session handshake, header encryption, opcode translation and the addon
// check side channel.
package world

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/hermesgo/internal/addoncheck"
	"github.com/udisondev/hermesgo/internal/auth"
	"github.com/udisondev/hermesgo/internal/crypto"
	"github.com/udisondev/hermesgo/internal/opcode"
	"github.com/udisondev/hermesgo/internal/protocol"
	"github.com/udisondev/hermesgo/internal/version"
)

// Config describes the account and realm a session logs into.
type Config struct {
	Info     version.Info
	Username string
	Key      auth.SessionKey

	// ServerID is the realm index sent in the auth session.
	ServerID uint32
	RealmID  uint32

	// Addons reported in the auth session; nil means DefaultAddons.
	Addons []Addon
	Fixes  *addoncheck.FixTable
}

// Option is a functional option for Session configuration.
type Option func(*Session)

// WithRandom replaces the source of the client seed.
func WithRandom(r io.Reader) Option {
	return func(s *Session) {
		s.random = r
	}
}

// WithTable replaces the opcode table.
func WithTable(t *opcode.Table) Option {
	return func(s *Session) {
		s.table = t
	}
}

// Session is one world connection.
//
// Run must be called exactly once. SendFrame, SendFrameAfter, Ping and Close
// are safe for concurrent use.
type Session struct {
	id     uuid.UUID
	conn   io.ReadWriteCloser
	cfg    Config
	table  *opcode.Table
	framer *protocol.Framer
	disp   *protocol.Dispatcher
	random io.Reader
	log    *slog.Logger

	// создаётся при первом addon check, читается из любых горутин
	addon atomic.Pointer[addoncheck.Protocol]

	delayed delayedQueue
	pingSeq atomic.Uint32

	authDone chan struct{}
	authOnce sync.Once
	authErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an established connection to a world server.
func NewSession(conn io.ReadWriteCloser, cfg Config, opts ...Option) (*Session, error) {
	if cfg.Key.IsZero() {
		return nil, fmt.Errorf("world session for %s: empty session key", cfg.Username)
	}

	s := &Session{
		id:       uuid.New(),
		conn:     conn,
		cfg:      cfg,
		table:    opcode.Default(),
		random:   rand.Reader,
		authDone: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.cfg.Addons == nil {
		s.cfg.Addons = DefaultAddons()
	}

	s.log = slog.Default().With("session", s.id.String())
	s.framer = protocol.NewFramer(conn, cfg.Info, crypto.RoleClient)
	s.disp = protocol.NewDispatcher(s.table, cfg.Info.Build)

	builtins := []struct {
		op opcode.Opcode
		h  protocol.HandlerFunc
	}{
		{opcode.ServerAuthChallenge, s.handleAuthChallenge},
		{opcode.ServerAuthResponse, s.handleAuthResponse},
		{opcode.ServerAddonCheck, s.handleAddonCheck},
		{opcode.ServerAddonInfo, s.handleAddonInfo},
		{opcode.ServerPong, s.handlePong},
	}
	for _, b := range builtins {
		if err := s.disp.Register(b.op, b.h); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID returns the session id used in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Info returns the protocol version of the session.
func (s *Session) Info() version.Info {
	return s.cfg.Info
}

// OnFrame registers a handler for a canonical opcode. It must be called
// before Run.
func (s *Session) OnFrame(op opcode.Opcode, h protocol.HandlerFunc) error {
	return s.disp.Register(op, h)
}

// SendFrame translates op for the session build and writes one frame.
// Frames delayed on op are sent right after it.
func (s *Session) SendFrame(op opcode.Opcode, payload []byte) error {
	raw, err := s.table.ToRaw(s.cfg.Info.Build, op)
	if err != nil {
		return fmt.Errorf("sending %s: %w", op, err)
	}
	if err := s.framer.WriteFrame(raw, payload); err != nil {
		return fmt.Errorf("sending %s: %w", op, err)
	}
	return s.flushDelayed(op)
}

// SendFrameAfter queues a frame until trigger is sent or received.
func (s *Session) SendFrameAfter(op opcode.Opcode, payload []byte, trigger opcode.Opcode) error {
	raw, err := s.table.ToRaw(s.cfg.Info.Build, op)
	if err != nil {
		return fmt.Errorf("delaying %s: %w", op, err)
	}
	s.delayed.push(trigger, delayedFrame{op: op, raw: raw, payload: payload})
	s.log.Debug("frame delayed", "opcode", op, "trigger", trigger)
	return nil
}

// flushDelayed sends frames waiting for trigger. Sending them does not
// trigger further delayed frames.
func (s *Session) flushDelayed(trigger opcode.Opcode) error {
	for _, f := range s.delayed.take(trigger) {
		if err := s.framer.WriteFrame(f.raw, f.payload); err != nil {
			return fmt.Errorf("sending delayed %s: %w", f.op, err)
		}
	}
	return nil
}

// Ping sends a keepalive with the given latency in milliseconds.
func (s *Session) Ping(latency time.Duration) error {
	var payload [8]byte
	binary.LittleEndian.PutUint32(payload[0:], s.pingSeq.Add(1))
	binary.LittleEndian.PutUint32(payload[4:], uint32(latency.Milliseconds()))
	return s.SendFrame(opcode.ClientPing, payload[:])
}

// Run reads and dispatches frames until the connection fails, ctx is done
// or the handshake is refused.
//
// Before authentication every error is fatal. Afterwards handler errors are
// logged and the loop continues; transport errors still end it.
func (s *Session) Run(ctx context.Context) error {
	s.disp.Seal()

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	err := s.receive(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	s.finishAuth(err)
	return err
}

func (s *Session) receive(ctx context.Context) error {
	build := s.cfg.Info.Build
	for {
		f, err := s.framer.ReadFrame()
		if err != nil {
			return err
		}

		if err := s.disp.Dispatch(ctx, f); err != nil {
			if !s.disp.Authenticated() {
				return err
			}
			s.log.Warn("frame handler failed", "opcode", s.table.ToCanonical(build, f.Opcode), "err", err)
		}

		if op := s.table.ToCanonical(build, f.Opcode); op != opcode.Unknown {
			if err := s.flushDelayed(op); err != nil {
				return err
			}
		}
	}
}

// WaitAuthenticated blocks until the world server accepts or refuses the
// session.
func (s *Session) WaitAuthenticated(ctx context.Context) error {
	select {
	case <-s.authDone:
		return s.authErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authenticated reports whether the world server accepted the session.
func (s *Session) Authenticated() bool {
	return s.disp.Authenticated()
}

// Authorized reports whether the addon check accepted the client.
func (s *Session) Authorized() bool {
	p := s.addon.Load()
	return p != nil && p.Authorized()
}

// Pending returns the number of delayed frames not sent yet.
func (s *Session) Pending() int {
	return s.delayed.len()
}

// Close closes the connection. Run returns shortly after.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.finishAuth(ErrSessionClosed)
	})
	return s.closeErr
}

func (s *Session) finishAuth(err error) {
	s.authOnce.Do(func() {
		if err == nil && !s.disp.Authenticated() {
			err = ErrSessionClosed
		}
		s.authErr = err
		close(s.authDone)
	})
}

func (s *Session) handleAuthChallenge(_ context.Context, payload []byte) error {
	if s.framer.CryptEnabled() {
		return ErrUnexpectedChallenge
	}

	f := s.cfg.Info.Features
	ch, err := ParseAuthChallenge(payload, f)
	if err != nil {
		return err
	}

	var seed [4]byte
	if _, err := io.ReadFull(s.random, seed[:]); err != nil {
		return fmt.Errorf("reading client seed: %w", err)
	}
	clientSeed := binary.LittleEndian.Uint32(seed[:])

	addons, err := EncodeAddonList(s.cfg.Addons, f, uint32(time.Now().Unix()))
	if err != nil {
		return err
	}

	as := AuthSession{
		Build:      s.cfg.Info.Build,
		ServerID:   s.cfg.ServerID,
		Username:   s.cfg.Username,
		ClientSeed: clientSeed,
		RealmID:    s.cfg.RealmID,
		Digest:     AuthDigest(s.cfg.Username, clientSeed, ch.ServerSeed, s.cfg.Key),
		Addons:     addons,
	}
	raw, err := s.table.ToRaw(s.cfg.Info.Build, opcode.ClientAuthSession)
	if err != nil {
		return fmt.Errorf("sending %s: %w", opcode.ClientAuthSession, err)
	}
	// всё, что уходит после auth session, шифруется; ответ тоже приходит зашифрованным
	if err := s.framer.WriteFrameThenEnableCrypt(raw, as.Encode(f), s.cfg.Key[:]); err != nil {
		return fmt.Errorf("sending %s: %w", opcode.ClientAuthSession, err)
	}
	s.log.Debug("auth session sent", "user", s.cfg.Username, "build", s.cfg.Info.Build)

	return s.flushDelayed(opcode.ClientAuthSession)
}

func (s *Session) handleAuthResponse(_ context.Context, payload []byte) error {
	resp, err := ParseAuthResponse(payload, s.cfg.Info.Features)
	if err != nil {
		return err
	}
	if resp.Code != AuthOK {
		s.log.Warn("world auth refused", "code", fmt.Sprintf("0x%02X", resp.Code))
		return &AuthResponseError{Code: resp.Code}
	}

	s.disp.MarkAuthenticated()
	s.finishAuth(nil)
	s.log.Info("world session authenticated", "user", s.cfg.Username, "expansion", resp.Expansion)
	return nil
}

func (s *Session) handleAddonCheck(_ context.Context, payload []byte) error {
	p := s.addon.Load()
	if p == nil {
		var err error
		p, err = addoncheck.New(s.cfg.Key[:], s.cfg.Fixes, func(reply []byte) error {
			return s.SendFrame(opcode.ClientAddonCheck, reply)
		})
		if err != nil {
			return err
		}
		s.addon.Store(p)
	}
	return p.Handle(payload)
}

func (s *Session) handleAddonInfo(_ context.Context, payload []byte) error {
	s.log.Debug("addon info ignored", "size", len(payload))
	return nil
}

func (s *Session) handlePong(_ context.Context, payload []byte) error {
	if len(payload) >= 4 {
		s.log.Debug("pong", "seq", binary.LittleEndian.Uint32(payload))
	}
	return nil
}

// IsRefused reports whether err is a refusal of the world server.
func IsRefused(err error) bool {
	var refused *AuthResponseError
	return errors.As(err, &refused)
}
