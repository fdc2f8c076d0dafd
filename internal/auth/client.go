package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/hermesgo/internal/protocol"
	"github.com/udisondev/hermesgo/internal/protocol/packet"
	"github.com/udisondev/hermesgo/internal/version"
)

// Auth command codes
const (
	CmdLogonChallenge     = 0x00
	CmdLogonProof         = 0x01
	CmdReconnectChallenge = 0x02
	CmdReconnectProof     = 0x03
	CmdRealmList          = 0x10
)

const (
	gameName      = "WoW"
	timezoneBias  = 60
	loopbackIPv4  = 0x0100007F
	maxUsernameLn = 255
)

// Security flags of the logon challenge and the extra bytes they add.
const (
	securityPIN       = 0x01
	securityMatrix    = 0x02
	securityToken     = 0x04
	securityPINLen    = 4 + 16
	securityMatrixLen = 1 + 1 + 1 + 1 + 8
	securityTokenLen  = 1
)

var (
	// ErrNotAuthenticated is returned by requests that need a completed logon.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnexpectedCommand is returned when the server answers with another command.
	ErrUnexpectedCommand = errors.New("unexpected auth command")
	// ErrBusy is returned when an exchange is started while another one runs.
	ErrBusy = errors.New("auth exchange in progress")
)

// Credentials identify the account. The password is only known as its hash.
type Credentials struct {
	Username     string
	PasswordHash []byte
}

// ClientConfig describes how the client presents itself to the auth server.
type ClientConfig struct {
	Info     version.Info
	Locale   string
	Platform string
	OS       string
}

// ClientOption is a functional option for Client configuration.
type ClientOption func(*Client)

// WithRandom replaces the source of the private exponent and reconnect nonce.
func WithRandom(r io.Reader) ClientOption {
	return func(c *Client) {
		c.random = r
	}
}

// Client speaks the legacy auth protocol over one connection.
type Client struct {
	conn   io.ReadWriter
	r      *bufio.Reader
	cfg    ClientConfig
	random io.Reader

	// одновременно идёт только один обмен
	busy sync.Mutex

	mu       sync.Mutex
	state    State
	username string
	key      SessionKey
}

// NewClient creates an auth client on an established connection.
func NewClient(conn io.ReadWriter, cfg ClientConfig, opts ...ClientOption) *Client {
	c := &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		cfg:    cfg,
		random: rand.Reader,
		state:  StateIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State returns the current exchange state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// SessionKey returns the key of the last successful exchange.
func (c *Client) SessionKey() SessionKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *Client) authenticated(username string, key SessionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateAuthenticated
	c.username = username
	c.key = key
}

// Authenticate runs the full logon exchange and returns the session key.
// Server refusals are reported as *RejectedError.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (SessionKey, error) {
	if !c.busy.TryLock() {
		return SessionKey{}, ErrBusy
	}
	defer c.busy.Unlock()

	if err := ctx.Err(); err != nil {
		return SessionKey{}, err
	}
	defer c.watch(ctx)()

	key, err := c.logon(creds)
	if err != nil {
		c.setState(StateFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return SessionKey{}, fmt.Errorf("logon: %w", ctxErr)
		}
		return SessionKey{}, err
	}

	c.authenticated(creds.Username, key)
	slog.Info("logon succeeded", "user", creds.Username, "build", c.cfg.Info.Build)
	return key, nil
}

func (c *Client) logon(creds Credentials) (SessionKey, error) {
	if err := c.sendChallenge(CmdLogonChallenge, creds.Username); err != nil {
		return SessionKey{}, err
	}
	c.setState(StateChallengeSent)

	ch, err := c.readChallenge()
	if err != nil {
		return SessionKey{}, err
	}

	proof, err := ComputeProof(creds.Username, creds.PasswordHash, ch, c.random)
	if err != nil {
		return SessionKey{}, fmt.Errorf("computing proof: %w", err)
	}

	w := packet.Get()
	defer w.Put()
	w.WriteUint8(CmdLogonProof)
	w.WriteBytes(proof.A[:])
	w.WriteBytes(proof.M1[:])
	crc := ClientCRC(c.cfg, proof.A[:])
	w.WriteBytes(crc[:])
	w.WriteUint8(0) // number of keys
	w.WriteUint8(0) // security flags
	if err := c.write(w.Bytes(), "logon proof"); err != nil {
		return SessionKey{}, err
	}
	c.setState(StateProofSent)

	if err := c.expect(CmdLogonProof, StateProofSent); err != nil {
		return SessionKey{}, err
	}
	m2, err := c.read(ProofSize, "server proof")
	if err != nil {
		return SessionKey{}, err
	}
	if _, err := c.read(c.cfg.Info.Features.ProofTrailerLen, "proof trailer"); err != nil {
		return SessionKey{}, err
	}

	if !proof.VerifyServerProof(m2) {
		slog.Warn("server proof mismatch", "user", creds.Username)
		return SessionKey{}, &RejectedError{Stage: StateProofSent, Result: ResultInternalError, Err: ErrProofMismatch}
	}
	return proof.Key, nil
}

// ClientCRC returns the crc field of the logon proof. x86 OS X clients send
// SHA1(A, client hash) on builds with a known hash; everyone else sends zeros.
func ClientCRC(cfg ClientConfig, a []byte) [ProofSize]byte {
	hash := cfg.Info.Features.MacClientHash
	if cfg.OS != "OSX" || cfg.Platform != "x86" || hash == ([20]byte{}) {
		return [ProofSize]byte{}
	}
	return sha(a, hash[:])
}

// Reconnect proves knowledge of a key from an earlier logon without a password.
func (c *Client) Reconnect(ctx context.Context, username string, key SessionKey) error {
	if !c.busy.TryLock() {
		return ErrBusy
	}
	defer c.busy.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	defer c.watch(ctx)()

	if err := c.reconnect(username, key); err != nil {
		c.setState(StateFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("reconnect: %w", ctxErr)
		}
		return err
	}

	c.authenticated(username, key)
	slog.Info("reconnect succeeded", "user", username, "build", c.cfg.Info.Build)
	return nil
}

func (c *Client) reconnect(username string, key SessionKey) error {
	if err := c.sendChallenge(CmdReconnectChallenge, username); err != nil {
		return err
	}
	c.setState(StateReconnectChallengeSent)

	if err := c.expect(CmdReconnectChallenge, StateReconnectChallengeSent); err != nil {
		return err
	}
	challenge, err := c.read(16, "reconnect challenge")
	if err != nil {
		return err
	}
	if _, err := c.read(16, "reconnect challenge"); err != nil {
		return err
	}

	r1 := make([]byte, 16)
	if _, err := io.ReadFull(c.random, r1); err != nil {
		return fmt.Errorf("reading reconnect nonce: %w", err)
	}
	r2, r3 := ReconnectProof(username, r1, challenge, key)

	w := packet.Get()
	defer w.Put()
	w.WriteUint8(CmdReconnectProof)
	w.WriteBytes(r1)
	w.WriteBytes(r2[:])
	w.WriteBytes(r3[:])
	w.WriteUint8(0) // number of keys
	if err := c.write(w.Bytes(), "reconnect proof"); err != nil {
		return err
	}
	c.setState(StateReconnectProofSent)

	if err := c.expect(CmdReconnectProof, StateReconnectProofSent); err != nil {
		return err
	}
	if _, err := c.read(c.cfg.Info.Features.ReconnectTrailerLen, "reconnect trailer"); err != nil {
		return err
	}
	return nil
}

// RequestRealmList asks the server for its realms. Requires a completed logon.
func (c *Client) RequestRealmList(ctx context.Context) ([]Realm, error) {
	if c.State() != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}
	if !c.busy.TryLock() {
		return nil, ErrBusy
	}
	defer c.busy.Unlock()
	defer c.watch(ctx)()

	realms, err := c.realmList()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("realm list: %w", ctxErr)
		}
		return nil, err
	}
	slog.Debug("realm list received", "count", len(realms))
	return realms, nil
}

func (c *Client) realmList() ([]Realm, error) {
	if err := c.write([]byte{CmdRealmList, 0, 0, 0, 0}, "realm list request"); err != nil {
		return nil, err
	}

	hdr, err := c.read(3, "realm list header")
	if err != nil {
		return nil, err
	}
	if hdr[0] != CmdRealmList {
		return nil, fmt.Errorf("got 0x%02X, want 0x%02X: %w", hdr[0], CmdRealmList, ErrUnexpectedCommand)
	}
	size := int(hdr[1]) | int(hdr[2])<<8

	body, err := c.read(size, "realm list")
	if err != nil {
		return nil, err
	}
	return ParseRealmList(body, c.cfg.Info.Features)
}

// writeFourCC пишет строку задом наперёд, дополняя нулями до 4 байт.
func writeFourCC(w *packet.Writer, s string) {
	w.WriteReversed(s)
	for range 4 - len(s) {
		w.WriteUint8(0)
	}
}

func (c *Client) sendChallenge(cmd byte, username string) error {
	if len(username) == 0 || len(username) > maxUsernameLn {
		return fmt.Errorf("username length %d: %w", len(username), ErrBadChallenge)
	}
	info := c.cfg.Info

	body := packet.Get()
	defer body.Put()
	body.WriteCString(gameName)
	body.WriteUint8(info.Major)
	body.WriteUint8(info.Minor)
	body.WriteUint8(info.Patch)
	body.WriteUint16(uint16(info.Build))
	writeFourCC(body, c.cfg.Platform)
	writeFourCC(body, c.cfg.OS)
	writeFourCC(body, c.cfg.Locale)
	body.WriteUint32(timezoneBias)
	body.WriteUint32(loopbackIPv4)
	body.WriteUint8(uint8(len(username)))
	body.WriteBytes([]byte(username))

	w := packet.Get()
	defer w.Put()
	w.WriteUint8(cmd)
	w.WriteUint8(info.Features.ChallengeProtocol)
	w.WriteUint16(uint16(body.Len()))
	w.WriteBytes(body.Bytes())

	return c.write(w.Bytes(), "logon challenge")
}

func (c *Client) readChallenge() (Challenge, error) {
	var ch Challenge

	hdr, err := c.read(3, "challenge header")
	if err != nil {
		return ch, err
	}
	if hdr[0] != CmdLogonChallenge {
		return ch, fmt.Errorf("got 0x%02X, want 0x%02X: %w", hdr[0], CmdLogonChallenge, ErrUnexpectedCommand)
	}
	if res := Result(hdr[2]); res != ResultSuccess {
		slog.Warn("logon challenge rejected", "result", res)
		return ch, &RejectedError{Stage: StateChallengeSent, Result: res}
	}

	b, err := c.read(PublicKeySize+1, "server public key")
	if err != nil {
		return ch, err
	}
	copy(ch.B[:], b)
	if ch.G, err = c.read(int(b[PublicKeySize]), "generator"); err != nil {
		return ch, err
	}
	nLen, err := c.read(1, "modulus length")
	if err != nil {
		return ch, err
	}
	if ch.N, err = c.read(int(nLen[0]), "modulus"); err != nil {
		return ch, err
	}
	rest, err := c.read(SaltSize+16+1, "salt")
	if err != nil {
		return ch, err
	}
	copy(ch.Salt[:], rest)
	copy(ch.Seed[:], rest[SaltSize:])
	ch.Flags = rest[SaltSize+16]

	extra := 0
	if ch.Flags&securityPIN != 0 {
		extra += securityPINLen
	}
	if ch.Flags&securityMatrix != 0 {
		extra += securityMatrixLen
	}
	if ch.Flags&securityToken != 0 {
		extra += securityTokenLen
	}
	if extra > 0 {
		slog.Debug("ignoring security extensions", "flags", ch.Flags)
		if _, err := c.read(extra, "security extensions"); err != nil {
			return ch, err
		}
	}
	return ch, nil
}

// expect reads a command byte and a result byte.
func (c *Client) expect(cmd byte, stage State) error {
	hdr, err := c.read(2, "response header")
	if err != nil {
		return err
	}
	if hdr[0] != cmd {
		return fmt.Errorf("got 0x%02X, want 0x%02X: %w", hdr[0], cmd, ErrUnexpectedCommand)
	}
	if res := Result(hdr[1]); res != ResultSuccess {
		slog.Warn("auth server rejected", "stage", stage, "result", res)
		return &RejectedError{Stage: stage, Result: res}
	}
	return nil
}

func (c *Client) read(n int, what string) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading %s: %w", what, protocol.ErrConnectionClosed)
		}
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	return buf, nil
}

func (c *Client) write(b []byte, what string) error {
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("writing %s: %w", what, err)
	}
	return nil
}

// watch unblocks pending I/O when ctx is cancelled, if the connection supports deadlines.
func (c *Client) watch(ctx context.Context) (stop func()) {
	d, ok := c.conn.(interface{ SetDeadline(time.Time) error })
	if !ok {
		return func() {}
	}
	cancel := context.AfterFunc(ctx, func() {
		_ = d.SetDeadline(time.Now())
	})
	return func() { cancel() }
}
