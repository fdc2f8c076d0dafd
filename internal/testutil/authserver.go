package testutil

import (
	"bufio"
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/udisondev/hermesgo/internal/auth"
	"github.com/udisondev/hermesgo/internal/protocol/packet"
	"github.com/udisondev/hermesgo/internal/version"
)

// Модуль и генератор, которые раздают все известные auth серверы.
var (
	AuthModulus   = mustLE("894B645E89E1535BBDAD5B8B290650530801B18EBFBF5E8FAB3C82872A3E9BB7")
	AuthGenerator = []byte{7}
)

func mustLE(be string) []byte {
	n, ok := new(big.Int).SetString(be, 16)
	if !ok {
		panic("testutil: bad modulus " + be)
	}
	return auth.IntToLE(n, auth.PublicKeySize)
}

// SequenceBytes returns n bytes counting up from start.
func SequenceBytes(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// AuthServer is a scripted server side of the legacy auth protocol.
// Zero-valued fields are filled with fixed test values by NewAuthServer.
type AuthServer struct {
	Salt    [auth.SaltSize]byte
	Private []byte // b, little-endian

	// Forced refusals. ResultSuccess means "behave normally".
	ChallengeResult auth.Result
	ProofResult     auth.Result
	ReconnectResult auth.Result
	SecurityFlags   byte
	CorruptM2       bool

	ReconnectChallenge [16]byte
	Realms             []auth.Realm

	mu       sync.Mutex
	crc      [auth.ProofSize]byte
	accounts map[string][]byte
	keys     map[string]auth.SessionKey
	builds   []version.Build
}

// NewAuthServer creates a server with deterministic salt and private key.
func NewAuthServer() *AuthServer {
	s := &AuthServer{
		Private:  SequenceBytes(0x30, 19),
		accounts: make(map[string][]byte),
		keys:     make(map[string]auth.SessionKey),
	}
	copy(s.Salt[:], SequenceBytes(0xA0, auth.SaltSize))
	copy(s.ReconnectChallenge[:], SequenceBytes(0x10, 16))
	return s
}

// AddAccount registers an account.
func (s *AuthServer) AddAccount(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToUpper(username)] = auth.HashPassword(username, password)
}

// SessionKey returns the key the server derived for username.
func (s *AuthServer) SessionKey(username string) (auth.SessionKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[strings.ToUpper(username)]
	return k, ok
}

// SetSessionKey makes the server accept reconnects of username with key.
func (s *AuthServer) SetSessionKey(username string, key auth.SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[strings.ToUpper(username)] = key
}

// LastCRC returns the crc field of the last logon proof received.
func (s *AuthServer) LastCRC() [auth.ProofSize]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crc
}

// Builds returns the builds announced by clients so far.
func (s *AuthServer) Builds() []version.Build {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]version.Build(nil), s.builds...)
}

// Start serves connections on a random local port until the test ends.
func (s *AuthServer) Start(t testing.TB) string {
	t.Helper()

	listener, addr := ListenTCP(t)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = s.Serve(conn)
			}()
		}
	}()
	return addr
}

// authConn is the per-connection state of the server.
type authConn struct {
	srv      *AuthServer
	r        *bufio.Reader
	w        io.Writer
	features version.Features
	username string

	// ожидаемый M1 и ответ M2 текущего обмена
	a      []byte
	b      []byte
	key    auth.SessionKey
	hasKey bool
}

// Serve handles one client connection until it is closed.
func (s *AuthServer) Serve(conn net.Conn) error {
	c := &authConn{srv: s, r: bufio.NewReader(conn), w: conn}
	for {
		cmd, err := c.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch cmd {
		case auth.CmdLogonChallenge:
			err = c.handleLogonChallenge()
		case auth.CmdLogonProof:
			err = c.handleLogonProof()
		case auth.CmdReconnectChallenge:
			err = c.handleReconnectChallenge()
		case auth.CmdReconnectProof:
			err = c.handleReconnectProof()
		case auth.CmdRealmList:
			err = c.handleRealmList()
		default:
			return fmt.Errorf("unknown auth command 0x%02X", cmd)
		}
		if err != nil {
			return err
		}
	}
}

func (c *authConn) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := io.ReadFull(c.r, buf)
	return buf, err
}

func (c *authConn) write(b []byte) error {
	_, err := c.w.Write(b)
	return err
}

// readChallenge parses the challenge body shared by logon and reconnect.
func (c *authConn) readChallenge() error {
	hdr, err := c.read(3)
	if err != nil {
		return err
	}
	size := int(hdr[1]) | int(hdr[2])<<8
	body, err := c.read(size)
	if err != nil {
		return err
	}

	r := packet.NewReader(body)
	if _, err := r.ReadCString(); err != nil {
		return err
	}
	if err := r.Skip(3); err != nil {
		return err
	}
	build, err := r.ReadUint16()
	if err != nil {
		return err
	}
	// platform, os, locale, timezone, ip
	if err := r.Skip(4 + 4 + 4 + 4 + 4); err != nil {
		return err
	}
	ulen, err := r.ReadUint8()
	if err != nil {
		return err
	}
	user, err := r.ReadBytes(int(ulen))
	if err != nil {
		return err
	}
	c.username = string(user)

	c.srv.mu.Lock()
	c.srv.builds = append(c.srv.builds, version.Build(build))
	c.srv.mu.Unlock()

	if info, err := version.Lookup(version.Build(build)); err == nil {
		c.features = info.Features
	}
	return nil
}

func (c *authConn) handleLogonChallenge() error {
	if err := c.readChallenge(); err != nil {
		return err
	}

	srv := c.srv
	srv.mu.Lock()
	hash, ok := srv.accounts[strings.ToUpper(c.username)]
	srv.mu.Unlock()

	result := srv.ChallengeResult
	if result == auth.ResultSuccess && !ok {
		result = auth.ResultUnknownAccount
	}
	if result == auth.ResultSuccess && c.features.RealmCountWidth == 0 {
		result = auth.ResultVersionInvalid
	}
	if result != auth.ResultSuccess {
		return c.write([]byte{auth.CmdLogonChallenge, 0, byte(result)})
	}

	n := auth.IntFromLE(AuthModulus)
	g := auth.IntFromLE(AuthGenerator)
	b := auth.IntFromLE(srv.Private)
	v := srv.verifier(hash)

	// B = 3v + g^b mod N
	bigB := new(big.Int).Mul(v, big.NewInt(3))
	bigB.Add(bigB, new(big.Int).Exp(g, b, n))
	bigB.Mod(bigB, n)
	c.b = auth.IntToLE(bigB, auth.PublicKeySize)

	w := packet.NewWriter(128)
	w.WriteUint8(auth.CmdLogonChallenge)
	w.WriteUint8(0)
	w.WriteUint8(byte(auth.ResultSuccess))
	w.WriteBytes(c.b)
	w.WriteUint8(uint8(len(AuthGenerator)))
	w.WriteBytes(AuthGenerator)
	w.WriteUint8(uint8(len(AuthModulus)))
	w.WriteBytes(AuthModulus)
	w.WriteBytes(srv.Salt[:])
	w.WriteBytes(SequenceBytes(0xE0, 16))
	w.WriteUint8(srv.SecurityFlags)
	if srv.SecurityFlags&0x01 != 0 {
		w.WriteBytes(make([]byte, 4+16))
	}
	if srv.SecurityFlags&0x02 != 0 {
		w.WriteBytes(make([]byte, 12))
	}
	if srv.SecurityFlags&0x04 != 0 {
		w.WriteUint8(0)
	}
	return c.write(w.Bytes())
}

func (s *AuthServer) verifier(passwordHash []byte) *big.Int {
	h := sha1.New()
	h.Write(s.Salt[:])
	h.Write(passwordHash)
	x := auth.IntFromLE(h.Sum(nil))
	return new(big.Int).Exp(auth.IntFromLE(AuthGenerator), x, auth.IntFromLE(AuthModulus))
}

func (c *authConn) handleLogonProof() error {
	body, err := c.read(auth.PublicKeySize + auth.ProofSize + auth.ProofSize + 2)
	if err != nil {
		return err
	}
	c.a = body[:auth.PublicKeySize]
	var m1 [auth.ProofSize]byte
	copy(m1[:], body[auth.PublicKeySize:])

	srv := c.srv
	srv.mu.Lock()
	copy(srv.crc[:], body[auth.PublicKeySize+auth.ProofSize:])
	srv.mu.Unlock()
	if srv.ProofResult != auth.ResultSuccess {
		return c.write([]byte{auth.CmdLogonProof, byte(srv.ProofResult), 3, 0})
	}

	srv.mu.Lock()
	hash := srv.accounts[strings.ToUpper(c.username)]
	srv.mu.Unlock()

	n := auth.IntFromLE(AuthModulus)
	bigA := auth.IntFromLE(c.a)
	v := srv.verifier(hash)

	uh := sha1.Sum(append(append([]byte(nil), c.a...), c.b...))
	u := auth.IntFromLE(uh[:])

	// S = (A * v^u)^b mod N
	base := new(big.Int).Exp(v, u, n)
	base.Mul(base, bigA)
	base.Mod(base, n)
	sharedS := new(big.Int).Exp(base, auth.IntFromLE(srv.Private), n)

	key := auth.DeriveSessionKey(auth.SecretBytes(sharedS))
	want := auth.ClientEvidence(c.username, AuthModulus, AuthGenerator, srv.Salt[:], c.a, c.b, key)
	if subtle.ConstantTimeCompare(want[:], m1[:]) != 1 {
		return c.write([]byte{auth.CmdLogonProof, byte(auth.ResultIncorrectPassword), 3, 0})
	}

	c.key, c.hasKey = key, true
	srv.SetSessionKey(c.username, key)

	m2 := auth.ServerEvidence(c.a, m1, key)
	if srv.CorruptM2 {
		m2[0] ^= 0xFF
	}

	w := packet.NewWriter(64)
	w.WriteUint8(auth.CmdLogonProof)
	w.WriteUint8(byte(auth.ResultSuccess))
	w.WriteBytes(m2[:])
	w.WriteBytes(make([]byte, c.features.ProofTrailerLen))
	return c.write(w.Bytes())
}

func (c *authConn) handleReconnectChallenge() error {
	if err := c.readChallenge(); err != nil {
		return err
	}

	srv := c.srv
	result := srv.ChallengeResult
	if key, ok := srv.SessionKey(c.username); ok {
		c.key, c.hasKey = key, true
	} else if result == auth.ResultSuccess {
		result = auth.ResultUnknownAccount
	}
	if result != auth.ResultSuccess {
		return c.write([]byte{auth.CmdReconnectChallenge, byte(result)})
	}

	w := packet.NewWriter(40)
	w.WriteUint8(auth.CmdReconnectChallenge)
	w.WriteUint8(byte(auth.ResultSuccess))
	w.WriteBytes(srv.ReconnectChallenge[:])
	w.WriteBytes(make([]byte, 16))
	return c.write(w.Bytes())
}

func (c *authConn) handleReconnectProof() error {
	body, err := c.read(16 + auth.ProofSize + auth.ProofSize + 1)
	if err != nil {
		return err
	}
	r1 := body[:16]
	r2 := body[16 : 16+auth.ProofSize]

	srv := c.srv
	result := srv.ReconnectResult
	if result == auth.ResultSuccess {
		want, _ := auth.ReconnectProof(c.username, r1, srv.ReconnectChallenge[:], c.key)
		if !c.hasKey || subtle.ConstantTimeCompare(want[:], r2) != 1 {
			result = auth.ResultIncorrectPassword
		}
	}
	if result != auth.ResultSuccess {
		return c.write([]byte{auth.CmdReconnectProof, byte(result)})
	}

	w := packet.NewWriter(4)
	w.WriteUint8(auth.CmdReconnectProof)
	w.WriteUint8(byte(auth.ResultSuccess))
	w.WriteBytes(make([]byte, c.features.ReconnectTrailerLen))
	return c.write(w.Bytes())
}

func (c *authConn) handleRealmList() error {
	if _, err := c.read(4); err != nil {
		return err
	}
	if !c.hasKey {
		return errors.New("realm list before logon")
	}

	body := auth.EncodeRealmList(c.srv.Realms, c.features)
	w := packet.NewWriter(len(body) + 3)
	w.WriteUint8(auth.CmdRealmList)
	w.WriteUint16(uint16(len(body)))
	w.WriteBytes(body)
	return c.write(w.Bytes())
}
