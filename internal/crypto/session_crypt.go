package crypto

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/hkdf"

	"github.com/udisondev/hermesgo/internal/version"
)

// Role selects which direction seed feeds which keystream.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Direction seeds of generation B, from the client's point of view.
// Сервер шифрует своим потоком на CC98..., клиент на C2B3...
var (
	clientSendSeed = mustHex("C2B3723CC6AED9B5343C53EE2F4367CE")
	clientRecvSeed = mustHex("CC98AE04E897EACA12DDC09342915357")
)

// ErrUnknownGeneration is returned by Init for an unsupported cipher generation.
var ErrUnknownGeneration = errors.New("unknown header cipher generation")

// SessionCrypt is the world header cipher.
// Only frame headers pass through it, payloads stay in clear.
//
// Both Encrypt and Decrypt are no-ops until Init installs a key: the
// auth handshake frames travel unencrypted.
type SessionCrypt struct {
	send    Keystream
	recv    Keystream
	enabled atomic.Bool
}

// NewSessionCrypt creates a disabled SessionCrypt.
func NewSessionCrypt() *SessionCrypt {
	return &SessionCrypt{}
}

// Init derives both keystreams from the session key and enables the cipher.
func (sc *SessionCrypt) Init(gen version.Generation, drop int, role Role, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	switch gen {
	case version.GenerationA:
		// оба направления от одного сырого ключа
		if err := sc.send.Seed(key); err != nil {
			return fmt.Errorf("seeding send keystream: %w", err)
		}
		if err := sc.recv.Seed(key); err != nil {
			return fmt.Errorf("seeding recv keystream: %w", err)
		}
	case version.GenerationB:
		sendSeed, recvSeed := clientSendSeed, clientRecvSeed
		if role == RoleServer {
			sendSeed, recvSeed = recvSeed, sendSeed
		}
		if err := sc.send.Seed(expandKey(sendSeed, key)); err != nil {
			return fmt.Errorf("seeding send keystream: %w", err)
		}
		if err := sc.recv.Seed(expandKey(recvSeed, key)); err != nil {
			return fmt.Errorf("seeding recv keystream: %w", err)
		}
	default:
		return fmt.Errorf("generation %d: %w", gen, ErrUnknownGeneration)
	}

	sc.send.Drop(drop)
	sc.recv.Drop(drop)
	sc.enabled.Store(true)
	return nil
}

// Encrypt transforms an outgoing header in place.
func (sc *SessionCrypt) Encrypt(header []byte) {
	if !sc.enabled.Load() {
		return
	}
	sc.send.Transform(header)
}

// Decrypt transforms an incoming header in place.
func (sc *SessionCrypt) Decrypt(header []byte) {
	if !sc.enabled.Load() {
		return
	}
	sc.recv.Transform(header)
}

// IsEnabled returns true once Init succeeded.
func (sc *SessionCrypt) IsEnabled() bool {
	return sc.enabled.Load()
}

// expandKey computes HMAC-SHA1(seed, key), which is exactly the HKDF extract step.
func expandKey(seed, key []byte) []byte {
	return hkdf.Extract(sha1.New, key, seed)
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
