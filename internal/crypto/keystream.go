package crypto

import (
	"crypto/subtle"
	"errors"
)

// ErrEmptyKey is returned when a keystream is seeded with a zero-length key.
var ErrEmptyKey = errors.New("empty keystream key")

// Keystream is the RC4-family byte generator used by the header ciphers
// and by the addon check handshake.
//
// Keystream is not safe for concurrent use: each direction of a connection
// owns its own instance.
type Keystream struct {
	s    [256]byte
	i, j byte
}

// NewKeystream returns a keystream seeded with key.
func NewKeystream(key []byte) (*Keystream, error) {
	ks := &Keystream{}
	if err := ks.Seed(key); err != nil {
		return nil, err
	}
	return ks, nil
}

// Seed runs the key schedule. Reseeding replaces the whole state.
func (ks *Keystream) Seed(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	for i := range ks.s {
		ks.s[i] = byte(i)
	}

	var j byte
	for i := range 256 {
		j += ks.s[i] + key[i%len(key)]
		ks.s[i], ks.s[j] = ks.s[j], ks.s[i]
	}

	ks.i, ks.j = 0, 0
	return nil
}

// NextByte advances the generator and returns one output byte.
func (ks *Keystream) NextByte() byte {
	ks.i++
	ks.j += ks.s[ks.i]
	ks.s[ks.i], ks.s[ks.j] = ks.s[ks.j], ks.s[ks.i]
	return ks.s[ks.s[ks.i]+ks.s[ks.j]]
}

// Transform XORs buf in place with the next len(buf) output bytes.
// Applying it twice with identically seeded keystreams restores the input.
func (ks *Keystream) Transform(buf []byte) {
	// локальные копии: компилятор держит индексы в регистрах
	s := &ks.s
	i, j := ks.i, ks.j
	for k := range buf {
		i++
		j += s[i]
		s[i], s[j] = s[j], s[i]
		buf[k] ^= s[s[i]+s[j]]
	}
	ks.i, ks.j = i, j
}

// Drop discards n output bytes.
func (ks *Keystream) Drop(n int) {
	for range n {
		ks.NextByte()
	}
}

// Equal reports whether both keystreams are in the same state.
func (ks *Keystream) Equal(other *Keystream) bool {
	if ks == nil || other == nil {
		return ks == other
	}
	same := subtle.ConstantTimeCompare(ks.s[:], other.s[:])
	same &= subtle.ConstantTimeByteEq(ks.i, other.i)
	same &= subtle.ConstantTimeByteEq(ks.j, other.j)
	return same == 1
}
