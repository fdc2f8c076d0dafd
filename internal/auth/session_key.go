package auth

// SessionKeySize is the length of the shared key produced by the logon exchange.
const SessionKeySize = 40

// SessionKey is the shared secret established by a successful logon.
// It seeds the world header cipher and the addon check keystreams.
type SessionKey [SessionKeySize]byte

// Bytes returns a copy of the key as a slice.
func (k SessionKey) Bytes() []byte {
	b := make([]byte, SessionKeySize)
	copy(b, k[:])
	return b
}

// IsZero reports whether the key was never set.
func (k SessionKey) IsZero() bool {
	return k == SessionKey{}
}

// String hides the key material from logs.
func (k SessionKey) String() string {
	if k.IsZero() {
		return "SessionKey(empty)"
	}
	return "SessionKey(***)"
}
