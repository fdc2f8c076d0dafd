package auth

import (
	"crypto/sha1"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strings"
)

const (
	// PublicKeySize is the wire width of A, B and N.
	PublicKeySize = 32
	// SaltSize is the wire width of the account salt.
	SaltSize = 32
	// ProofSize is the width of M1, M2 and the reconnect proofs.
	ProofSize = sha1.Size

	privateKeySize = 19
	maxKeyAttempts = 16
)

var srpMultiplier = big.NewInt(3)

// Challenge holds the server parameters of a logon challenge.
// All numbers are little-endian byte strings as they appear on the wire.
type Challenge struct {
	B     [PublicKeySize]byte
	G     []byte
	N     []byte
	Salt  [SaltSize]byte
	Seed  [16]byte
	Flags byte
}

// Proof is the client side of a completed exchange.
type Proof struct {
	A   [PublicKeySize]byte
	M1  [ProofSize]byte
	M2  [ProofSize]byte
	Key SessionKey
}

func sha(parts ...[]byte) [ProofSize]byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [ProofSize]byte
	h.Sum(out[:0])
	return out
}

// HashPassword returns SHA1(UPPER(user ":" pass)), the only form of the
// password the auth client ever handles.
func HashPassword(username, password string) []byte {
	h := sha([]byte(strings.ToUpper(username + ":" + password)))
	return h[:]
}

// IntFromLE decodes a little-endian unsigned integer.
func IntFromLE(b []byte) *big.Int {
	be := slices.Clone(b)
	slices.Reverse(be)
	return new(big.Int).SetBytes(be)
}

// IntToLE encodes x as a little-endian integer of exactly size bytes.
// x must fit into size bytes.
func IntToLE(x *big.Int, size int) []byte {
	b := x.FillBytes(make([]byte, size))
	slices.Reverse(b)
	return b
}

// SecretBytes encodes the shared secret S the way the legacy client does:
// the minimal little-endian form, zero-padded at the front to 32 bytes.
// For an S shorter than 32 bytes this differs from IntToLE.
func SecretBytes(s *big.Int) []byte {
	raw := s.Bytes()
	slices.Reverse(raw)
	out := make([]byte, PublicKeySize)
	copy(out[PublicKeySize-len(raw):], raw)
	return out
}

// DeriveSessionKey interleaves SHA1 of the even and odd bytes of the
// 32-byte shared secret S into the 40-byte session key.
func DeriveSessionKey(s []byte) SessionKey {
	var even, odd [PublicKeySize / 2]byte
	for i := range even {
		even[i] = s[i*2]
		odd[i] = s[i*2+1]
	}
	he, ho := sha(even[:]), sha(odd[:])

	var k SessionKey
	for i := range ProofSize {
		k[i*2] = he[i]
		k[i*2+1] = ho[i]
	}
	return k
}

// ClientEvidence computes M1 = H(H(N) xor H(g), H(UPPER(user)), salt, A, B, K).
func ClientEvidence(username string, n, g, salt, a, b []byte, key SessionKey) [ProofSize]byte {
	hn, hg := sha(n), sha(g)
	for i := range hn {
		hn[i] ^= hg[i]
	}
	hu := sha([]byte(strings.ToUpper(username)))
	return sha(hn[:], hu[:], salt, a, b, key[:])
}

// ServerEvidence computes M2 = H(A, M1, K).
func ServerEvidence(a []byte, m1 [ProofSize]byte, key SessionKey) [ProofSize]byte {
	return sha(a, m1[:], key[:])
}

// ReconnectProof computes R2 = H(user, R1, challenge, K) and R3 = H(R1, 0^20).
func ReconnectProof(username string, r1, challenge []byte, key SessionKey) (r2, r3 [ProofSize]byte) {
	r2 = sha([]byte(username), r1, challenge, key[:])
	r3 = sha(r1, make([]byte, ProofSize))
	return r2, r3
}

// ComputeProof runs the client side of the exchange for one challenge.
// random supplies the 19-byte private exponent.
func ComputeProof(username string, passwordHash []byte, ch Challenge, random io.Reader) (Proof, error) {
	var p Proof

	if len(ch.N) == 0 || len(ch.N) > PublicKeySize || len(ch.G) == 0 {
		return p, fmt.Errorf("modulus of %d bytes, generator of %d bytes: %w", len(ch.N), len(ch.G), ErrBadChallenge)
	}

	n := IntFromLE(ch.N)
	g := IntFromLE(ch.G)
	b := IntFromLE(ch.B[:])
	if n.Sign() == 0 || new(big.Int).Mod(b, n).Sign() == 0 {
		return p, fmt.Errorf("zero modulus or B: %w", ErrBadChallenge)
	}

	xh := sha(ch.Salt[:], passwordHash)
	x := IntFromLE(xh[:])

	var a, bigA *big.Int
	buf := make([]byte, privateKeySize)
	for attempt := 0; ; attempt++ {
		if attempt == maxKeyAttempts {
			return p, fmt.Errorf("no usable private key after %d attempts: %w", attempt, ErrBadChallenge)
		}
		if _, err := io.ReadFull(random, buf); err != nil {
			return p, fmt.Errorf("reading private key: %w", err)
		}
		a = IntFromLE(buf)
		bigA = new(big.Int).Exp(g, a, n)
		if bigA.Sign() != 0 {
			break
		}
	}
	aBytes := IntToLE(bigA, PublicKeySize)

	uh := sha(aBytes, ch.B[:])
	u := IntFromLE(uh[:])

	// S = ((B + 3(N - g^x mod N)) mod N) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(g, x, n)
	base := new(big.Int).Sub(n, gx)
	base.Mul(base, srpMultiplier)
	base.Add(base, b)
	base.Mod(base, n)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)

	s := new(big.Int).Exp(base, exp, n)

	p.Key = DeriveSessionKey(SecretBytes(s))
	copy(p.A[:], aBytes)
	p.M1 = ClientEvidence(username, ch.N, ch.G, ch.Salt[:], p.A[:], ch.B[:], p.Key)
	p.M2 = ServerEvidence(p.A[:], p.M1, p.Key)
	return p, nil
}

// VerifyServerProof compares the received M2 in constant time.
func (p Proof) VerifyServerProof(m2 []byte) bool {
	return subtle.ConstantTimeCompare(p.M2[:], m2) == 1
}
