package auth

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// testChallenge is the challenge of account TEST/TEST with salt 0xA0.. and b = 0x30...
func testChallenge(t *testing.T) Challenge {
	t.Helper()
	ch := Challenge{
		G: []byte{7},
		N: unhex(t, "b79b3e2a87823cab8f5ebfbf8eb10108535006298b5badbd5b53e1895e644b89"),
	}
	copy(ch.B[:], unhex(t, "e96cb2645922e9bda44ec0067ab910c5d2c2117d37270ba39026266e2f9b3b15"))
	copy(ch.Salt[:], seq(0xA0, SaltSize))
	return ch
}

func TestHashPassword(t *testing.T) {
	want := unhex(t, "3d0d99423e31fcc67a6745ec89d70d700344bc76")

	assert.Equal(t, want, HashPassword("TEST", "TEST"))
	assert.Equal(t, want, HashPassword("test", "test"), "hash is case-insensitive")
	assert.NotEqual(t, want, HashPassword("TEST", "TEST2"))
}

func TestComputeProof_KnownVector(t *testing.T) {
	ch := testChallenge(t)

	p, err := ComputeProof("TEST", HashPassword("TEST", "TEST"), ch, bytes.NewReader(seq(0x60, privateKeySize)))
	require.NoError(t, err)

	assert.Equal(t, unhex(t, "5bdf3c44a4f360959e61fe53234fee1db5380da44e39cf163182831af7fa421c"), p.A[:])
	assert.Equal(t, unhex(t, "bb83df52887833e5305c4d6731fc7c8f6e6302c1aa137523678dd3b43ccb901f87afb1926cff0d23"), p.Key[:])
	assert.Equal(t, unhex(t, "8457356259ae3322319924439298ffeb4e1596d0"), p.M1[:])
	assert.Equal(t, unhex(t, "5e7c6e50d07c22e5040ab3dfd41528911f4e01a5"), p.M2[:])

	assert.True(t, p.VerifyServerProof(p.M2[:]))
	bad := p.M2
	bad[5] ^= 1
	assert.False(t, p.VerifyServerProof(bad[:]))
	assert.False(t, p.VerifyServerProof(nil))
}

func TestComputeProof_ShortSecret(t *testing.T) {
	ch := testChallenge(t)
	// при этом a секрет S занимает 31 байт
	a := unhex(t, "dee3f6a353793fe6659177a590ac11bdcf37fc")

	p, err := ComputeProof("TEST", HashPassword("TEST", "TEST"), ch, bytes.NewReader(a))
	require.NoError(t, err)

	assert.Equal(t, unhex(t, "e9e298364e904bfd342353414bd13e11bf2c827c7089b0c97d783c0a9a53797e"), p.A[:])
	assert.Equal(t, unhex(t, "30b7ef20a64ee2dc7f968007a9a8a868241d69f23d25d1727779dfa22369c25091a283fa9e46b51e"), p.Key[:])
	assert.Equal(t, unhex(t, "2f827b9aa62314407927e276a4414c81ad6edbd9"), p.M1[:])
	assert.Equal(t, unhex(t, "8703ab25a492a974d1228ef01df5ddfe433a8593"), p.M2[:])
}

func TestSecretBytes(t *testing.T) {
	s := IntFromLE(unhex(t, "8a558614299cb6f8b19f8dcc62729889b3569926ae54c9ea57729dcc09a4b8"))
	assert.Equal(t, unhex(t, "008a558614299cb6f8b19f8dcc62729889b3569926ae54c9ea57729dcc09a4b8"), SecretBytes(s))

	full := unhex(t, "0cfc5a08a00071c4f4f8dd7bba783a50059877232c2a1d9ce78fcebb77e12236")
	assert.Equal(t, full, SecretBytes(IntFromLE(full)))
	assert.Equal(t, make([]byte, PublicKeySize), SecretBytes(new(big.Int)))
}

func TestComputeProof_WrongPasswordChangesKey(t *testing.T) {
	ch := testChallenge(t)

	good, err := ComputeProof("TEST", HashPassword("TEST", "TEST"), ch, bytes.NewReader(seq(0x60, privateKeySize)))
	require.NoError(t, err)
	bad, err := ComputeProof("TEST", HashPassword("TEST", "WRONG"), ch, bytes.NewReader(seq(0x60, privateKeySize)))
	require.NoError(t, err)

	assert.Equal(t, good.A, bad.A, "A does not depend on the password")
	assert.NotEqual(t, good.Key, bad.Key)
	assert.NotEqual(t, good.M1, bad.M1)
}

func TestComputeProof_BadChallenge(t *testing.T) {
	hash := HashPassword("TEST", "TEST")

	tests := []struct {
		name   string
		mutate func(*Challenge)
	}{
		{"empty modulus", func(ch *Challenge) { ch.N = nil }},
		{"oversized modulus", func(ch *Challenge) { ch.N = make([]byte, PublicKeySize+1) }},
		{"empty generator", func(ch *Challenge) { ch.G = nil }},
		{"zero modulus", func(ch *Challenge) { ch.N = make([]byte, PublicKeySize) }},
		{"zero B", func(ch *Challenge) { ch.B = [PublicKeySize]byte{} }},
		{"B equal to N", func(ch *Challenge) { copy(ch.B[:], ch.N) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := testChallenge(t)
			tt.mutate(&ch)

			_, err := ComputeProof("TEST", hash, ch, bytes.NewReader(seq(0x60, privateKeySize)))
			require.ErrorIs(t, err, ErrBadChallenge)
		})
	}
}

func TestComputeProof_ShortRandom(t *testing.T) {
	_, err := ComputeProof("TEST", HashPassword("TEST", "TEST"), testChallenge(t), bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadChallenge)
}

func TestComputeProof_ZeroExponent(t *testing.T) {
	ch := testChallenge(t)
	// a = 0 gives A = g^0 = 1, which is still a valid public key
	random := bytes.NewReader(append(make([]byte, privateKeySize), seq(0x60, privateKeySize)...))

	p, err := ComputeProof("TEST", HashPassword("TEST", "TEST"), ch, random)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), IntFromLE(p.A[:]))
}

func TestIntLE(t *testing.T) {
	x := IntFromLE([]byte{0x01, 0x02, 0x03})
	assert.Equal(t, int64(0x030201), x.Int64())

	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x00, 0x00}, IntToLE(x, 5))
	assert.Equal(t, make([]byte, 4), IntToLE(new(big.Int), 4))
}

func TestDeriveSessionKey(t *testing.T) {
	s := unhex(t, "0cfc5a08a00071c4f4f8dd7bba783a50059877232c2a1d9ce78fcebb77e12236")
	want := unhex(t, "bb83df52887833e5305c4d6731fc7c8f6e6302c1aa137523678dd3b43ccb901f87afb1926cff0d23")

	k := DeriveSessionKey(s)
	assert.Equal(t, want, k.Bytes())
	assert.False(t, k.IsZero())
}

func TestReconnectProof_KnownVector(t *testing.T) {
	var key SessionKey
	copy(key[:], unhex(t, "bb83df52887833e5305c4d6731fc7c8f6e6302c1aa137523678dd3b43ccb901f87afb1926cff0d23"))

	r2, r3 := ReconnectProof("TEST", seq(0x40, 16), seq(0x10, 16), key)

	assert.Equal(t, unhex(t, "e31857286fc0f916c43ee460a2b9a95d5bcebd16"), r2[:])
	assert.Equal(t, unhex(t, "980d723e1071cfa68466310216c896db7dd25a6d"), r3[:])
}

func BenchmarkComputeProof(b *testing.B) {
	ch := Challenge{G: []byte{7}}
	ch.N, _ = hex.DecodeString("b79b3e2a87823cab8f5ebfbf8eb10108535006298b5badbd5b53e1895e644b89")
	bb, _ := hex.DecodeString("e96cb2645922e9bda44ec0067ab910c5d2c2117d37270ba39026266e2f9b3b15")
	copy(ch.B[:], bb)
	copy(ch.Salt[:], seq(0xA0, SaltSize))
	hash := HashPassword("TEST", "TEST")
	a := seq(0x60, privateKeySize)

	b.ResetTimer()
	for b.Loop() {
		if _, err := ComputeProof("TEST", hash, ch, bytes.NewReader(a)); err != nil {
			b.Fatal(err)
		}
	}
}
