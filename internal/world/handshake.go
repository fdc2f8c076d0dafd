package world

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/udisondev/hermesgo/internal/auth"
	"github.com/udisondev/hermesgo/internal/protocol/packet"
	"github.com/udisondev/hermesgo/internal/version"
)

// AuthOK is the success code of the world auth response.
const AuthOK = 0x0C

// AuthChallenge is the first message of the world server.
type AuthChallenge struct {
	ServerSeed uint32
	// Only on builds with Features.AuthChallengeSeeds.
	Seed1, Seed2 [16]byte
}

// ParseAuthChallenge decodes the payload of ServerAuthChallenge.
func ParseAuthChallenge(payload []byte, f version.Features) (AuthChallenge, error) {
	var ch AuthChallenge
	r := packet.NewReader(payload)

	if f.AuthChallengeSeeds {
		if err := r.Skip(4); err != nil {
			return ch, fmt.Errorf("reading auth challenge: %w", err)
		}
	}
	seed, err := r.ReadUint32()
	if err != nil {
		return ch, fmt.Errorf("reading server seed: %w", err)
	}
	ch.ServerSeed = seed

	if f.AuthChallengeSeeds {
		if ch.Seed1, err = r.ReadArray16(); err != nil {
			return ch, fmt.Errorf("reading challenge seeds: %w", err)
		}
		if ch.Seed2, err = r.ReadArray16(); err != nil {
			return ch, fmt.Errorf("reading challenge seeds: %w", err)
		}
	}
	return ch, nil
}

// Encode builds the payload of ServerAuthChallenge.
func (ch AuthChallenge) Encode(f version.Features) []byte {
	w := packet.NewWriter(40)
	if f.AuthChallengeSeeds {
		w.WriteUint32(1)
	}
	w.WriteUint32(ch.ServerSeed)
	if f.AuthChallengeSeeds {
		w.WriteBytes(ch.Seed1[:])
		w.WriteBytes(ch.Seed2[:])
	}
	return w.Bytes()
}

// AuthSession is the client answer to the auth challenge.
type AuthSession struct {
	Build      version.Build
	ServerID   uint32
	Username   string
	ClientSeed uint32

	LoginServerType uint32
	RegionID        uint32
	BattlegroupID   uint32
	RealmID         uint32
	DosResponse     uint64

	Digest [sha1.Size]byte
	// Addons is the size-prefixed compressed addon list.
	Addons []byte
}

// AuthDigest computes H(UPPER(user), 0u32, clientSeed, serverSeed, K).
func AuthDigest(username string, clientSeed, serverSeed uint32, key auth.SessionKey) [sha1.Size]byte {
	var buf [4]byte
	h := sha1.New()
	h.Write([]byte(strings.ToUpper(username)))
	h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:], clientSeed)
	h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:], serverSeed)
	h.Write(buf[:])
	h.Write(key[:])

	var out [sha1.Size]byte
	h.Sum(out[:0])
	return out
}

// Verify checks the digest against the server seed and key.
func (s AuthSession) Verify(serverSeed uint32, key auth.SessionKey) bool {
	want := AuthDigest(s.Username, s.ClientSeed, serverSeed, key)
	return subtle.ConstantTimeCompare(want[:], s.Digest[:]) == 1
}

// Encode builds the payload of ClientAuthSession.
func (s AuthSession) Encode(f version.Features) []byte {
	w := packet.NewWriter(128 + len(s.Addons))
	w.WriteUint32(uint32(s.Build))
	w.WriteUint32(s.ServerID)
	w.WriteCString(strings.ToUpper(s.Username))
	if f.AuthSessionLoginServerType {
		w.WriteUint32(s.LoginServerType)
	}
	w.WriteUint32(s.ClientSeed)
	if f.AuthSessionRealmRegion {
		w.WriteUint32(s.RegionID)
		w.WriteUint32(s.BattlegroupID)
		w.WriteUint32(s.RealmID)
	}
	if f.AuthSessionDosResponse {
		w.WriteUint64(s.DosResponse)
	}
	w.WriteBytes(s.Digest[:])
	w.WriteBytes(s.Addons)
	return w.Bytes()
}

// ParseAuthSession decodes the payload of ClientAuthSession.
func ParseAuthSession(payload []byte, f version.Features) (AuthSession, error) {
	var s AuthSession
	r := packet.NewReader(payload)

	build, err := r.ReadUint32()
	if err != nil {
		return s, fmt.Errorf("reading build: %w", err)
	}
	s.Build = version.Build(build)
	if s.ServerID, err = r.ReadUint32(); err != nil {
		return s, fmt.Errorf("reading server id: %w", err)
	}
	if s.Username, err = r.ReadCString(); err != nil {
		return s, fmt.Errorf("reading username: %w", err)
	}
	if f.AuthSessionLoginServerType {
		if s.LoginServerType, err = r.ReadUint32(); err != nil {
			return s, fmt.Errorf("reading login server type: %w", err)
		}
	}
	if s.ClientSeed, err = r.ReadUint32(); err != nil {
		return s, fmt.Errorf("reading client seed: %w", err)
	}
	if f.AuthSessionRealmRegion {
		for _, dst := range []*uint32{&s.RegionID, &s.BattlegroupID, &s.RealmID} {
			if *dst, err = r.ReadUint32(); err != nil {
				return s, fmt.Errorf("reading realm region: %w", err)
			}
		}
	}
	if f.AuthSessionDosResponse {
		if s.DosResponse, err = r.ReadUint64(); err != nil {
			return s, fmt.Errorf("reading dos response: %w", err)
		}
	}
	digest, err := r.ReadBytes(sha1.Size)
	if err != nil {
		return s, fmt.Errorf("reading digest: %w", err)
	}
	copy(s.Digest[:], digest)
	s.Addons = r.ReadToEnd()
	return s, nil
}

// AuthResponse is the server verdict on the auth session.
type AuthResponse struct {
	Code          byte
	BillingTime   uint32
	BillingFlags  byte
	BillingRested uint32
	Expansion     byte
}

// ParseAuthResponse decodes the payload of ServerAuthResponse. Only the
// code is required; billing fields of a successful response are read
// when present.
func ParseAuthResponse(payload []byte, f version.Features) (AuthResponse, error) {
	var resp AuthResponse
	r := packet.NewReader(payload)

	code, err := r.ReadUint8()
	if err != nil {
		return resp, fmt.Errorf("reading auth response code: %w", err)
	}
	resp.Code = code
	if code != AuthOK {
		return resp, nil
	}

	// поля биллинга опциональны, часть эмуляторов их не шлёт
	if resp.BillingTime, err = r.ReadUint32(); err != nil {
		return resp, nil
	}
	if resp.BillingFlags, err = r.ReadUint8(); err != nil {
		return resp, nil
	}
	if resp.BillingRested, err = r.ReadUint32(); err != nil {
		return resp, nil
	}
	if f.AuthResponseExpansion {
		resp.Expansion, _ = r.ReadUint8()
	}
	return resp, nil
}

// Encode builds the payload of ServerAuthResponse.
func (resp AuthResponse) Encode(f version.Features) []byte {
	w := packet.NewWriter(11)
	w.WriteUint8(resp.Code)
	if resp.Code != AuthOK {
		return w.Bytes()
	}
	w.WriteUint32(resp.BillingTime)
	w.WriteUint8(resp.BillingFlags)
	w.WriteUint32(resp.BillingRested)
	if f.AuthResponseExpansion {
		w.WriteUint8(resp.Expansion)
	}
	return w.Bytes()
}
