package auth

import (
	"fmt"
	"net"
	"strconv"

	"github.com/udisondev/hermesgo/internal/protocol/packet"
	"github.com/udisondev/hermesgo/internal/version"
)

// RealmFlags describe the state of a realm in the realm list.
type RealmFlags byte

const (
	RealmFlagVersionMismatch RealmFlags = 0x01
	RealmFlagOffline         RealmFlags = 0x02
	RealmFlagSpecifyBuild    RealmFlags = 0x04
	RealmFlagRecommended     RealmFlags = 0x20
	RealmFlagNewPlayers      RealmFlags = 0x40
	RealmFlagFull            RealmFlags = 0x80
)

// Realm is one entry of the realm list.
type Realm struct {
	ID         byte
	Type       uint32
	Locked     bool
	Flags      RealmFlags
	Name       string
	Address    string
	Population float32
	Characters byte
	Timezone   byte

	// Set only when Flags has RealmFlagSpecifyBuild.
	Major, Minor, Patch byte
	Build               version.Build
}

// HostPort splits the realm address.
func (r Realm) HostPort() (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(r.Address)
	if err != nil {
		return "", 0, fmt.Errorf("splitting realm address %q: %w", r.Address, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("parsing realm port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}

// Online reports whether the realm accepts logins.
func (r Realm) Online() bool {
	return r.Flags&RealmFlagOffline == 0
}

// ParseRealmList decodes the body of a realm list response
// (everything after the command byte and the u16 size).
func ParseRealmList(body []byte, f version.Features) ([]Realm, error) {
	r := packet.NewReader(body)

	if err := r.Skip(4); err != nil {
		return nil, fmt.Errorf("reading realm list header: %w", err)
	}

	var count int
	if f.RealmCountWidth == 1 {
		n, err := r.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("reading realm count: %w", err)
		}
		count = int(n)
	} else {
		n, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("reading realm count: %w", err)
		}
		count = int(n)
	}

	realms := make([]Realm, 0, count)
	for i := range count {
		realm, err := readRealm(r, f)
		if err != nil {
			return nil, fmt.Errorf("reading realm %d: %w", i, err)
		}
		realms = append(realms, realm)
	}
	return realms, nil
}

func readRealm(r *packet.Reader, f version.Features) (Realm, error) {
	var realm Realm
	var err error

	if f.RealmTypeLocked {
		var typ, locked byte
		if typ, err = r.ReadUint8(); err != nil {
			return realm, err
		}
		if locked, err = r.ReadUint8(); err != nil {
			return realm, err
		}
		realm.Type = uint32(typ)
		realm.Locked = locked != 0
	} else if realm.Type, err = r.ReadUint32(); err != nil {
		return realm, err
	}

	flags, err := r.ReadUint8()
	if err != nil {
		return realm, err
	}
	realm.Flags = RealmFlags(flags)

	if realm.Name, err = r.ReadCString(); err != nil {
		return realm, err
	}
	if realm.Address, err = r.ReadCString(); err != nil {
		return realm, err
	}
	if realm.Population, err = r.ReadFloat32(); err != nil {
		return realm, err
	}
	if realm.Characters, err = r.ReadUint8(); err != nil {
		return realm, err
	}
	if realm.Timezone, err = r.ReadUint8(); err != nil {
		return realm, err
	}
	if realm.ID, err = r.ReadUint8(); err != nil {
		return realm, err
	}

	if realm.Flags&RealmFlagSpecifyBuild != 0 {
		if realm.Major, err = r.ReadUint8(); err != nil {
			return realm, err
		}
		if realm.Minor, err = r.ReadUint8(); err != nil {
			return realm, err
		}
		if realm.Patch, err = r.ReadUint8(); err != nil {
			return realm, err
		}
		build, err := r.ReadUint16()
		if err != nil {
			return realm, err
		}
		realm.Build = version.Build(build)
	}
	return realm, nil
}

// EncodeRealmList builds a realm list body in the layout ParseRealmList reads.
func EncodeRealmList(realms []Realm, f version.Features) []byte {
	w := packet.NewWriter(64 * (len(realms) + 1))
	w.WriteUint32(0)
	if f.RealmCountWidth == 1 {
		w.WriteUint8(uint8(len(realms)))
	} else {
		w.WriteUint16(uint16(len(realms)))
	}

	for _, realm := range realms {
		if f.RealmTypeLocked {
			w.WriteUint8(uint8(realm.Type))
			locked := byte(0)
			if realm.Locked {
				locked = 1
			}
			w.WriteUint8(locked)
		} else {
			w.WriteUint32(realm.Type)
		}
		w.WriteUint8(uint8(realm.Flags))
		w.WriteCString(realm.Name)
		w.WriteCString(realm.Address)
		w.WriteFloat32(realm.Population)
		w.WriteUint8(realm.Characters)
		w.WriteUint8(realm.Timezone)
		w.WriteUint8(realm.ID)
		if realm.Flags&RealmFlagSpecifyBuild != 0 {
			w.WriteUint8(realm.Major)
			w.WriteUint8(realm.Minor)
			w.WriteUint8(realm.Patch)
			w.WriteUint16(uint16(realm.Build))
		}
	}

	// footer
	if f.RealmCountWidth == 1 {
		w.WriteUint16(0x0002)
	} else {
		w.WriteUint16(0x0010)
	}
	return w.Bytes()
}
