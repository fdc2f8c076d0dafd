package world

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/udisondev/hermesgo/internal/protocol/packet"
	"github.com/udisondev/hermesgo/internal/version"
)

// blizzardAddonCRC is the signature CRC reported for stock interface addons.
const blizzardAddonCRC = 0x4C1C776D

// maxAddonListSize bounds the declared uncompressed size of an addon list.
const maxAddonListSize = 1 << 16

// ErrAddonList is returned for malformed addon lists.
var ErrAddonList = errors.New("malformed addon list")

// Addon is one entry of the addon list sent with the auth session.
type Addon struct {
	Name    string
	Enabled bool
	CRC     uint32
	Unknown uint32
}

// DefaultAddons is the stock interface addon set reported by an
// unmodified client.
func DefaultAddons() []Addon {
	names := []string{
		"Blizzard_AuctionUI",
		"Blizzard_BattlefieldMinimap",
		"Blizzard_BindingUI",
		"Blizzard_CombatText",
		"Blizzard_CraftUI",
		"Blizzard_GMSurveyUI",
		"Blizzard_InspectUI",
		"Blizzard_MacroUI",
		"Blizzard_RaidUI",
		"Blizzard_TalentUI",
		"Blizzard_TradeSkillUI",
		"Blizzard_TrainerUI",
	}
	addons := make([]Addon, len(names))
	for i, n := range names {
		addons[i] = Addon{Name: n, Enabled: true, CRC: blizzardAddonCRC}
	}
	return addons
}

// EncodeAddonList serialises and compresses addons, prefixed with the
// uncompressed size.
func EncodeAddonList(addons []Addon, f version.Features, timestamp uint32) ([]byte, error) {
	w := packet.NewWriter(32 * (len(addons) + 1))
	if f.AddonListCounted {
		w.WriteUint32(uint32(len(addons)))
	}
	for _, a := range addons {
		w.WriteCString(a.Name)
		enabled := byte(0)
		if a.Enabled {
			enabled = 1
		}
		w.WriteUint8(enabled)
		w.WriteUint32(a.CRC)
		w.WriteUint32(a.Unknown)
	}
	if f.AddonListCounted {
		w.WriteUint32(timestamp)
	}
	raw := w.Bytes()

	var buf bytes.Buffer
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(raw)))
	buf.Write(size[:])

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating addon compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compressing addon list: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing addon list: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeAddonList reverses EncodeAddonList.
func DecodeAddonList(blob []byte, f version.Features) ([]Addon, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("blob of %d bytes: %w", len(blob), ErrAddonList)
	}
	size := binary.LittleEndian.Uint32(blob)
	if size > maxAddonListSize {
		return nil, fmt.Errorf("declared size %d: %w", size, ErrAddonList)
	}

	zr, err := zlib.NewReader(bytes.NewReader(blob[4:]))
	if err != nil {
		return nil, fmt.Errorf("opening addon list: %w", err)
	}
	defer zr.Close()

	raw := make([]byte, size)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("decompressing addon list: %w", err)
	}

	r := packet.NewReader(raw)
	count := -1
	if f.AddonListCounted {
		n, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading addon count: %w", err)
		}
		count = int(n)
	}

	var addons []Addon
	tail := 0
	if f.AddonListCounted {
		tail = 4
	}
	for r.Remaining() > tail && count != 0 {
		var a Addon
		if a.Name, err = r.ReadCString(); err != nil {
			return nil, fmt.Errorf("reading addon name: %w", err)
		}
		enabled, err := r.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("reading addon %s: %w", a.Name, err)
		}
		a.Enabled = enabled != 0
		if a.CRC, err = r.ReadUint32(); err != nil {
			return nil, fmt.Errorf("reading addon %s: %w", a.Name, err)
		}
		if a.Unknown, err = r.ReadUint32(); err != nil {
			return nil, fmt.Errorf("reading addon %s: %w", a.Name, err)
		}
		addons = append(addons, a)
		count--
	}
	if count > 0 {
		return nil, fmt.Errorf("%d addons missing: %w", count, ErrAddonList)
	}
	return addons, nil
}
