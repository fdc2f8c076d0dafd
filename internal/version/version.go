// Package version describes the legacy protocol builds the proxy can speak.
//
// Everything that differs between builds (header widths, header cipher
// generation, optional wire fields) is resolved here from static tables so
// that adding a build is a data change, not a code change.
package version

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// Build is a legacy client build number as reported on the wire.
type Build uint32

// Builds known to the proxy. Not all of them are supported as targets:
// some only mark a boundary where a wire field changes.
const (
	V1_12_1  Build = 5875
	V1_12_2  Build = 6005
	V1_12_3  Build = 6141
	V2_0_1   Build = 6180
	V2_0_3   Build = 6299
	V2_4_0   Build = 8089
	V2_4_3   Build = 8606
	V3_0_2   Build = 9056
	V3_2_0   Build = 10192
	V3_3_5a  Build = 12340
	MaxBuild Build = 0xFFFF
)

func (b Build) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// ErrUnsupportedBuild is returned by Lookup for builds without a version entry.
var ErrUnsupportedBuild = errors.New("unsupported build")

// Generation selects the header cipher key derivation.
type Generation int

const (
	// GenerationA seeds the header keystreams with the raw session key.
	GenerationA Generation = iota
	// GenerationB expands the session key per direction before seeding.
	GenerationB
)

func (g Generation) String() string {
	switch g {
	case GenerationA:
		return "A"
	case GenerationB:
		return "B"
	default:
		return "UNKNOWN"
	}
}

// HeaderLayout describes one direction of the world frame header.
// The size field is big-endian and counts the opcode bytes plus the payload;
// the opcode field is little-endian.
type HeaderLayout struct {
	SizeWidth   int
	OpcodeWidth int
	// LargeSize enables a 3-byte size field when the first size byte has
	// bit 0x80 set (server frames of 3.x builds).
	LargeSize bool
}

// Len returns the header length for a frame of the given size field value.
func (l HeaderLayout) Len(size uint32) int {
	if l.LargeSize && size > maxSmallSize {
		return l.SizeWidth + 1 + l.OpcodeWidth
	}
	return l.SizeWidth + l.OpcodeWidth
}

// MaxLen returns the largest header this layout can produce.
func (l HeaderLayout) MaxLen() int {
	if l.LargeSize {
		return l.SizeWidth + 1 + l.OpcodeWidth
	}
	return l.SizeWidth + l.OpcodeWidth
}

// MaxSize returns the largest size field value this layout can carry.
func (l HeaderLayout) MaxSize() uint32 {
	if l.LargeSize {
		return maxLargeSize
	}
	return 1<<(8*l.SizeWidth) - 1
}

const (
	maxSmallSize = 0x7FFF
	maxLargeSize = 0x7FFFFF
)

// Info is everything the core needs to know about one build.
type Info struct {
	Build     Build
	Expansion byte
	Major     byte
	Minor     byte
	Patch     byte

	Crypt     Generation
	CryptDrop int

	// ServerHeader is used for server→client frames, ClientHeader for
	// client→server frames.
	ServerHeader HeaderLayout
	ClientHeader HeaderLayout

	Features Features
}

func (i Info) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", i.Major, i.Minor, i.Patch, i.Build)
}

var (
	legacyServerHeader = HeaderLayout{SizeWidth: 2, OpcodeWidth: 2}
	largeServerHeader  = HeaderLayout{SizeWidth: 2, OpcodeWidth: 2, LargeSize: true}
	clientHeader       = HeaderLayout{SizeWidth: 2, OpcodeWidth: 4}
)

var infos = []Info{
	{Build: V1_12_1, Expansion: 0, Major: 1, Minor: 12, Patch: 1, Crypt: GenerationA, ServerHeader: legacyServerHeader, ClientHeader: clientHeader},
	{Build: V1_12_2, Expansion: 0, Major: 1, Minor: 12, Patch: 2, Crypt: GenerationA, ServerHeader: legacyServerHeader, ClientHeader: clientHeader},
	{Build: V1_12_3, Expansion: 0, Major: 1, Minor: 12, Patch: 3, Crypt: GenerationA, ServerHeader: legacyServerHeader, ClientHeader: clientHeader},
	{Build: V2_4_3, Expansion: 1, Major: 2, Minor: 4, Patch: 3, Crypt: GenerationB, ServerHeader: legacyServerHeader, ClientHeader: clientHeader},
	{Build: V3_3_5a, Expansion: 2, Major: 3, Minor: 3, Patch: 5, Crypt: GenerationB, CryptDrop: 1024, ServerHeader: largeServerHeader, ClientHeader: clientHeader},
}

var byBuild = func() map[Build]Info {
	m := make(map[Build]Info, len(infos))
	for _, info := range infos {
		info.Features = featuresFor(info.Build, info.Expansion)
		m[info.Build] = info
	}
	return m
}()

// Lookup returns the version entry for build.
func Lookup(build Build) (Info, error) {
	info, ok := byBuild[build]
	if !ok {
		return Info{}, fmt.Errorf("build %d: %w", build, ErrUnsupportedBuild)
	}
	return info, nil
}

// Supported returns all supported builds in ascending order.
func Supported() []Build {
	builds := make([]Build, 0, len(byBuild))
	for b := range byBuild {
		builds = append(builds, b)
	}
	slices.Sort(builds)
	return builds
}

// Expansion returns the expansion index a build belongs to
// (0 classic, 1 first expansion, 2 second expansion).
func Expansion(build Build) byte {
	return pick(expansionRanges, build)
}
