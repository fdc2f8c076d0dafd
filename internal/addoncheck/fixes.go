package addoncheck

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fixes.yaml
var embeddedFixes []byte

// ErrInvalidFix is returned for fix table entries with bad hex or widths.
var ErrInvalidFix = errors.New("invalid addon fix")

// Fix is the answer to one challenge value of a known fingerprint.
type Fix struct {
	Actual   [16]byte
	Accept   []byte
	Buffer   []byte
	Checksum []byte
}

// FixEntry groups the fixes of one fingerprint.
type FixEntry struct {
	Expected [16]byte
	Fixes    []Fix
}

// Find returns the fix for actual.
func (e FixEntry) Find(actual [16]byte) (Fix, bool) {
	for _, f := range e.Fixes {
		if f.Actual == actual {
			return f, true
		}
	}
	return Fix{}, false
}

// FixTable is an immutable lookup of fix entries by fingerprint.
type FixTable struct {
	entries map[[16]byte]FixEntry
}

// Lookup returns the entry for fingerprint.
func (t *FixTable) Lookup(fingerprint [16]byte) (FixEntry, bool) {
	if t == nil {
		return FixEntry{}, false
	}
	e, ok := t.entries[fingerprint]
	return e, ok
}

// Len returns the number of fingerprints in the table.
func (t *FixTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Merge returns a table with the entries of both; fixes of a fingerprint
// present in both tables are concatenated, t first.
func (t *FixTable) Merge(other *FixTable) *FixTable {
	out := &FixTable{entries: make(map[[16]byte]FixEntry, t.Len()+other.Len())}
	for _, src := range []*FixTable{t, other} {
		if src == nil {
			continue
		}
		for fp, e := range src.entries {
			cur := out.entries[fp]
			cur.Expected = fp
			cur.Fixes = append(cur.Fixes, e.Fixes...)
			out.entries[fp] = cur
		}
	}
	return out
}

type yamlFix struct {
	Actual   string `yaml:"actual"`
	Accept   string `yaml:"accept"`
	Buffer   string `yaml:"buffer"`
	Checksum string `yaml:"checksum"`
}

type yamlEntry struct {
	Expected string    `yaml:"expected"`
	Fixes    []yamlFix `yaml:"fixes"`
}

// ParseFixes decodes a YAML fix table.
func ParseFixes(data []byte) (*FixTable, error) {
	var raw []yamlEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing addon fixes: %w", err)
	}

	t := &FixTable{entries: make(map[[16]byte]FixEntry, len(raw))}
	for i, re := range raw {
		expected, err := decode16(re.Expected)
		if err != nil {
			return nil, fmt.Errorf("entry %d expected: %w", i, err)
		}

		e := t.entries[expected]
		e.Expected = expected
		for j, rf := range re.Fixes {
			fix, err := rf.decode()
			if err != nil {
				return nil, fmt.Errorf("entry %d fix %d: %w", i, j, err)
			}
			e.Fixes = append(e.Fixes, fix)
		}
		t.entries[expected] = e
	}
	return t, nil
}

func (rf yamlFix) decode() (Fix, error) {
	var f Fix
	var err error

	if f.Actual, err = decode16(rf.Actual); err != nil {
		return f, fmt.Errorf("actual: %w", err)
	}
	if f.Accept, err = hex.DecodeString(rf.Accept); err != nil {
		return f, fmt.Errorf("accept: %w", ErrInvalidFix)
	}
	// ключи перезасева не могут быть пустыми
	if f.Buffer, err = hex.DecodeString(rf.Buffer); err != nil || len(f.Buffer) == 0 {
		return f, fmt.Errorf("buffer: %w", ErrInvalidFix)
	}
	if f.Checksum, err = hex.DecodeString(rf.Checksum); err != nil || len(f.Checksum) == 0 {
		return f, fmt.Errorf("checksum: %w", ErrInvalidFix)
	}
	return f, nil
}

func decode16(s string) ([16]byte, error) {
	var out [16]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(out) {
		return out, fmt.Errorf("%q: %w", s, ErrInvalidFix)
	}
	copy(out[:], b)
	return out, nil
}

// LoadFixes reads a YAML fix table from path.
func LoadFixes(path string) (*FixTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading addon fixes %s: %w", path, err)
	}
	return ParseFixes(data)
}

var defaultFixes = sync.OnceValues(func() (*FixTable, error) {
	return ParseFixes(embeddedFixes)
})

// DefaultFixes returns the table compiled into the binary.
func DefaultFixes() (*FixTable, error) {
	return defaultFixes()
}
