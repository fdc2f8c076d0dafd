package opcode

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/udisondev/hermesgo/internal/version"
)

// ErrNoRepresentation is returned when a canonical opcode has no raw value in a build.
var ErrNoRepresentation = errors.New("opcode has no representation in this version")

type mapping struct {
	toCanonical map[uint32]Opcode
	toRaw       map[Opcode]uint32
}

// Table translates between raw and canonical opcodes for every expansion.
// It is immutable after construction and safe for concurrent use.
type Table struct {
	byExpansion []mapping
}

// NewTable builds the translation maps by unioning the per-expansion tables.
func NewTable() *Table {
	t := &Table{byExpansion: make([]mapping, len(expansionTables))}

	acc := make(map[Opcode]uint32)
	for i, additions := range expansionTables {
		maps.Copy(acc, additions)

		m := mapping{
			toCanonical: make(map[uint32]Opcode, len(acc)),
			toRaw:       maps.Clone(acc),
		}
		for op, raw := range acc {
			m.toCanonical[raw] = op
		}
		t.byExpansion[i] = m
	}
	return t
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Default returns the process-wide table.
func Default() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = NewTable()
	})
	return defaultTable
}

func (t *Table) mapping(build version.Build) mapping {
	exp := int(version.Expansion(build))
	if exp >= len(t.byExpansion) {
		exp = len(t.byExpansion) - 1
	}
	return t.byExpansion[exp]
}

// ToCanonical returns the canonical opcode for a raw wire value, or Unknown.
func (t *Table) ToCanonical(build version.Build, raw uint32) Opcode {
	op, ok := t.mapping(build).toCanonical[raw]
	if !ok {
		return Unknown
	}
	return op
}

// ToRaw returns the wire value of op in the given build.
func (t *Table) ToRaw(build version.Build, op Opcode) (uint32, error) {
	raw, ok := t.mapping(build).toRaw[op]
	if !ok {
		return 0, fmt.Errorf("%s in build %d: %w", op, build, ErrNoRepresentation)
	}
	return raw, nil
}
