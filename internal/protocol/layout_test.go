package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_AppendParse(t *testing.T) {
	tests := []struct {
		name   string
		layout HeaderLayout
		h      Header
		want   []byte
	}{
		{"server", HeaderLayout{SizeWidth: 2, OpcodeWidth: 2}, Header{Size: 0x0102, Opcode: 0x1EC}, []byte{0x01, 0x02, 0xEC, 0x01}},
		{"client", HeaderLayout{SizeWidth: 2, OpcodeWidth: 4}, Header{Size: 6, Opcode: 0x1ED}, []byte{0x00, 0x06, 0xED, 0x01, 0x00, 0x00}},
		{"large small", HeaderLayout{SizeWidth: 2, OpcodeWidth: 2, LargeSize: true}, Header{Size: 0x7FFF, Opcode: 0x3B}, []byte{0x7F, 0xFF, 0x3B, 0x00}},
		{"large", HeaderLayout{SizeWidth: 2, OpcodeWidth: 2, LargeSize: true}, Header{Size: 0x012345, Opcode: 0x3B}, []byte{0x81, 0x23, 0x45, 0x3B, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := AppendHeader(nil, tt.layout, tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw)
			assert.Equal(t, tt.layout.Len(tt.h.Size), len(raw))

			got, err := ParseHeader(tt.layout, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.h, got)
		})
	}
}

func TestHeader_Errors(t *testing.T) {
	l := HeaderLayout{SizeWidth: 2, OpcodeWidth: 2}

	_, err := AppendHeader(nil, l, Header{Size: 0x10000})
	require.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = ParseHeader(l, nil)
	require.ErrorIs(t, err, ErrMalformedHeader)

	_, err = ParseHeader(l, []byte{0x00, 0x02, 0x01})
	require.ErrorIs(t, err, ErrMalformedHeader)
}
