package protocol

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/udisondev/hermesgo/internal/version"
)

// HeaderLayout describes the header of one direction, see version.HeaderLayout.
type HeaderLayout = version.HeaderLayout

// largeSizeFlag marks a 3-byte size field in the first header byte.
const largeSizeFlag = 0x80

// Header is a decoded frame header. Size counts the opcode bytes plus the payload.
type Header struct {
	Size   uint32
	Opcode uint32
}

// AppendHeader appends the encoded header to dst.
func AppendHeader(dst []byte, l HeaderLayout, h Header) ([]byte, error) {
	if h.Size > l.MaxSize() {
		return nil, fmt.Errorf("size %d exceeds %d: %w", h.Size, l.MaxSize(), ErrFrameTooLarge)
	}

	b := cryptobyte.NewBuilder(dst)
	switch {
	case l.Len(h.Size) > l.SizeWidth+l.OpcodeWidth:
		b.AddUint24(h.Size | largeSizeFlag<<16)
	case l.SizeWidth == 2:
		b.AddUint16(uint16(h.Size))
	default:
		return nil, fmt.Errorf("size width %d: %w", l.SizeWidth, ErrMalformedHeader)
	}

	switch l.OpcodeWidth {
	case 2:
		b.AddBytes(binary.LittleEndian.AppendUint16(nil, uint16(h.Opcode)))
	case 4:
		b.AddBytes(binary.LittleEndian.AppendUint32(nil, h.Opcode))
	default:
		return nil, fmt.Errorf("opcode width %d: %w", l.OpcodeWidth, ErrMalformedHeader)
	}

	return b.Bytes()
}

// ParseHeader decodes a plaintext header. raw must be exactly l.Len(size) bytes,
// which the caller learns from the first byte (see IsLarge).
func ParseHeader(l HeaderLayout, raw []byte) (Header, error) {
	var h Header
	if len(raw) == 0 {
		return h, fmt.Errorf("empty header: %w", ErrMalformedHeader)
	}
	s := cryptobyte.String(raw)

	if IsLarge(l, raw[0]) {
		var size uint32
		if !s.ReadUint24(&size) {
			return h, fmt.Errorf("reading large size: %w", ErrMalformedHeader)
		}
		h.Size = size &^ (largeSizeFlag << 16)
	} else {
		var size uint16
		if !s.ReadUint16(&size) {
			return h, fmt.Errorf("reading size: %w", ErrMalformedHeader)
		}
		h.Size = uint32(size)
	}

	var op []byte
	if !s.ReadBytes(&op, l.OpcodeWidth) || !s.Empty() {
		return h, fmt.Errorf("reading opcode: %w", ErrMalformedHeader)
	}
	switch l.OpcodeWidth {
	case 2:
		h.Opcode = uint32(binary.LittleEndian.Uint16(op))
	case 4:
		h.Opcode = binary.LittleEndian.Uint32(op)
	default:
		return h, fmt.Errorf("opcode width %d: %w", l.OpcodeWidth, ErrMalformedHeader)
	}

	return h, nil
}

// IsLarge reports whether a header starting with first uses the 3-byte size field.
func IsLarge(l HeaderLayout, first byte) bool {
	return l.LargeSize && first&largeSizeFlag != 0
}
