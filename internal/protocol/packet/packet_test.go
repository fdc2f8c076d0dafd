package packet

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterReader_Scalars(t *testing.T) {
	w := NewWriter(32)
	w.WriteUint8(0x42)
	w.WriteUint16(0x1234)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0102030405060708)
	w.WriteCString("WoW")
	w.WriteFloat32(1.5)

	want := []byte{
		0x42,
		0x34, 0x12,
		0xEF, 0xBE, 0xAD, 0xDE,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		'W', 'o', 'W', 0,
		0x00, 0x00, 0xC0, 0x3F,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("encoded %x, want %x", w.Bytes(), want)
	}

	r := NewReader(w.Bytes())
	if v, err := r.ReadUint8(); err != nil || v != 0x42 {
		t.Fatalf("ReadUint8 = %x, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadUint16 = %x, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadUint32 = %x, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadUint64 = %x, %v", v, err)
	}
	if s, err := r.ReadCString(); err != nil || s != "WoW" {
		t.Fatalf("ReadCString = %q, %v", s, err)
	}
	if f, err := r.ReadFloat32(); err != nil || f != 1.5 {
		t.Fatalf("ReadFloat32 = %v, %v", f, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestWriter_WriteReversed(t *testing.T) {
	w := NewWriter(8)
	w.WriteReversed("enUS")
	if got := string(w.Bytes()); got != "SUne" {
		t.Errorf("WriteReversed = %q, want %q", got, "SUne")
	}
}

func TestReader_ShortData(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})

	if _, err := r.ReadUint32(); !errors.Is(err, ErrShortPacket) {
		t.Errorf("ReadUint32 on 3 bytes: err = %v, want ErrShortPacket", err)
	}
	// позиция не должна сдвигаться при ошибке
	if r.Position() != 0 {
		t.Errorf("Position = %d after failed read, want 0", r.Position())
	}
	if _, err := r.ReadArray16(); !errors.Is(err, ErrShortPacket) {
		t.Errorf("ReadArray16: err = %v, want ErrShortPacket", err)
	}
	if _, err := r.ReadCString(); !errors.Is(err, ErrShortPacket) {
		t.Errorf("ReadCString without terminator: err = %v, want ErrShortPacket", err)
	}
	if err := r.Skip(4); !errors.Is(err, ErrShortPacket) {
		t.Errorf("Skip(4): err = %v, want ErrShortPacket", err)
	}
	if _, err := r.ReadBytes(-1); err == nil {
		t.Error("ReadBytes(-1) must fail")
	}
}

func TestReader_BytesAndRest(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	r := NewReader(data)

	zc, err := r.ReadBytes(2)
	if err != nil {
		t.Fatal(err)
	}
	cp, err := r.ReadBytesCopy(2)
	if err != nil {
		t.Fatal(err)
	}
	cp[0] = 0xFF
	if data[2] != 3 {
		t.Error("ReadBytesCopy must not alias the input")
	}
	zc[0] = 0xAA
	if data[0] != 0xAA {
		t.Error("ReadBytes must alias the input")
	}
	if rest := r.ReadToEnd(); !bytes.Equal(rest, []byte{5, 6}) {
		t.Errorf("ReadToEnd = %v", rest)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d", r.Remaining())
	}
}

func TestWriterPool_Reset(t *testing.T) {
	w := Get()
	w.WriteUint32(7)
	w.Put()

	w = Get()
	defer w.Put()
	if w.Len() != 0 {
		t.Errorf("pooled writer Len = %d, want 0", w.Len())
	}
}
