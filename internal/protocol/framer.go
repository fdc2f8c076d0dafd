package protocol

import (
	"fmt"
	"io"
	"sync"

	"github.com/udisondev/hermesgo/internal/crypto"
	"github.com/udisondev/hermesgo/internal/version"
)

// Frame is one world message as it travels on the wire.
type Frame struct {
	// Opcode is the raw, version-specific opcode.
	Opcode  uint32
	Payload []byte
}

var framePool = NewBytePool(512)

// Framer reads and writes world frames over a byte stream.
//
// ReadFrame must be called from a single goroutine. WriteFrame is safe for
// concurrent use: header assembly, encryption and the write happen under
// one mutex so concurrent senders never interleave keystream bytes.
type Framer struct {
	rw    io.ReadWriter
	info  version.Info
	role  crypto.Role
	in    HeaderLayout
	out   HeaderLayout
	crypt *crypto.SessionCrypt

	// заголовок входящего фрейма; трогает только читающая горутина
	rhdr [8]byte

	sendMu sync.Mutex

	failMu sync.Mutex
	failed error
}

// NewFramer creates a framer for one end of a world connection.
// RoleClient reads server headers and writes client headers, RoleServer the reverse.
func NewFramer(rw io.ReadWriter, info version.Info, role crypto.Role) *Framer {
	f := &Framer{
		rw:    rw,
		info:  info,
		role:  role,
		in:    info.ServerHeader,
		out:   info.ClientHeader,
		crypt: crypto.NewSessionCrypt(),
	}
	if role == crypto.RoleServer {
		f.in, f.out = f.out, f.in
	}
	return f
}

// Info returns the version the framer speaks.
func (f *Framer) Info() version.Info {
	return f.info
}

// EnableCrypt installs the session key. Headers written and read after
// this call are encrypted.
func (f *Framer) EnableCrypt(key []byte) error {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	if err := f.crypt.Init(f.info.Crypt, f.info.CryptDrop, f.role, key); err != nil {
		return fmt.Errorf("enabling header crypt: %w", err)
	}
	return nil
}

// CryptEnabled returns true once EnableCrypt succeeded.
func (f *Framer) CryptEnabled() bool {
	return f.crypt.IsEnabled()
}

// ReadFrame reads the next non-empty frame.
func (f *Framer) ReadFrame() (Frame, error) {
	if err := f.failure(); err != nil {
		return Frame{}, err
	}

	for {
		h, err := f.readHeader()
		if err != nil {
			return Frame{}, f.fail(err)
		}

		if h.Size == 0 {
			continue
		}
		opWidth := uint32(f.in.OpcodeWidth)
		if h.Size < opWidth {
			return Frame{}, f.fail(fmt.Errorf("size %d smaller than opcode width %d: %w", h.Size, opWidth, ErrMalformedHeader))
		}

		payload := make([]byte, h.Size-opWidth)
		if err := f.readFull(payload, "frame payload"); err != nil {
			return Frame{}, f.fail(err)
		}

		return Frame{Opcode: h.Opcode, Payload: payload}, nil
	}
}

func (f *Framer) readHeader() (Header, error) {
	n := f.in.SizeWidth + f.in.OpcodeWidth
	hdr := f.rhdr[:n]
	if err := f.readFull(hdr, "frame header"); err != nil {
		return Header{}, err
	}
	f.crypt.Decrypt(hdr)

	// у больших фреймов размер занимает 3 байта, дочитываем ещё один
	if IsLarge(f.in, hdr[0]) {
		extra := f.rhdr[n : n+1]
		if err := f.readFull(extra, "frame header"); err != nil {
			return Header{}, err
		}
		f.crypt.Decrypt(extra)
		hdr = f.rhdr[:n+1]
	}

	return ParseHeader(f.in, hdr)
}

func (f *Framer) readFull(buf []byte, what string) error {
	if _, err := io.ReadFull(f.rw, buf); err != nil {
		if isClosed(err) {
			return fmt.Errorf("reading %s: %w", what, ErrConnectionClosed)
		}
		return fmt.Errorf("reading %s: %w", what, err)
	}
	return nil
}

// WriteFrame encodes and writes one frame with a single Write call.
func (f *Framer) WriteFrame(raw uint32, payload []byte) error {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	return f.writeLocked(raw, payload)
}

// WriteFrameThenEnableCrypt writes one frame in the clear and installs the
// session key before any other frame can be written. Frames written by
// concurrent senders go out either before it unencrypted or after it
// encrypted, never in between.
func (f *Framer) WriteFrameThenEnableCrypt(raw uint32, payload []byte, key []byte) error {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	if err := f.writeLocked(raw, payload); err != nil {
		return err
	}
	if err := f.crypt.Init(f.info.Crypt, f.info.CryptDrop, f.role, key); err != nil {
		return fmt.Errorf("enabling header crypt: %w", err)
	}
	return nil
}

// writeLocked must be called with sendMu held.
func (f *Framer) writeLocked(raw uint32, payload []byte) error {
	size := len(payload) + f.out.OpcodeWidth
	if uint64(size) > uint64(f.out.MaxSize()) {
		return fmt.Errorf("payload of %d bytes: %w", len(payload), ErrFrameTooLarge)
	}

	if err := f.failure(); err != nil {
		return err
	}

	buf := framePool.Get(f.out.MaxLen() + len(payload))
	defer framePool.Put(buf)

	hdr, err := AppendHeader(buf[:0], f.out, Header{Size: uint32(size), Opcode: raw})
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	f.crypt.Encrypt(hdr)
	frame := append(hdr, payload...)

	if _, err := f.rw.Write(frame); err != nil {
		if isClosed(err) {
			err = ErrConnectionClosed
		}
		return f.fail(fmt.Errorf("writing frame: %w", err))
	}
	return nil
}

// Err returns the first read or write failure, if any.
func (f *Framer) Err() error {
	return f.failure()
}

// fail records err as the sticky failure unless one is already recorded,
// and returns the recorded failure.
func (f *Framer) fail(err error) error {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	if f.failed == nil {
		f.failed = err
	}
	return f.failed
}

func (f *Framer) failure() error {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	return f.failed
}
