// Package addoncheck answers the addon verification handshake that legacy
// servers run over an obfuscated side channel after world login.
package addoncheck

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/udisondev/hermesgo/internal/crypto"
	"github.com/udisondev/hermesgo/internal/protocol/packet"
)

// Sub-step codes. The first byte of every deobfuscated payload.
const (
	StepGenericVersion = 0x00
	StepGenericReply   = 0x01
	StepTbcVersion     = 0x02
	StepFixReply       = 0x04
	StepFutureVersion  = 0x05
)

// tbcSalt is appended to the addon blob before hashing.
var tbcSalt = []byte{0xCE, 0xFA, 0xED, 0xFE}

// Sender delivers an already obfuscated reply to the server.
type Sender func(payload []byte) error

// Protocol is the client side of the handshake for one session.
//
// Handle must be called from a single goroutine; Authorized may be called
// from any goroutine.
type Protocol struct {
	fixes *FixTable
	send  Sender

	// out обфусцирует ответы, in входящие сообщения
	out crypto.Keystream
	in  crypto.Keystream

	mu             sync.Mutex
	fingerprint    [16]byte
	hasFingerprint bool

	authorized atomic.Bool
}

// New seeds both keystreams from two consecutive 16-byte outputs of the
// session key hash chain. fixes may be nil.
func New(key []byte, fixes *FixTable, send Sender) (*Protocol, error) {
	if len(key) < sha1.Size {
		return nil, fmt.Errorf("session key of %d bytes: %w", len(key), crypto.ErrEmptyKey)
	}

	p := &Protocol{fixes: fixes, send: send}
	chain := crypto.NewHashChain(key)
	outKey := chain.Read16()
	inKey := chain.Read16()
	if err := p.out.Seed(outKey[:]); err != nil {
		return nil, fmt.Errorf("seeding outbound keystream: %w", err)
	}
	if err := p.in.Seed(inKey[:]); err != nil {
		return nil, fmt.Errorf("seeding inbound keystream: %w", err)
	}
	return p, nil
}

// Authorized reports whether a fix was accepted and addon hashes are answered.
func (p *Protocol) Authorized() bool {
	return p.authorized.Load()
}

// Fingerprint returns the value captured in step 0.
func (p *Protocol) Fingerprint() ([16]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fingerprint, p.hasFingerprint
}

// Handle deobfuscates one server message and answers it.
// Only send failures are returned; anything the protocol cannot answer is
// logged and dropped.
func (p *Protocol) Handle(payload []byte) error {
	data := bytes.Clone(payload)
	p.in.Transform(data)

	r := packet.NewReader(data)
	step, err := r.ReadUint8()
	if err != nil {
		slog.Debug("empty addon check message")
		return nil
	}

	switch step {
	case StepGenericVersion:
		return p.handleGenericVersion(r)
	case StepTbcVersion:
		return p.handleTbcVersion(r)
	case StepFutureVersion:
		return p.handleFutureVersion(r)
	default:
		slog.Debug("unknown addon check step", "step", step, "size", len(data))
		return nil
	}
}

func (p *Protocol) handleGenericVersion(r *packet.Reader) error {
	fp, err := r.ReadArray16()
	if err != nil {
		slog.Debug("short addon fingerprint", "err", err)
		return nil
	}
	if err := r.Skip(16 + 4); err != nil {
		slog.Debug("short addon version message", "err", err)
		return nil
	}

	p.mu.Lock()
	p.fingerprint, p.hasFingerprint = fp, true
	p.mu.Unlock()

	slog.Debug("addon fingerprint captured", "fingerprint", fmt.Sprintf("%x", fp))
	return p.reply([]byte{StepGenericReply})
}

func (p *Protocol) handleTbcVersion(r *packet.Reader) error {
	count, err := r.ReadUint8()
	if err != nil {
		return nil
	}
	blob, err := r.ReadBytes(int(count))
	if err != nil {
		slog.Debug("short addon blob", "count", count, "err", err)
		return nil
	}

	_, ok := p.Fingerprint()
	if !ok || !p.authorized.Load() {
		slog.Debug("addon hashes requested before authorization")
		return nil
	}

	h := sha1.New()
	h.Write(blob)
	h.Write(tbcSalt)
	sum := md5.Sum(blob)

	reply := make([]byte, 0, 1+sha1.Size+md5.Size)
	reply = append(reply, StepTbcVersion)
	reply = h.Sum(reply)
	reply = append(reply, sum[:]...)
	return p.reply(reply)
}

func (p *Protocol) handleFutureVersion(r *packet.Reader) error {
	fp, ok := p.Fingerprint()
	if !ok {
		slog.Debug("addon fix requested before fingerprint")
		return nil
	}
	entry, ok := p.fixes.Lookup(fp)
	if !ok {
		slog.Debug("no addon fix for fingerprint", "fingerprint", fmt.Sprintf("%x", fp))
		return nil
	}
	actual, err := r.ReadArray16()
	if err != nil {
		slog.Debug("short addon fix request", "err", err)
		return nil
	}
	fix, ok := entry.Find(actual)
	if !ok {
		slog.Debug("no addon fix for value", "actual", fmt.Sprintf("%x", actual))
		return nil
	}

	// ответ уходит ещё старым ключом
	reply := make([]byte, 0, 1+len(fix.Accept))
	reply = append(reply, StepFixReply)
	reply = append(reply, fix.Accept...)
	if err := p.reply(reply); err != nil {
		return err
	}

	if err := p.out.Seed(fix.Buffer); err != nil {
		return fmt.Errorf("reseeding outbound keystream: %w", err)
	}
	if err := p.in.Seed(fix.Checksum); err != nil {
		return fmt.Errorf("reseeding inbound keystream: %w", err)
	}
	p.authorized.Store(true)
	slog.Info("addon check authorized")
	return nil
}

func (p *Protocol) reply(payload []byte) error {
	p.out.Transform(payload)
	if err := p.send(payload); err != nil {
		return fmt.Errorf("sending addon reply: %w", err)
	}
	return nil
}
