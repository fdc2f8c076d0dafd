package testutil

import (
	"errors"
	"fmt"
	"net"

	"github.com/udisondev/hermesgo/internal/auth"
	"github.com/udisondev/hermesgo/internal/crypto"
	"github.com/udisondev/hermesgo/internal/opcode"
	"github.com/udisondev/hermesgo/internal/protocol"
	"github.com/udisondev/hermesgo/internal/version"
	"github.com/udisondev/hermesgo/internal/world"
)

// ErrBadDigest is returned by Handshake when the auth session digest is wrong.
var ErrBadDigest = errors.New("auth session digest mismatch")

// WorldServer is a scripted server end of a world connection.
type WorldServer struct {
	Info       version.Info
	Key        auth.SessionKey
	ServerSeed uint32
	// ResponseCode is sent in the auth response; zero means world.AuthOK.
	ResponseCode byte

	conn   net.Conn
	framer *protocol.Framer
	table  *opcode.Table

	// Session is the auth session received by Handshake.
	Session world.AuthSession
}

// NewWorldServer wraps the server side of conn.
func NewWorldServer(conn net.Conn, info version.Info, key auth.SessionKey) *WorldServer {
	return &WorldServer{
		Info:       info,
		Key:        key,
		ServerSeed: 0xDEADBEEF,
		conn:       conn,
		framer:     protocol.NewFramer(conn, info, crypto.RoleServer),
		table:      opcode.Default(),
	}
}

// Handshake sends the challenge, verifies the auth session, enables header
// encryption and sends the auth response.
func (w *WorldServer) Handshake() error {
	f := w.Info.Features
	ch := world.AuthChallenge{ServerSeed: w.ServerSeed}
	copy(ch.Seed1[:], SequenceBytes(0x01, 16))
	copy(ch.Seed2[:], SequenceBytes(0x81, 16))
	if err := w.Send(opcode.ServerAuthChallenge, ch.Encode(f)); err != nil {
		return err
	}

	payload, err := w.Expect(opcode.ClientAuthSession)
	if err != nil {
		return err
	}
	if w.Session, err = world.ParseAuthSession(payload, f); err != nil {
		return err
	}
	if w.Session.Build != w.Info.Build {
		return fmt.Errorf("auth session build %d, want %d", w.Session.Build, w.Info.Build)
	}
	if !w.Session.Verify(w.ServerSeed, w.Key) {
		return ErrBadDigest
	}

	if err := w.framer.EnableCrypt(w.Key[:]); err != nil {
		return err
	}

	code := w.ResponseCode
	if code == 0 {
		code = world.AuthOK
	}
	resp := world.AuthResponse{Code: code, Expansion: w.Info.Expansion}
	return w.Send(opcode.ServerAuthResponse, resp.Encode(f))
}

// Send writes one frame with a canonical opcode.
func (w *WorldServer) Send(op opcode.Opcode, payload []byte) error {
	raw, err := w.table.ToRaw(w.Info.Build, op)
	if err != nil {
		return err
	}
	return w.framer.WriteFrame(raw, payload)
}

// SendRaw writes one frame with a raw opcode.
func (w *WorldServer) SendRaw(raw uint32, payload []byte) error {
	return w.framer.WriteFrame(raw, payload)
}

// Read returns the next frame with its canonical opcode.
func (w *WorldServer) Read() (opcode.Opcode, []byte, error) {
	f, err := w.framer.ReadFrame()
	if err != nil {
		return opcode.Unknown, nil, err
	}
	return w.table.ToCanonical(w.Info.Build, f.Opcode), f.Payload, nil
}

// Expect reads the next frame and checks its opcode.
func (w *WorldServer) Expect(op opcode.Opcode) ([]byte, error) {
	got, payload, err := w.Read()
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", op, err)
	}
	if got != op {
		return nil, fmt.Errorf("got %s, want %s", got, op)
	}
	return payload, nil
}

// Close closes the connection.
func (w *WorldServer) Close() error {
	return w.conn.Close()
}
