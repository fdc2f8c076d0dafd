package protocol

import (
	"errors"
	"io"
	"net"
)

var (
	// ErrConnectionClosed is returned when the peer closed the stream
	// (a zero-length read) or the connection was closed locally.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMalformedHeader is returned for a header whose size field cannot hold the opcode.
	ErrMalformedHeader = errors.New("malformed frame header")

	// ErrFrameTooLarge is returned by WriteFrame when the payload does not fit the size field.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrUnexpectedOpcode is returned by Dispatch for unknown or unhandled
	// opcodes before the session is authenticated.
	ErrUnexpectedOpcode = errors.New("unexpected opcode")

	// ErrDuplicateHandler is returned by Register for an already registered opcode.
	ErrDuplicateHandler = errors.New("handler already registered")

	// ErrSealed is returned by Register after Seal.
	ErrSealed = errors.New("dispatcher sealed")
)

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
