package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/udisondev/hermesgo/internal/opcode"
	"github.com/udisondev/hermesgo/internal/version"
)

// HandlerFunc handles the payload of one frame.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher routes frames to handlers by canonical opcode.
//
// Until MarkAuthenticated is called, frames with an unknown opcode or
// without a handler are errors; afterwards they are logged and dropped.
type Dispatcher struct {
	table *opcode.Table
	build version.Build

	mu       sync.RWMutex
	handlers map[opcode.Opcode]HandlerFunc
	sealed   bool

	authenticated atomic.Bool
}

// NewDispatcher creates a dispatcher translating raw opcodes of build through table.
func NewDispatcher(table *opcode.Table, build version.Build) *Dispatcher {
	return &Dispatcher{
		table:    table,
		build:    build,
		handlers: make(map[opcode.Opcode]HandlerFunc),
	}
}

// Register binds a handler to op.
func (d *Dispatcher) Register(op opcode.Opcode, h HandlerFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return fmt.Errorf("registering %s: %w", op, ErrSealed)
	}
	if _, ok := d.handlers[op]; ok {
		return fmt.Errorf("registering %s: %w", op, ErrDuplicateHandler)
	}
	d.handlers[op] = h
	return nil
}

// Seal forbids further registrations.
func (d *Dispatcher) Seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

// MarkAuthenticated switches the dispatcher to lenient mode.
func (d *Dispatcher) MarkAuthenticated() {
	d.authenticated.Store(true)
}

// Authenticated reports whether MarkAuthenticated was called.
func (d *Dispatcher) Authenticated() bool {
	return d.authenticated.Load()
}

// Dispatch resolves the frame opcode and runs its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, f Frame) error {
	op := d.table.ToCanonical(d.build, f.Opcode)
	if op == opcode.Unknown {
		if !d.authenticated.Load() {
			return fmt.Errorf("raw opcode 0x%X before authentication: %w", f.Opcode, ErrUnexpectedOpcode)
		}
		slog.Debug("unknown opcode", "opcode", fmt.Sprintf("0x%X", f.Opcode), "size", len(f.Payload))
		return nil
	}

	d.mu.RLock()
	h, ok := d.handlers[op]
	d.mu.RUnlock()

	if !ok {
		if !d.authenticated.Load() {
			return fmt.Errorf("%s before authentication: %w", op, ErrUnexpectedOpcode)
		}
		slog.Debug("no handler", "opcode", op, "size", len(f.Payload))
		return nil
	}

	if err := h(ctx, f.Payload); err != nil {
		return fmt.Errorf("handling %s: %w", op, err)
	}
	return nil
}
