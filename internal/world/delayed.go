package world

import (
	"sync"

	"github.com/udisondev/hermesgo/internal/opcode"
)

type delayedFrame struct {
	op      opcode.Opcode
	raw     uint32
	payload []byte
}

// delayedQueue holds frames waiting for a trigger opcode to pass in
// either direction.
type delayedQueue struct {
	mu      sync.Mutex
	pending map[opcode.Opcode][]delayedFrame
}

func (q *delayedQueue) push(trigger opcode.Opcode, f delayedFrame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = make(map[opcode.Opcode][]delayedFrame)
	}
	q.pending[trigger] = append(q.pending[trigger], f)
}

// take removes and returns the frames waiting for trigger, oldest first.
func (q *delayedQueue) take(trigger opcode.Opcode) []delayedFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	frames := q.pending[trigger]
	delete(q.pending, trigger)
	return frames
}

func (q *delayedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, frames := range q.pending {
		n += len(frames)
	}
	return n
}
