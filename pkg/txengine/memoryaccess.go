package txengine

import (
	"context"
	"fmt"
	"sync"
)

// MemoryAccessLayer is an in-process AccessLayer test double: it records
// every Send in order and can be configured to fail specific attempt
// indices, which is how the retransmission-resilience scenario (a
// retransmission's send fails but the schedule keeps running) gets
// exercised deterministically instead of by yanking a real socket.
//
// Narrows a richer transport capability to the one method the engine
// needs, the same way a real network adapter would, but in-process and
// failure-injectable for deterministic tests.
type MemoryAccessLayer struct {
	mu   sync.Mutex
	sent []SentMessage

	// FailAt maps a zero-based send index (0 is the initial send, 1..N
	// are retransmissions) to an error Send should return for that
	// attempt. Left nil or missing entries mean "succeed".
	FailAt map[int]error
}

// SentMessage records one observed Send call.
type SentMessage struct {
	AccessPoint AccessPoint
	Destination Destination
	Payload     []byte
}

// NewMemoryAccessLayer returns an empty access layer double.
func NewMemoryAccessLayer() *MemoryAccessLayer {
	return &MemoryAccessLayer{}
}

// Send implements AccessLayer.
func (m *MemoryAccessLayer) Send(_ context.Context, ap AccessPoint, dest Destination, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.sent)
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.sent = append(m.sent, SentMessage{AccessPoint: ap, Destination: dest, Payload: cp})

	if err, ok := m.FailAt[idx]; ok && err != nil {
		return err
	}
	return nil
}

// Sent returns a snapshot of every message observed so far, in send
// order.
func (m *MemoryAccessLayer) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Count returns how many Send calls have been observed.
func (m *MemoryAccessLayer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ErrInjectedFailure is the stock error MemoryAccessLayer.FailAt entries
// use when the caller doesn't need a distinguishable cause.
var ErrInjectedFailure = fmt.Errorf("txengine: injected send failure")
