package txengine

import (
	"fmt"
	"time"
)

// Policy is the pure, configuration-derived description of the
// retransmission schedule: how many retransmissions to make after the
// initial send, how long to wait before the first of them, and the cap
// the doubling wait settles into.
//
// A Policy is immutable after construction; Config.Snapshot builds one
// per configuration snapshot, and Registry.Submit hands a copy to each
// transaction it starts. Nothing about a live transaction's schedule can
// change mid-flight, which is what makes the schedule deterministic and
// testable in isolation from the transaction state machine.
type Policy struct {
	// MaxRetransmissions is N, the number of retransmissions the
	// schedule loop performs after the transaction's initial,
	// synchronous send. A transaction therefore makes N+1 physical
	// sends in total. Must be >= 1.
	MaxRetransmissions int

	// InitialInterval is T0, the wait observed before the first
	// retransmission. Must be >= 1ms.
	InitialInterval time.Duration

	// MaxInterval is Tmax, the cap the doubling wait never exceeds.
	// Must be >= InitialInterval.
	MaxInterval time.Duration
}

// DefaultPolicy returns the RFC 3489-family defaults: N=6, T0=100ms,
// Tmax=1600ms. With these values the send offsets from transaction start
// are {0, 100, 300, 700, 1500, 3100, 4700}ms (the initial send plus six
// retransmissions) and timeout is declared at 6300ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetransmissions: 6,
		InitialInterval:    100 * time.Millisecond,
		MaxInterval:        1600 * time.Millisecond,
	}
}

// Validate checks the invariants N >= 1 and T0 <= Tmax (with T0 >= 1ms).
func (p Policy) Validate() error {
	if p.MaxRetransmissions < 1 {
		return fmt.Errorf("txengine: MaxRetransmissions must be >= 1, got %d", p.MaxRetransmissions)
	}
	if p.InitialInterval < time.Millisecond {
		return fmt.Errorf("txengine: InitialInterval must be >= 1ms, got %s", p.InitialInterval)
	}
	if p.MaxInterval < p.InitialInterval {
		return fmt.Errorf("txengine: MaxInterval (%s) must be >= InitialInterval (%s)", p.MaxInterval, p.InitialInterval)
	}
	return nil
}

// NextWait computes the wait that follows a previous wait: double it,
// capped at MaxInterval. Calling NextWait(InitialInterval) gives the
// wait before the second retransmission.
func (p Policy) NextWait(previous time.Duration) time.Duration {
	next := previous * 2
	if next > p.MaxInterval {
		return p.MaxInterval
	}
	return next
}

// Schedule returns the absolute send offsets from transaction start —
// index 0 is the immediate initial send, indices 1..N are the N
// retransmissions — and the offset at which timeout is declared if no
// response ever arrives. Exposed for tests verifying the literal
// schedule and for demo tooling that wants to print the plan before
// running it; the live client transaction in client.go drives the same
// algorithm event-by-event rather than precomputing this slice.
func (p Policy) Schedule() (offsets []time.Duration, timeoutAt time.Duration) {
	offsets = make([]time.Duration, p.MaxRetransmissions+1)
	var t time.Duration
	wait := p.InitialInterval
	for i := 1; i <= p.MaxRetransmissions; i++ {
		t += wait
		offsets[i] = t
		wait = p.NextWait(wait)
	}
	// wait now holds the grace period: one more doubling step past the
	// wait used before the final retransmission.
	timeoutAt = t + wait
	return offsets, timeoutAt
}
