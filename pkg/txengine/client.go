package txengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
)

// State is the lifecycle state of a ClientTransaction.
type State int32

const (
	// stateUnstarted is the state before Start succeeds. Not part of
	// the public three-state lattice (Armed, Cancelled, Completed); it
	// exists only so a second Start call can be rejected with
	// ErrAlreadyStarted.
	stateUnstarted State = iota

	// StateArmed is the live state: in the registry, scheduling or
	// awaiting a response.
	StateArmed

	// StateCancelled is a terminal state reached via Cancel: no further
	// sends, no collector callback, removed from the registry.
	StateCancelled

	// StateCompleted is a terminal state reached via a matched
	// response or schedule exhaustion: removed from the registry,
	// exactly one collector callback fired.
	StateCompleted
)

// String renders the state for logs and test failure messages.
func (s State) String() string {
	switch s {
	case stateUnstarted:
		return "Unstarted"
	case StateArmed:
		return "Armed"
	case StateCancelled:
		return "Cancelled"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// ClientTransaction owns one outbound STUN request: it executes the
// retransmission schedule, reacts to a matched response or an external
// cancel, and notifies its Collector at most once (never after Cancel).
//
// Construct one via Registry.Submit; the package has no exported
// constructor — the registry is what lets Registry.Deliver find this
// transaction again when a response arrives.
type ClientTransaction struct {
	id          TransactionID
	request     Request
	destination Destination
	accessPoint AccessPoint
	collector   Collector
	policy      Policy
	keepAfter   bool

	access AccessLayer
	logger logging.LeveledLogger
	metrics *transactionMetrics

	registry *Registry // self-removal hook; nil is valid for standalone use/tests

	state           int32 // atomic State
	retransmitCount int32 // atomic, monotonic, bounded by policy.MaxRetransmissions

	done     chan struct{} // closed exactly once; wakes the schedule loop
	doneOnce sync.Once
}

// newClientTransaction builds a ClientTransaction in the stateUnstarted
// state. Unexported: callers go through Registry.Submit, which is what
// supplies the registry back-reference and the freshly minted identifier.
func newClientTransaction(
	id TransactionID,
	req Request,
	dest Destination,
	ap AccessPoint,
	collector Collector,
	policy Policy,
	keepAfterResponse bool,
	access AccessLayer,
	logger logging.LeveledLogger,
	metrics *transactionMetrics,
	registry *Registry,
) *ClientTransaction {
	return &ClientTransaction{
		id:          id,
		request:     req,
		destination: dest,
		accessPoint: ap,
		collector:   collector,
		policy:      policy,
		keepAfter:   keepAfterResponse,
		access:      access,
		logger:      logger,
		metrics:     metrics,
		registry:    registry,
		done:        make(chan struct{}),
	}
}

// ID returns the transaction's identifier, stamped on the request before
// the first send.
func (tx *ClientTransaction) ID() TransactionID { return tx.id }

// State returns the current lifecycle state.
func (tx *ClientTransaction) State() State {
	return State(atomic.LoadInt32(&tx.state))
}

// RetransmitCount returns how many retransmissions have been sent so
// far (0..policy.MaxRetransmissions).
func (tx *ClientTransaction) RetransmitCount() int {
	return int(atomic.LoadInt32(&tx.retransmitCount))
}

// Request returns the original request.
func (tx *ClientTransaction) Request() Request { return tx.request }

// Start sends the initial request synchronously on the caller's context
// and, on success, arms the transaction and schedules the retransmission
// loop on an internal worker goroutine so Start returns promptly. A
// failed encode or send is returned wrapped (ErrEncode or ErrFirstSend
// inside a *TransactionError); the transaction is left Cancelled and is
// never registered.
//
// Start is idempotent: a second call returns ErrAlreadyStarted.
func (tx *ClientTransaction) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&tx.state, int32(stateUnstarted), int32(StateArmed)) {
		return ErrAlreadyStarted
	}

	payload, err := tx.request.Encode()
	if err != nil {
		atomic.StoreInt32(&tx.state, int32(StateCancelled))
		return newTransactionError(tx.id, "encode", StateCancelled, fmt.Errorf("%w: %v", ErrEncode, err))
	}

	if err := tx.access.Send(ctx, tx.accessPoint, tx.destination, payload); err != nil {
		atomic.StoreInt32(&tx.state, int32(StateCancelled))
		return newTransactionError(tx.id, "initial send", StateCancelled, fmt.Errorf("%w: %v", ErrFirstSend, err))
	}

	if tx.registry != nil {
		tx.registry.register(tx)
	}
	if tx.metrics != nil {
		tx.metrics.started.Inc()
		tx.metrics.active.Inc()
	}
	if tx.logger != nil {
		tx.logger.Debugf("txengine: transaction %s armed, dest=%s", tx.id, tx.destination.Addr)
	}

	go tx.scheduleLoop(ctx, payload)
	return nil
}

// Cancel performs the atomic Armed -> Cancelled transition: it wakes any
// pending sleep, removes the transaction from the registry, and fires no
// collector callback. Safe to call from any goroutine, any number of
// times — calls after the first are no-ops.
func (tx *ClientTransaction) Cancel() {
	if atomic.CompareAndSwapInt32(&tx.state, int32(StateArmed), int32(StateCancelled)) {
		tx.finish()
		if tx.metrics != nil {
			tx.metrics.cancellations.Inc()
		}
		if tx.logger != nil {
			tx.logger.Debugf("txengine: transaction %s cancelled", tx.id)
		}
	}
}

// DeliverResponse is invoked by the registry when an inbound message's
// identifier matches this transaction.
//
// In default mode this performs the atomic Armed -> Completed
// transition, removes the transaction from the registry, and invokes
// Collector.OnResponse exactly once; a response racing the final grace
// timer's expiry is decided by whichever flips the state first.
//
// In keep-after-response mode the transaction stays Armed — it is not
// unregistered and the schedule keeps running — so later matching
// responses keep reaching it, and OnResponse can fire more than once;
// OnTimeout still fires independently if the schedule exhausts.
func (tx *ClientTransaction) DeliverResponse(ev ResponseEvent) {
	if tx.keepAfter {
		if tx.State() != StateArmed {
			return
		}
		if tx.metrics != nil {
			tx.metrics.responses.Inc()
		}
		tx.collector.OnResponse(ev)
		return
	}

	if atomic.CompareAndSwapInt32(&tx.state, int32(StateArmed), int32(StateCompleted)) {
		tx.finish()
		if tx.metrics != nil {
			tx.metrics.responses.Inc()
		}
		tx.collector.OnResponse(ev)
	}
}

// scheduleLoop drives the retransmission schedule: N interruptible
// sleeps, each followed by a retransmission and a doubling (capped) of
// the wait, then one final grace sleep before declaring timeout. It runs
// on its own goroutine so Start returns promptly.
func (tx *ClientTransaction) scheduleLoop(ctx context.Context, payload []byte) {
	wait := tx.policy.InitialInterval

	for i := 0; i < tx.policy.MaxRetransmissions; i++ {
		if tx.sleep(wait) {
			return // woken by cancel or response: terminal state already set
		}
		if tx.State() != StateArmed {
			return
		}

		wait = tx.policy.NextWait(wait)
		atomic.AddInt32(&tx.retransmitCount, 1)

		if err := tx.access.Send(ctx, tx.accessPoint, tx.destination, payload); err != nil {
			if tx.metrics != nil {
				tx.metrics.retransmitFailures.Inc()
			}
			if tx.logger != nil {
				tx.logger.Warnf("txengine: transaction %s retransmit %d failed: %v", tx.id, i+1, err)
			}
			// A failed retransmission is logged and the schedule continues
			// regardless — only the final grace period's expiry without a
			// response declares timeout.
		}
	}

	// One final grace period; `wait` already holds the doubled-and-capped
	// value that follows the last retransmission's wait.
	if tx.sleep(wait) {
		return
	}

	if atomic.CompareAndSwapInt32(&tx.state, int32(StateArmed), int32(StateCompleted)) {
		tx.finish()
		if tx.metrics != nil {
			tx.metrics.timeouts.Inc()
		}
		if tx.logger != nil {
			tx.logger.Debugf("txengine: transaction %s timed out", tx.id)
		}
		tx.collector.OnTimeout()
	}
}

// sleep waits up to d or until tx.done is closed, whichever comes first.
// It reports whether it was woken early (true) versus timing out
// normally (false) — the cancellable sleep a live transaction needs so
// cancel and response delivery can interrupt a pending wait instantly.
func (tx *ClientTransaction) sleep(d time.Duration) (woken bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-tx.done:
		return true
	}
}

// finish runs the once-only terminal bookkeeping shared by Cancel,
// DeliverResponse, and schedule-exhaustion timeout: wake any pending
// sleep and remove the transaction from the registry. Guarded by
// sync.Once because cancel, response delivery, and timer expiry can all
// race to call it.
func (tx *ClientTransaction) finish() {
	tx.doneOnce.Do(func() {
		close(tx.done)
		if tx.registry != nil {
			tx.registry.remove(tx.id)
		}
		if tx.metrics != nil {
			tx.metrics.active.Dec()
		}
	})
}
