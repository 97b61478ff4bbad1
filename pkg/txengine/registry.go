package txengine

import (
	"context"
	"sync"

	"github.com/pion/logging"
)

// Registry is the process-wide table mapping a live transaction's
// identifier to the transaction itself. It is the demultiplexer an
// access layer's read loop calls into when a datagram arrives, and the
// single point of truth for "is this identifier still live" that
// Cancel/DeliverResponse/timeout all race against.
//
// A sync.RWMutex-guarded map, no per-entry locking — reads (lookups on
// every inbound datagram) vastly outnumber writes (register/remove on
// transaction start and terminal transition).
type Registry struct {
	access  AccessLayer
	logger  logging.LeveledLogger
	metrics *transactionMetrics

	mu    sync.RWMutex
	table map[TransactionID]*ClientTransaction
}

// NewRegistry constructs an empty Registry. access is the capability
// every transaction it starts will use to send; logger and metrics may
// be nil, in which case the registry and the transactions it starts
// skip those calls silently.
func NewRegistry(access AccessLayer, logger logging.LeveledLogger, metrics *transactionMetrics) *Registry {
	return &Registry{
		access:  access,
		logger:  logger,
		metrics: metrics,
		table:   make(map[TransactionID]*ClientTransaction),
	}
}

// SetAccessLayer binds the registry to access after construction.
// Exists for the chicken-and-egg setup order a real access layer
// implementation usually needs: the access layer's inbound read loop
// wants a registry to deliver into, and the registry wants an access
// layer to hand its transactions, so one side necessarily starts nil.
func (r *Registry) SetAccessLayer(access AccessLayer) {
	r.mu.Lock()
	r.access = access
	r.mu.Unlock()
}

// Submit allocates a fresh identifier, stamps it onto req, constructs a
// ClientTransaction, and starts it. On success the transaction is
// already registered and scheduling; on failure the registry is left
// with no residue.
func (r *Registry) Submit(
	ctx context.Context,
	req Request,
	dest Destination,
	ap AccessPoint,
	collector Collector,
	policy Policy,
	keepAfterResponse bool,
) (*ClientTransaction, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	id, err := NewTransactionID()
	if err != nil {
		return nil, err
	}
	req.SetTransactionID(id)

	r.mu.RLock()
	access := r.access
	r.mu.RUnlock()

	tx := newClientTransaction(id, req, dest, ap, collector, policy, keepAfterResponse, access, r.logger, r.metrics, r)

	if err := tx.Start(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// register inserts tx into the table. Called by ClientTransaction.Start
// after its initial send succeeds; not exported, since the only correct
// caller is the transaction itself.
func (r *Registry) register(tx *ClientTransaction) {
	r.mu.Lock()
	r.table[tx.id] = tx
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debugf("txengine: registry added %s", tx.id)
	}
}

// remove deletes id from the table if present. Idempotent: called from
// whichever of Cancel/DeliverResponse/timeout reaches the terminal
// transition first, and a second call is a harmless no-op.
func (r *Registry) remove(id TransactionID) {
	r.mu.Lock()
	_, existed := r.table[id]
	delete(r.table, id)
	r.mu.Unlock()
	if existed && r.logger != nil {
		r.logger.Debugf("txengine: registry removed %s", id)
	}
}

// Deliver looks up id and, if a live transaction is found, hands it ev
// to process. It reports whether a transaction was found — callers use
// this to distinguish a matched response from a stray one (an
// identifier with no live transaction), e.g. to log or count it without
// treating it as an error that aborts the read loop.
func (r *Registry) Deliver(id TransactionID, ev ResponseEvent) bool {
	r.mu.RLock()
	tx, ok := r.table[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	tx.DeliverResponse(ev)
	return true
}

// CancelAll cancels every transaction currently in the registry. Used
// for agent/session teardown: each transaction's own Cancel is
// idempotent and safe to call concurrently with anything else racing
// it, so CancelAll needs no coordination beyond snapshotting the
// current occupants.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	txs := make([]*ClientTransaction, 0, len(r.table))
	for _, tx := range r.table {
		txs = append(txs, tx)
	}
	r.mu.RUnlock()

	for _, tx := range txs {
		tx.Cancel()
	}
}

// Len returns the number of transactions currently registered (i.e. in
// the Armed state). Exposed for tests and for a metrics scrape fallback
// when the caller did not pass a Prometheus registerer to NewMetrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}
