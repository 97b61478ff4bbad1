package txengine

import "context"

// Request is the opaque STUN request this engine drives to completion. It
// carries the identifier the access layer's codec stamps into the wire
// message; the engine never inspects attributes or message class, only
// the identifier slot and whatever bytes Encode produces.
//
// The request is treated as immutable by the engine once Registry.Submit
// has stamped its identifier — that stamping is the only mutation the
// engine ever performs on it.
type Request interface {
	// SetTransactionID stamps the identifier the engine generated onto
	// the request's header, once, before the first send.
	SetTransactionID(TransactionID)

	// Encode serializes the request to wire bytes for the access layer.
	// The engine surfaces an encode failure from Start without
	// registering the transaction.
	Encode() ([]byte, error)
}

// Destination is the transport address a request is sent to: host/IP,
// port, and transport kind. Only "udp" is populated today; TCP-framed
// STUN and TLS are out of scope.
type Destination struct {
	Network string // "udp"
	Addr    string // host:port
}

// AccessPoint is an opaque handle identifying which local socket an
// access layer should use when sending a retransmission. The engine
// never interprets it — it is assigned by whatever constructed the
// transaction and handed straight back to the AccessLayer.
type AccessPoint string

// AccessLayer is the message-sending capability the engine requires of
// its host. Send must be safe to call from the transaction's own
// scheduling goroutine and should not block indefinitely — a slow
// access layer only slips the schedule, it cannot be made to fail the
// transaction outright.
type AccessLayer interface {
	Send(ctx context.Context, ap AccessPoint, dest Destination, payload []byte) error
}

// ResponseEvent is what the registry hands to a matched transaction, and
// what a transaction in turn hands to its Collector's OnResponse. The
// payload is whatever the caller's codec decoded; txengine treats it as
// opaque.
type ResponseEvent struct {
	TransactionID TransactionID
	Payload       any
	From          Destination
}

// Collector is the application-supplied sink for a transaction's terminal
// outcome. At most one of OnResponse or OnTimeout fires per transaction
// in default mode, and neither fires after Cancel; both run on an
// internal worker goroutine, so a
// collector must not block indefinitely.
//
// Expressed as a two-method capability rather than an interface
// hierarchy so a one-off transaction can be wired up with CollectorFuncs
// instead of a named type.
type Collector interface {
	OnResponse(ResponseEvent)
	OnTimeout()
}

// CollectorFuncs adapts two functions to the Collector interface, for
// callers that do not want to define a named type for a one-off
// transaction. A nil field is treated as a no-op.
type CollectorFuncs struct {
	Response func(ResponseEvent)
	Timeout  func()
}

var _ Collector = CollectorFuncs{}

// OnResponse implements Collector.
func (c CollectorFuncs) OnResponse(ev ResponseEvent) {
	if c.Response != nil {
		c.Response(ev)
	}
}

// OnTimeout implements Collector.
func (c CollectorFuncs) OnTimeout() {
	if c.Timeout != nil {
		c.Timeout()
	}
}
