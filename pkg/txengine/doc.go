// Package txengine implements the client-side transaction engine of a STUN
// stack: the RFC 3489-style timed retransmission schedule, the registry that
// demultiplexes inbound responses by transaction identifier, and the
// lifecycle that guarantees at most one terminal notification per
// transaction (none after an explicit cancel) under concurrent cancel,
// response, and timer expiry.
//
// The byte-level STUN codec, ICE candidate gathering, and the socket
// manager are not this package's concern. txengine only needs a Request
// it can stamp an identifier onto, an AccessLayer that can push bytes to a
// destination, and a Collector willing to receive the terminal outcome.
package txengine
