package txengine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// idSize is the length of a STUN transaction identifier in bytes (96 bits).
const idSize = 12

// TransactionID is the 96-bit opaque value RFC 3489-family STUN messages
// carry in their header and that this engine uses as the demultiplexing
// key for inbound responses. It is a plain byte array rather than a slice
// so it is comparable and usable directly as a map key — byte-wise
// equality and hashing fall out of the language for free.
type TransactionID [idSize]byte

// NewTransactionID draws a fresh identifier from a cryptographically
// adequate source of randomness. The birthday bound on collision
// probability is negligible for the concurrent-transaction counts an ICE
// agent or STUN client ever approaches (far below 2^48).
//
// Drawn from crypto/rand the way a SIP branch parameter is, but kept as
// raw bytes: no hex encoding and no branch prefix (String hex-encodes
// for display only).
func NewTransactionID() (TransactionID, error) {
	var id TransactionID
	if _, err := rand.Read(id[:]); err != nil {
		return TransactionID{}, fmt.Errorf("txengine: generate transaction id: %w", err)
	}
	return id, nil
}

// String renders the identifier as lowercase hex, useful for log lines.
func (id TransactionID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value, i.e. never assigned.
func (id TransactionID) IsZero() bool {
	return id == TransactionID{}
}
