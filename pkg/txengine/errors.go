package txengine

import "errors"

var (
	// ErrAlreadyStarted is returned by a second call to Start on the
	// same transaction.
	ErrAlreadyStarted = errors.New("txengine: transaction already started")

	// ErrEncode wraps a failure to serialize the request, surfaced from
	// Start before the transaction is registered.
	ErrEncode = errors.New("txengine: request encode failed")

	// ErrFirstSend wraps a failure of the transaction's initial,
	// synchronous send. Start returns it and leaves no residue: the
	// transaction is never registered.
	ErrFirstSend = errors.New("txengine: initial send failed")
)

// TransactionError wraps an error with the identity and state of the
// transaction that produced it.
type TransactionError struct {
	ID        TransactionID
	Operation string
	State     State
	Err       error
}

func (e *TransactionError) Error() string {
	return "txengine: transaction " + e.ID.String() + " in state " + e.State.String() +
		": " + e.Operation + ": " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

func newTransactionError(id TransactionID, op string, state State, err error) error {
	return &TransactionError{ID: id, Operation: op, State: state, Err: err}
}
