package shared

import "errors"

// Error kinds raised by the core engines. Services wrap these with context via
// fmt.Errorf("%w: ...") and the HTTP layer maps each kind to a response code.
var (
	// ErrNotFound indicates a referenced supplier, order, receipt or item is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState occurs when an operation is attempted in a status that forbids it.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict indicates a uniqueness or reference violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument indicates malformed or inconsistent input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPreconditionFailed indicates missing system setup, e.g. no inventory location.
	ErrPreconditionFailed = errors.New("precondition failed")
)
