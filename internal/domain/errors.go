package domain

import "errors"

var (
	ErrNotFound          = errors.New("account not found")
	ErrAlreadyExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("account unavailable")
	ErrInvalidName       = errors.New("account name must not be empty")
	ErrInvalidAmount     = errors.New("amount must be at least 1")
	ErrInvalidBalance    = errors.New("initial balance must not be negative")
	ErrTransferExists    = errors.New("transfer already exists")
	ErrTransferNotFound  = errors.New("transfer not found")

	// ErrTransferNotRunning marks a transfer that is checkpointed but has no
	// live saga, so a signal sent to it cannot be delivered right now.
	ErrTransferNotRunning = errors.New("transfer not running")
)

// ErrTransient marks failures that are expected to resolve on their own
// (network faults, timeouts, 5xx responses). The saga retries these; every
// other classified failure kind is terminal.
var ErrTransient = errors.New("transient failure")

// Transient wraps err so that errors.Is(err, ErrTransient) holds while the
// underlying cause stays inspectable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

// IsTerminal reports whether err is a business failure that must not be
// retried. Unknown errors count as transient: the remote ledger contract maps
// every terminal outcome onto one of the sentinel errors above, so anything
// unrecognized is infrastructure trouble.
func IsTerminal(err error) bool {
	if errors.Is(err, ErrTransient) {
		return false
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidName)
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string { return "transient failure: " + e.cause.Error() }

func (e *transientError) Unwrap() error { return e.cause }

func (e *transientError) Is(target error) bool { return target == ErrTransient }
