package ledger

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity          = errors.New("ledger: quantity must be greater than zero")
	ErrInsufficientAvailable    = errors.New("ledger: insufficient available quantity")
	ErrInsufficientReserved     = errors.New("ledger: insufficient reserved quantity")
	ErrNotAvailable             = errors.New("ledger: batch is not available")
	ErrLedgerNotFound           = errors.New("ledger: not found")
	ErrOwnershipMismatch        = errors.New("ledger: actor does not own ledger")
	ErrConcurrentUpdateConflict = errors.New("ledger: concurrent update conflict")
	ErrStorageUnavailable       = errors.New("ledger: storage unavailable")
	ErrInvalidLedger            = errors.New("ledger: invalid ledger")
	ErrLedgerInUse              = errors.New("ledger: ledger still holds stock")
	ErrLedgerExists             = errors.New("ledger: ledger already registered")
)

// GuardError reports a failed quantity guard. It matches its sentinel with errors.Is.
type GuardError struct {
	Kind      error
	LedgerID  string
	Requested decimal.Decimal
	Held      decimal.Decimal
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%v: ledger %s requested %s, held %s", e.Kind, e.LedgerID, e.Requested, e.Held)
}

func (e *GuardError) Unwrap() error {
	return e.Kind
}

// StorageError wraps a failure of the ledger store. It matches ErrStorageUnavailable with errors.Is and
// unwraps to the store's own error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func invalidLedger(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidLedger, format, args...)
}

// IsRetryable is true for errors that may succeed when the caller tries again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdateConflict) || errors.Is(err, ErrStorageUnavailable)
}

// IsGuardFailure is true when the request was well formed but the ledger did not hold enough stock, or was
// not in a state that allows the operation.
func IsGuardFailure(err error) bool {
	return errors.Is(err, ErrInsufficientAvailable) ||
		errors.Is(err, ErrInsufficientReserved) ||
		errors.Is(err, ErrNotAvailable) ||
		errors.Is(err, ErrLedgerInUse)
}
