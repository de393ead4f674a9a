package reward

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrVersionConflict     = errors.New("version conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPersistence         = errors.New("persistence failure")
	ErrAlreadyResolved     = errors.New("withdrawal already resolved")
	ErrInvalidStatus       = errors.New("invalid withdrawal status")
	ErrDuplicateEarning    = errors.New("commission already recorded for click")
	ErrInvalidAccount      = errors.New("invalid record")
	ErrAlreadyExists       = errors.New("already exists")
)

// InsufficientBalanceError is returned when a withdrawal is requested
// below the threshold. It matches ErrInsufficientBalance with errors.Is.
type InsufficientBalanceError struct {
	Balance   decimal.Decimal
	Threshold decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: minimum withdrawal is %s, current balance is %s",
		e.Threshold.String(), e.Balance.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// PersistenceError wraps a transient storage failure. The operation was
// not applied and may be retried from a fresh read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Persistence wraps err as a *PersistenceError unless it is already one of
// the package sentinels, which are returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrVersionConflict, ErrDuplicateEarning, ErrAlreadyResolved, ErrInvalidAccount, ErrAlreadyExists, ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

// Retryable reports whether the caller should re-read and try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrPersistence)
}
