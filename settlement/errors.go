package settlement

import (
	"errors"
	"fmt"

	"deposito-ledger/storage"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ValidationError reports bad input: a non-positive amount or a yearly return
// outside [0, 1]. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing account, deposito type, or anchor deposit.
// It unwraps to storage.ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return storage.ErrNotFound }

// InsufficientFundsError is returned when a withdrawal exceeds principal plus
// accrued interest. Available carries the exact amount.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance. Available: Rp %s (including interest)", e.Available.StringFixed(0))
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
