package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("documents: not found")
	ErrNotDraft       = errors.New("documents: document is no longer a draft")
	ErrNotIssued      = errors.New("documents: document is not open for payment")
	ErrInvalidDueDate = errors.New("documents: due date is before the issue date")
	ErrValidation     = errors.New("documents: invalid input")
)

// OverPaymentError rejects a payment larger than the remaining balance.
// Owing lets the caller show how much can still be applied.
type OverPaymentError struct {
	Owing decimal.Decimal
}

func (e *OverPaymentError) Error() string {
	return fmt.Sprintf("documents: payment exceeds amount owing (%s)", e.Owing.StringFixed(2))
}

func (e *OverPaymentError) Is(target error) bool {
	_, ok := target.(*OverPaymentError)
	return ok
}
