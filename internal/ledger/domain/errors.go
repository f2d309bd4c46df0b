package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the ledger core. Callers branch with errors.Is; the API
// layer maps them onto HTTP statuses.
var (
	ErrNotFound        = errors.New("ledger: not found")
	ErrDuplicateCode   = errors.New("ledger: account code already exists")
	ErrInvalidParent   = errors.New("ledger: invalid parent account")
	ErrSystemAccount   = errors.New("ledger: system account is immutable")
	ErrInactiveAccount = errors.New("ledger: account is inactive")
	ErrNotManual       = errors.New("ledger: only manual entries can be deleted")
	ErrReferenced      = errors.New("ledger: entry is referenced by a reconciliation")
	ErrConflict        = errors.New("ledger: concurrent modification, retry")
	ErrValidation      = errors.New("ledger: invalid input")
)

// UnbalancedEntryError reports that an entry's debits and credits differ by
// more than the tolerance. Delta is signed: debits minus credits.
type UnbalancedEntryError struct {
	Delta decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("ledger: entry unbalanced by %s", e.Delta.StringFixed(MaxPlaces))
}

// Is makes errors.Is(err, &UnbalancedEntryError{}) match any imbalance.
func (e *UnbalancedEntryError) Is(target error) bool {
	_, ok := target.(*UnbalancedEntryError)
	return ok
}
