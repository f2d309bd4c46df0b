package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountFilter narrows account listings.
type AccountFilter struct {
	Type       *AccountType
	ActiveOnly bool
}

// EntryFilter narrows journal entry listings. Skip/Limit paginate; results
// are ordered (entry_date desc, id desc).
type EntryFilter struct {
	Type      *EntryType
	AccountID *int64
	From      *time.Time
	To        *time.Time
	Skip      int
	Limit     int
}

// LedgerFilter bounds an account ledger page. Rows are ordered
// (entry_date, journal_entry_id, line_id ascending).
type LedgerFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// AccountActivity is the summed posted activity of one account.
type AccountActivity struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// AccountRepository is the port for chart-of-accounts storage. Methods that
// take a *gorm.DB participate in the caller's transaction.
type AccountRepository interface {
	Create(ctx context.Context, db *gorm.DB, a *Account) error
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByCode(ctx context.Context, code string) (*Account, error)
	FindByIDs(ctx context.Context, ids []int64) ([]Account, error)
	List(ctx context.Context, f AccountFilter) ([]Account, error)
	Save(ctx context.Context, a *Account) error

	// UpdateBalance applies a signed delta to the cached balance under an
	// optimistic lock. Returns ErrConflict when the version moved.
	UpdateBalance(ctx context.Context, db *gorm.DB, id int64, delta decimal.Decimal, version int64) error

	// HasLines reports whether any journal line references the account.
	HasLines(ctx context.Context, accountID int64) (bool, error)
}

// JournalRepository is the port for journal entry storage.
type JournalRepository interface {
	Create(ctx context.Context, db *gorm.DB, e *JournalEntry) error
	FindByID(ctx context.Context, id int64) (*JournalEntry, error)
	List(ctx context.Context, f EntryFilter) ([]JournalEntry, int64, error)
	Delete(ctx context.Context, db *gorm.DB, id int64) error

	// SumByAccount sums posted debits/credits per account over the given ids,
	// optionally bounded by an as-of date (inclusive).
	SumByAccount(ctx context.Context, accountIDs []int64, asOf *time.Time) ([]AccountActivity, error)

	// Opening sums posted activity for one account strictly before a date.
	Opening(ctx context.Context, accountID int64, before time.Time) (AccountActivity, error)

	// LedgerRows returns a page of ledger rows for an account, with the total
	// row count before pagination. Running balances are filled by the caller.
	LedgerRows(ctx context.Context, accountID int64, f LedgerFilter) ([]LedgerRow, int64, error)
}

// ReconciliationChecker reports whether reconciliation state depends on a
// journal entry. Implemented by the banking module; keeps the dependency
// pointing outward.
type ReconciliationChecker interface {
	EntryReconciled(ctx context.Context, journalEntryID int64) (bool, error)
}
