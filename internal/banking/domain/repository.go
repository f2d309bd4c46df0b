package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// TransactionFilter narrows bank transaction listings.
type TransactionFilter struct {
	BankAccountID int64
	Reconciled    *bool
	From, To      *time.Time
	Skip, Limit   int
}

// BankAccountRepository persists bank accounts.
type BankAccountRepository interface {
	Create(ctx context.Context, a *BankAccount) error
	FindByID(ctx context.Context, id int64) (*BankAccount, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*BankAccount, error)
	List(ctx context.Context, activeOnly bool) ([]BankAccount, error)
	Save(ctx context.Context, db *gorm.DB, a *BankAccount) error
}

// BankTransactionRepository persists imported statement lines.
type BankTransactionRepository interface {
	CreateBatch(ctx context.Context, db *gorm.DB, rows []BankTransaction) error
	FindByID(ctx context.Context, id int64) (*BankTransaction, error)
	List(ctx context.Context, f TransactionFilter) ([]BankTransaction, int64, error)
	Save(ctx context.Context, db *gorm.DB, t *BankTransaction) error
	// Hashes returns the import hashes already stored for an account.
	Hashes(ctx context.Context, db *gorm.DB, bankAccountID int64) (map[string]bool, error)
	// AllOrdered returns every transaction for an account in (date, id) order,
	// the order running balances are computed in.
	AllOrdered(ctx context.Context, db *gorm.DB, bankAccountID int64) ([]BankTransaction, error)
	// LinkedToEntry reports whether any transaction references the journal entry.
	LinkedToEntry(ctx context.Context, journalEntryID int64) (bool, error)
}
