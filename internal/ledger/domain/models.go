package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a node in the chart of accounts.
// Balance is a cached signed balance (normal-balance sign applied), maintained
// incrementally inside the same transaction as each posting. Version guards
// the cache with an optimistic lock.
type Account struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	Code            string          `gorm:"uniqueIndex;type:varchar(20);not null"`
	Name            string          `gorm:"type:varchar(255);not null"`
	Type            AccountType     `gorm:"type:varchar(20);not null;index"`
	SubType         string          `gorm:"type:varchar(50)"`
	Description     string          `gorm:"type:text"`
	ParentAccountID *int64          `gorm:"index"`
	NormalBalance   NormalBalance   `gorm:"type:varchar(10);not null"`
	IsActive        bool            `gorm:"not null;default:true"`
	IsSystem        bool            `gorm:"not null;default:false"`
	TaxCode         string          `gorm:"type:varchar(20)"`
	Balance         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Version         int64           `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Postable reports whether new journal lines may reference this account.
// System accounts stay postable even when hidden from pickers.
func (a Account) Postable() bool {
	return a.IsActive || a.IsSystem
}

// JournalEntry is the header of a posted double-entry record. Entries are
// immutable once posted; corrections are new adjustment entries.
type JournalEntry struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	EntryDate   time.Time `gorm:"type:date;not null;index"`
	Description string    `gorm:"type:text;not null"`
	Reference   string    `gorm:"type:varchar(100)"`
	EntryType   EntryType `gorm:"type:varchar(30);not null;index"`

	// Source document linkage, at most one set.
	InvoiceID         *int64 `gorm:"index"`
	BillID            *int64 `gorm:"index"`
	BankTransactionID *int64 `gorm:"index"`

	IsPosted  bool   `gorm:"not null;default:true"`
	Notes     string `gorm:"type:text"`
	CreatedAt time.Time

	Lines []JournalLine `gorm:"foreignKey:JournalEntryID;constraint:OnDelete:CASCADE"`
}

// Totals returns the entry's summed debits and credits.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// JournalLine is one side of a double-entry. Exactly one of Debit/Credit is
// nonzero.
type JournalLine struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	JournalEntryID int64           `gorm:"not null;index"`
	AccountID      int64           `gorm:"not null;index"`
	Description    string          `gorm:"type:varchar(500)"`
	Debit          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Credit         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
}

// LedgerRow is one line of an account ledger view with its running balance.
type LedgerRow struct {
	LineID         int64
	JournalEntryID int64
	EntryDate      time.Time
	Description    string
	Reference      string
	EntryType      EntryType
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Running        decimal.Decimal
}
