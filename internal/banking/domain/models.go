package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("banking: not found")
	ErrAlreadyReconciled = errors.New("banking: transaction is already reconciled")
	ErrNotReconciled     = errors.New("banking: transaction is not reconciled")
	ErrValidation        = errors.New("banking: invalid input")
)

// BankAccountType mirrors what institutions report.
type BankAccountType string

const (
	Chequing   BankAccountType = "chequing"
	Savings    BankAccountType = "savings"
	CreditCard BankAccountType = "credit_card"
)

func (t BankAccountType) IsValid() bool {
	return t == Chequing || t == Savings || t == CreditCard
}

// BankAccount is an external bank feed linked to a general-ledger account.
// CurrentBalance is a cache recomputed on every import.
type BankAccount struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	Name               string          `gorm:"type:varchar(200);not null"`
	Institution        string          `gorm:"type:varchar(100)"`
	AccountNumberLast4 string          `gorm:"type:varchar(4)"`
	AccountType        BankAccountType `gorm:"type:varchar(50);not null;default:chequing"`
	Currency           string          `gorm:"type:char(3);not null;default:CAD"`
	GLAccountID        *int64          `gorm:"index"`
	OpeningBalance     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	CurrentBalance     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	IsActive           bool            `gorm:"not null;default:true"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BankTransaction is one imported statement line. Balance is the running
// balance after this line in (date, id) order, starting from the account's
// opening balance. ImportHash is the dedup key.
type BankTransaction struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	BankAccountID   int64           `gorm:"not null;index"`
	TransactionDate time.Time       `gorm:"type:date;not null;index"`
	Description     string          `gorm:"type:varchar(500);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null"` // signed: deposits positive
	Balance         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Reference       string          `gorm:"type:varchar(200)"`
	Category        string          `gorm:"type:varchar(100)"`
	IsReconciled    bool            `gorm:"not null;default:false;index"`
	JournalEntryID  *int64          `gorm:"index"`
	ImportHash      string          `gorm:"type:varchar(64);index"`
	CreatedAt       time.Time
}
