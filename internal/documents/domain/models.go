package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a directory entry used by both invoices (customers) and bills
// (vendors).
type Customer struct {
	ID           int64       `gorm:"primaryKey;autoIncrement"`
	Name         string      `gorm:"type:varchar(255);not null"`
	Email        string      `gorm:"type:varchar(255)"`
	Phone        string      `gorm:"type:varchar(50)"`
	AddressLine1 string      `gorm:"type:varchar(255)"`
	AddressLine2 string      `gorm:"type:varchar(255)"`
	City         string      `gorm:"type:varchar(100)"`
	Province     string      `gorm:"type:varchar(50)"`
	PostalCode   string      `gorm:"type:varchar(20)"`
	Notes        string      `gorm:"type:text"`
	ContactType  ContactType `gorm:"type:varchar(20);not null;default:customer"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Invoice is a customer-facing sales document. Monetary fields are computed
// from the items and frozen at issue time.
type Invoice struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	InvoiceNumber string         `gorm:"uniqueIndex;type:varchar(50);not null"`
	CustomerID    int64          `gorm:"not null;index"`
	InvoiceDate   time.Time      `gorm:"type:date;not null"`
	DueDate       time.Time      `gorm:"type:date;not null"`
	PaidDate      *time.Time     `gorm:"type:date"`
	Status        DocumentStatus `gorm:"type:varchar(20);not null;default:draft;index"`

	Subtotal   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	TaxRate    decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	TaxAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Total      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`

	Notes     string `gorm:"type:text"`
	Version   int64  `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items    []InvoiceItem    `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments []InvoicePayment `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// AmountOwing is the remaining balance.
func (i Invoice) AmountOwing() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

type InvoiceItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	InvoiceID   int64           `gorm:"not null;index"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"` // quantity * unit_price
}

type InvoicePayment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	InvoiceID   int64           `gorm:"not null;index"`
	PaymentDate time.Time       `gorm:"type:date;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Method      string          `gorm:"type:varchar(50);not null;default:bank_transfer"`
	Reference   string          `gorm:"type:varchar(100)"`
	Notes       string          `gorm:"type:text"`
	CreatedAt   time.Time
}

// Bill is the vendor-facing mirror of Invoice (accounts payable).
type Bill struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	BillNumber string         `gorm:"uniqueIndex;type:varchar(50);not null"`
	VendorID   int64          `gorm:"not null;index"`
	BillDate   time.Time      `gorm:"type:date;not null"`
	DueDate    time.Time      `gorm:"type:date;not null"`
	Status     DocumentStatus `gorm:"type:varchar(20);not null;default:draft;index"`

	Subtotal   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	TaxRate    decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	TaxAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Total      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`

	// Default expense account for the whole bill; item-level accounts override.
	ExpenseAccountID *int64

	Notes     string `gorm:"type:text"`
	Version   int64  `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items    []BillItem    `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE"`
	Payments []BillPayment `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE"`
}

func (b Bill) AmountOwing() decimal.Decimal {
	return b.Total.Sub(b.AmountPaid)
}

type BillItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	BillID      int64           `gorm:"not null;index"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	AccountID   *int64          // expense account override for this line
}

type BillPayment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	BillID      int64           `gorm:"not null;index"`
	PaymentDate time.Time       `gorm:"type:date;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Method      string          `gorm:"type:varchar(50);not null;default:bank_transfer"`
	Reference   string          `gorm:"type:varchar(100)"`
	Notes       string          `gorm:"type:text"`
	CreatedAt   time.Time
}
