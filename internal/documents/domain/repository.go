package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DocumentFilter narrows invoice/bill listings.
type DocumentFilter struct {
	Status         *DocumentStatus
	CounterpartyID *int64
	From           *time.Time
	To             *time.Time
	Skip           int
	Limit          int
}

type CustomerRepository interface {
	Create(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, contactType *ContactType) ([]Customer, error)
	Save(ctx context.Context, c *Customer) error
}

// InvoiceRepository is the port for invoice storage. Methods taking a
// *gorm.DB join the caller's transaction; FindForUpdate must take a row lock
// so concurrent payments serialize.
type InvoiceRepository interface {
	Create(ctx context.Context, db *gorm.DB, inv *Invoice) error
	FindByID(ctx context.Context, id int64) (*Invoice, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Invoice, error)
	List(ctx context.Context, f DocumentFilter) ([]Invoice, int64, error)
	Save(ctx context.Context, db *gorm.DB, inv *Invoice) error
	ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID int64, items []InvoiceItem) error
	AddPayment(ctx context.Context, db *gorm.DB, p *InvoicePayment) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	LastNumber(ctx context.Context, db *gorm.DB) (string, error)
}

type BillRepository interface {
	Create(ctx context.Context, db *gorm.DB, b *Bill) error
	FindByID(ctx context.Context, id int64) (*Bill, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Bill, error)
	List(ctx context.Context, f DocumentFilter) ([]Bill, int64, error)
	Save(ctx context.Context, db *gorm.DB, b *Bill) error
	ReplaceItems(ctx context.Context, db *gorm.DB, billID int64, items []BillItem) error
	AddPayment(ctx context.Context, db *gorm.DB, p *BillPayment) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	LastNumber(ctx context.Context, db *gorm.DB) (string, error)
}
