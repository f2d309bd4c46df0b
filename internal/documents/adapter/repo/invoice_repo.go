package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/documents/domain"
)

type InvoiceRepo struct {
	db *gorm.DB
}

func NewInvoiceRepo(db *gorm.DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

func (r *InvoiceRepo) Create(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(inv).Error
}

func (r *InvoiceRepo) FindByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// FindForUpdate locks the invoice row for the duration of the transaction so
// concurrent payments against the same document serialize.
func (r *InvoiceRepo) FindForUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Invoice, error) {
	if db == nil {
		db = r.db
	}
	var inv domain.Invoice
	err := rowLock(db.WithContext(ctx)).First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepo) List(ctx context.Context, f domain.DocumentFilter) ([]domain.Invoice, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Invoice{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.CounterpartyID != nil {
		q = q.Where("customer_id = ?", *f.CounterpartyID)
	}
	if f.From != nil {
		q = q.Where("invoice_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("invoice_date <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []domain.Invoice
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC, id DESC").
		Offset(f.Skip).Limit(f.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *InvoiceRepo) Save(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Omit("Items", "Payments").Save(inv).Error
}

func (r *InvoiceRepo) ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID int64, items []domain.InvoiceItem) error {
	if db == nil {
		db = r.db
	}
	if err := db.WithContext(ctx).Where("invoice_id = ?", invoiceID).
		Delete(&domain.InvoiceItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ID = 0
		items[i].InvoiceID = invoiceID
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *InvoiceRepo) AddPayment(ctx context.Context, db *gorm.DB, p *domain.InvoicePayment) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(p).Error
}

func (r *InvoiceRepo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	if db == nil {
		db = r.db
	}
	if err := db.WithContext(ctx).Where("invoice_id = ?", id).
		Delete(&domain.InvoiceItem{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&domain.Invoice{}, id).Error
}

// LastNumber returns the newest invoice number. Callers numbering a new
// invoice pass their transaction so the read locks the tail row.
func (r *InvoiceRepo) LastNumber(ctx context.Context, db *gorm.DB) (string, error) {
	if db == nil {
		db = r.db
	}
	var inv domain.Invoice
	err := rowLock(db.WithContext(ctx)).Order("id DESC").First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return inv.InvoiceNumber, nil
}
