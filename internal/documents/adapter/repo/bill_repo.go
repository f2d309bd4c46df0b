package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/documents/domain"
)

type BillRepo struct {
	db *gorm.DB
}

func NewBillRepo(db *gorm.DB) *BillRepo {
	return &BillRepo{db: db}
}

func (r *BillRepo) Create(ctx context.Context, db *gorm.DB, b *domain.Bill) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(b).Error
}

func (r *BillRepo) FindByID(ctx context.Context, id int64) (*domain.Bill, error) {
	var b domain.Bill
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&b, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// FindForUpdate locks the bill row for the duration of the transaction.
// Items ride along since the payable posting is built from them under the
// same lock.
func (r *BillRepo) FindForUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Bill, error) {
	if db == nil {
		db = r.db
	}
	var b domain.Bill
	err := rowLock(db.WithContext(ctx)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&b, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BillRepo) List(ctx context.Context, f domain.DocumentFilter) ([]domain.Bill, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Bill{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.CounterpartyID != nil {
		q = q.Where("vendor_id = ?", *f.CounterpartyID)
	}
	if f.From != nil {
		q = q.Where("bill_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("bill_date <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bills []domain.Bill
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC, id DESC").
		Offset(f.Skip).Limit(f.Limit).
		Find(&bills).Error
	if err != nil {
		return nil, 0, err
	}
	return bills, total, nil
}

func (r *BillRepo) Save(ctx context.Context, db *gorm.DB, b *domain.Bill) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Omit("Items", "Payments").Save(b).Error
}

func (r *BillRepo) ReplaceItems(ctx context.Context, db *gorm.DB, billID int64, items []domain.BillItem) error {
	if db == nil {
		db = r.db
	}
	if err := db.WithContext(ctx).Where("bill_id = ?", billID).
		Delete(&domain.BillItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ID = 0
		items[i].BillID = billID
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *BillRepo) AddPayment(ctx context.Context, db *gorm.DB, p *domain.BillPayment) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(p).Error
}

func (r *BillRepo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	if db == nil {
		db = r.db
	}
	if err := db.WithContext(ctx).Where("bill_id = ?", id).
		Delete(&domain.BillItem{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&domain.Bill{}, id).Error
}

// LastNumber returns the newest bill number. Callers numbering a new bill
// pass their transaction so the read locks the tail row.
func (r *BillRepo) LastNumber(ctx context.Context, db *gorm.DB) (string, error) {
	if db == nil {
		db = r.db
	}
	var b domain.Bill
	err := rowLock(db.WithContext(ctx)).Order("id DESC").First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return b.BillNumber, nil
}
