package repo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/ledger/domain"
)

// AccountRepo is the gorm adapter for domain.AccountRepository.
type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, db *gorm.DB, a *domain.Account) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(a).Error
}

func (r *AccountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) FindByCode(ctx context.Context, code string) (*domain.Account, error) {
	var a domain.Account
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) FindByIDs(ctx context.Context, ids []int64) ([]domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []domain.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepo) List(ctx context.Context, f domain.AccountFilter) ([]domain.Account, error) {
	q := r.db.WithContext(ctx).Model(&domain.Account{})
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var accounts []domain.Account
	if err := q.Order("code").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepo) Save(ctx context.Context, a *domain.Account) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// UpdateBalance applies a signed delta under an optimistic lock. The arithmetic
// happens in the database so concurrent postings cannot lose updates; a stale
// version means someone else committed first and the caller must retry.
func (r *AccountRepo) UpdateBalance(ctx context.Context, db *gorm.DB, id int64, delta decimal.Decimal, version int64) error {
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", delta.String()),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *AccountRepo) HasLines(ctx context.Context, accountID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.JournalLine{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}
