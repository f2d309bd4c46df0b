package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/northbooks/northbooks/internal/banking/domain"
)

// BankAccountRepo is the gorm implementation of domain.BankAccountRepository.
type BankAccountRepo struct {
	db *gorm.DB
}

func NewBankAccountRepo(db *gorm.DB) *BankAccountRepo {
	return &BankAccountRepo{db: db}
}

func (r *BankAccountRepo) Create(ctx context.Context, a *domain.BankAccount) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *BankAccountRepo) FindByID(ctx context.Context, id int64) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindForUpdate locks the bank account row so concurrent imports against the
// same account serialize. SQLite has no row locks; its single writer
// serializes instead.
func (r *BankAccountRepo) FindForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*domain.BankAccount, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a domain.BankAccount
	err := q.First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *BankAccountRepo) List(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error) {
	q := r.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var accounts []domain.BankAccount
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *BankAccountRepo) Save(ctx context.Context, db *gorm.DB, a *domain.BankAccount) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(a).Error
}

// BankTransactionRepo is the gorm implementation of domain.BankTransactionRepository.
type BankTransactionRepo struct {
	db *gorm.DB
}

func NewBankTransactionRepo(db *gorm.DB) *BankTransactionRepo {
	return &BankTransactionRepo{db: db}
}

func (r *BankTransactionRepo) CreateBatch(ctx context.Context, db *gorm.DB, rows []domain.BankTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *BankTransactionRepo) FindByID(ctx context.Context, id int64) (*domain.BankTransaction, error) {
	var t domain.BankTransaction
	err := r.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *BankTransactionRepo) List(ctx context.Context, f domain.TransactionFilter) ([]domain.BankTransaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.BankTransaction{}).
		Where("bank_account_id = ?", f.BankAccountID)
	if f.Reconciled != nil {
		q = q.Where("is_reconciled = ?", *f.Reconciled)
	}
	if f.From != nil {
		q = q.Where("transaction_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("transaction_date <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.BankTransaction
	err := q.Order("transaction_date DESC, id DESC").
		Offset(f.Skip).Limit(f.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *BankTransactionRepo) Save(ctx context.Context, db *gorm.DB, t *domain.BankTransaction) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Save(t).Error
}

func (r *BankTransactionRepo) Hashes(ctx context.Context, db *gorm.DB, bankAccountID int64) (map[string]bool, error) {
	if db == nil {
		db = r.db
	}
	var hashes []string
	err := db.WithContext(ctx).Model(&domain.BankTransaction{}).
		Where("bank_account_id = ?", bankAccountID).
		Pluck("import_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		seen[h] = true
	}
	return seen, nil
}

func (r *BankTransactionRepo) AllOrdered(ctx context.Context, db *gorm.DB, bankAccountID int64) ([]domain.BankTransaction, error) {
	if db == nil {
		db = r.db
	}
	var rows []domain.BankTransaction
	err := db.WithContext(ctx).
		Where("bank_account_id = ?", bankAccountID).
		Order("transaction_date, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BankTransactionRepo) LinkedToEntry(ctx context.Context, journalEntryID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BankTransaction{}).
		Where("journal_entry_id = ?", journalEntryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
