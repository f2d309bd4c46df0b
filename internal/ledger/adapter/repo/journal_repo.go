package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/ledger/domain"
)

// JournalRepo is the gorm adapter for domain.JournalRepository.
type JournalRepo struct {
	db *gorm.DB
}

func NewJournalRepo(db *gorm.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) Create(ctx context.Context, db *gorm.DB, e *domain.JournalEntry) error {
	if db == nil {
		db = r.db
	}
	// gorm inserts the lines with the entry through the association.
	return db.WithContext(ctx).Create(e).Error
}

func (r *JournalRepo) FindByID(ctx context.Context, id int64) (*domain.JournalEntry, error) {
	var e domain.JournalEntry
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *JournalRepo) List(ctx context.Context, f domain.EntryFilter) ([]domain.JournalEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.JournalEntry{})
	if f.Type != nil {
		q = q.Where("entry_type = ?", *f.Type)
	}
	if f.From != nil {
		q = q.Where("entry_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("entry_date <= ?", *f.To)
	}
	if f.AccountID != nil {
		q = q.Where("id IN (?)", r.db.Model(&domain.JournalLine{}).
			Select("journal_entry_id").Where("account_id = ?", *f.AccountID))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []domain.JournalEntry
	err := q.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("entry_date DESC, id DESC").
		Offset(f.Skip).Limit(f.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *JournalRepo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	if db == nil {
		db = r.db
	}
	if err := db.WithContext(ctx).Where("journal_entry_id = ?", id).
		Delete(&domain.JournalLine{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&domain.JournalEntry{}, id).Error
}

func (r *JournalRepo) SumByAccount(ctx context.Context, accountIDs []int64, asOf *time.Time) ([]domain.AccountActivity, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Model(&domain.JournalLine{}).
		Select("account_id, COALESCE(SUM(debit),0) AS debit, COALESCE(SUM(credit),0) AS credit").
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_entry_id").
		Where("journal_entries.is_posted = ?", true).
		Where("account_id IN ?", accountIDs).
		Group("account_id")
	if asOf != nil {
		q = q.Where("journal_entries.entry_date <= ?", *asOf)
	}
	var sums []domain.AccountActivity
	if err := q.Scan(&sums).Error; err != nil {
		return nil, err
	}
	return sums, nil
}

func (r *JournalRepo) Opening(ctx context.Context, accountID int64, before time.Time) (domain.AccountActivity, error) {
	var sum domain.AccountActivity
	err := r.db.WithContext(ctx).Model(&domain.JournalLine{}).
		Select("COALESCE(SUM(debit),0) AS debit, COALESCE(SUM(credit),0) AS credit").
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_entry_id").
		Where("journal_entries.is_posted = ?", true).
		Where("account_id = ?", accountID).
		Where("journal_entries.entry_date < ?", before).
		Scan(&sum).Error
	sum.AccountID = accountID
	return sum, err
}

func (r *JournalRepo) LedgerRows(ctx context.Context, accountID int64, f domain.LedgerFilter) ([]domain.LedgerRow, int64, error) {
	base := r.db.WithContext(ctx).Model(&domain.JournalLine{}).
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_entry_id").
		Where("journal_entries.is_posted = ?", true).
		Where("account_id = ?", accountID)
	if f.From != nil {
		base = base.Where("journal_entries.entry_date >= ?", *f.From)
	}
	if f.To != nil {
		base = base.Where("journal_entries.entry_date <= ?", *f.To)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.LedgerRow
	err := base.
		Select(`journal_lines.id AS line_id,
			journal_lines.journal_entry_id,
			journal_entries.entry_date,
			journal_lines.description,
			journal_entries.reference,
			journal_entries.entry_type,
			journal_lines.debit,
			journal_lines.credit`).
		Order("journal_entries.entry_date, journal_lines.journal_entry_id, journal_lines.id").
		Offset(f.Offset).Limit(f.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
