package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/ledger/domain"
)

// maxPostRetries bounds optimistic-lock retries on cached balance updates.
const maxPostRetries = 3

// JournalService is the journal engine: the only writer of ledger rows.
// Every entry is validated against the double-entry invariants and committed
// atomically together with the cached balance deltas of the touched accounts.
type JournalService struct {
	db       *gorm.DB
	accounts domain.AccountRepository
	journal  domain.JournalRepository
	recon    domain.ReconciliationChecker
	logger   *zap.Logger
}

func NewJournalService(db *gorm.DB, accounts domain.AccountRepository, journal domain.JournalRepository, recon domain.ReconciliationChecker, logger *zap.Logger) *JournalService {
	return &JournalService{db: db, accounts: accounts, journal: journal, recon: recon, logger: logger}
}

// SetReconciliationChecker wires the banking module's reconciliation lookup
// after construction; the modules are built in dependency order at startup.
func (s *JournalService) SetReconciliationChecker(rc domain.ReconciliationChecker) {
	s.recon = rc
}

// LineParams is one requested journal line. Exactly one of Debit/Credit must
// be positive.
type LineParams struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// PostEntryParams describes an entry to post.
type PostEntryParams struct {
	Date        time.Time
	Description string
	Type        domain.EntryType
	Reference   string
	Notes       string

	InvoiceID         *int64
	BillID            *int64
	BankTransactionID *int64

	Lines []LineParams
}

// PostEntry validates and commits a journal entry. On success the entry, its
// lines and the incremental balance updates of every touched account are in
// the database as one transaction; on failure nothing is.
func (s *JournalService) PostEntry(ctx context.Context, p PostEntryParams) (*domain.JournalEntry, error) {
	if err := validateEntry(p); err != nil {
		return nil, err
	}
	var entry *domain.JournalEntry
	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			entry, err = s.postInTx(ctx, tx, p)
			return err
		})
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflict) && attempt < maxPostRetries {
			continue
		}
		return nil, err
	}

	s.logger.Info("journal entry posted",
		zap.Int64("entry_id", entry.ID),
		zap.String("type", string(entry.EntryType)))
	return entry, nil
}

// PostEntryTx posts inside an existing transaction so a caller can commit a
// document state change and its entry as one unit. The caller owns commit,
// rollback and conflict retries.
func (s *JournalService) PostEntryTx(ctx context.Context, tx *gorm.DB, p PostEntryParams) (*domain.JournalEntry, error) {
	if err := validateEntry(p); err != nil {
		return nil, err
	}
	return s.postInTx(ctx, tx, p)
}

// validateEntry enforces the double-entry invariants that do not need
// database state.
func validateEntry(p PostEntryParams) error {
	if p.Description == "" {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: entry date is required", domain.ErrValidation)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown entry type %q", domain.ErrValidation, p.Type)
	}
	if len(p.Lines) < 2 {
		return fmt.Errorf("%w: an entry needs at least 2 lines", domain.ErrValidation)
	}

	var totalDebit, totalCredit decimal.Decimal
	for i, l := range p.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", domain.ErrValidation, i+1)
		}
		hasDebit := l.Debit.IsPositive()
		hasCredit := l.Credit.IsPositive()
		if hasDebit == hasCredit {
			return fmt.Errorf("%w: line %d must have exactly one of debit or credit", domain.ErrValidation, i+1)
		}
		if !domain.HasValidPlaces(l.Debit) || !domain.HasValidPlaces(l.Credit) {
			return fmt.Errorf("%w: line %d has more than %d decimal places", domain.ErrValidation, i+1, domain.MaxPlaces)
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}

	if delta := totalDebit.Sub(totalCredit); !domain.WithinTolerance(delta) {
		return &domain.UnbalancedEntryError{Delta: delta}
	}
	return nil
}

func (s *JournalService) postInTx(ctx context.Context, tx *gorm.DB, p PostEntryParams) (*domain.JournalEntry, error) {
	accounts, err := s.loadAccounts(ctx, p.Lines)
	if err != nil {
		return nil, err
	}

	entry := &domain.JournalEntry{
		EntryDate:         p.Date,
		Description:       p.Description,
		Reference:         p.Reference,
		EntryType:         p.Type,
		InvoiceID:         p.InvoiceID,
		BillID:            p.BillID,
		BankTransactionID: p.BankTransactionID,
		IsPosted:          true,
		Notes:             p.Notes,
	}
	for _, l := range p.Lines {
		entry.Lines = append(entry.Lines, domain.JournalLine{
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
		})
	}

	if err := s.journal.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("saving entry: %w", err)
	}
	if err := s.applyBalanceDeltas(ctx, tx, accounts, p.Lines, false); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry removes a manual entry and reverses its balance contribution.
// Auto-generated entries must be retracted through their source document, and
// entries referenced by a reconciliation cannot be orphaned.
func (s *JournalService) DeleteEntry(ctx context.Context, id int64) error {
	entry, err := s.journal.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !entry.EntryType.Deletable() {
		return domain.ErrNotManual
	}

	lines := make([]LineParams, len(entry.Lines))
	for i, l := range entry.Lines {
		lines[i] = LineParams{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit}
	}

	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Checked inside the delete transaction; a reconcile committed
			// after the initial read still blocks the delete.
			if s.recon != nil {
				linked, err := s.recon.EntryReconciled(ctx, id)
				if err != nil {
					return err
				}
				if linked {
					return domain.ErrReferenced
				}
			}
			accounts, err := s.loadAccounts(ctx, lines)
			if err != nil {
				return err
			}
			if err := s.journal.Delete(ctx, tx, id); err != nil {
				return fmt.Errorf("deleting entry: %w", err)
			}
			return s.applyBalanceDeltas(ctx, tx, accounts, lines, true)
		})
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflict) && attempt < maxPostRetries {
			continue
		}
		return err
	}

	s.logger.Info("journal entry deleted", zap.Int64("entry_id", id))
	return nil
}

// GetEntry returns an entry with its lines.
func (s *JournalService) GetEntry(ctx context.Context, id int64) (*domain.JournalEntry, error) {
	return s.journal.FindByID(ctx, id)
}

// ListEntries returns a filtered, paginated page of entries plus the total
// count, newest first.
func (s *JournalService) ListEntries(ctx context.Context, f domain.EntryFilter) ([]domain.JournalEntry, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return s.journal.List(ctx, f)
}

// loadAccounts fetches and checks every account referenced by the lines.
func (s *JournalService) loadAccounts(ctx context.Context, lines []LineParams) (map[int64]*domain.Account, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}
	found, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Account, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
		}
		if !a.Postable() {
			return nil, fmt.Errorf("account %s: %w", a.Code, domain.ErrInactiveAccount)
		}
	}
	return byID, nil
}

// applyBalanceDeltas aggregates the signed effect per account and applies it
// under the optimistic lock. reverse undoes a previous posting.
func (s *JournalService) applyBalanceDeltas(ctx context.Context, tx *gorm.DB, accounts map[int64]*domain.Account, lines []LineParams, reverse bool) error {
	deltas := make(map[int64]decimal.Decimal, len(accounts))
	for _, l := range lines {
		a := accounts[l.AccountID]
		d := a.NormalBalance.Sign().Mul(l.Debit.Sub(l.Credit))
		deltas[l.AccountID] = deltas[l.AccountID].Add(d)
	}
	for id, d := range deltas {
		if reverse {
			d = d.Neg()
		}
		if d.IsZero() {
			continue
		}
		if err := s.accounts.UpdateBalance(ctx, tx, id, d, accounts[id].Version); err != nil {
			return fmt.Errorf("updating balance of account %d: %w", id, err)
		}
	}
	return nil
}
