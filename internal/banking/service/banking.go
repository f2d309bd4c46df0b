package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/banking/domain"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
)

// EntryLookup is the slice of the journal engine banking needs: proof that a
// journal entry exists before a transaction can be matched to it.
type EntryLookup interface {
	GetEntry(ctx context.Context, id int64) (*ledgerdomain.JournalEntry, error)
}

// BankService imports bank statements and matches transactions to journal
// entries.
type BankService struct {
	db           *gorm.DB
	accounts     domain.BankAccountRepository
	transactions domain.BankTransactionRepository
	journal      EntryLookup
	logger       *zap.Logger
}

func NewBankService(db *gorm.DB, accounts domain.BankAccountRepository, transactions domain.BankTransactionRepository, journal EntryLookup, logger *zap.Logger) *BankService {
	return &BankService{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		journal:      journal,
		logger:       logger,
	}
}

// CreateAccountParams describes a new bank feed.
type CreateAccountParams struct {
	Name               string
	Institution        string
	AccountNumberLast4 string
	AccountType        domain.BankAccountType
	Currency           string
	GLAccountID        *int64
	OpeningBalance     decimal.Decimal
}

func (s *BankService) CreateAccount(ctx context.Context, p CreateAccountParams) (*domain.BankAccount, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if p.AccountType == "" {
		p.AccountType = domain.Chequing
	}
	if !p.AccountType.IsValid() {
		return nil, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, p.AccountType)
	}
	if p.Currency == "" {
		p.Currency = "CAD"
	}
	a := &domain.BankAccount{
		Name:               p.Name,
		Institution:        p.Institution,
		AccountNumberLast4: p.AccountNumberLast4,
		AccountType:        p.AccountType,
		Currency:           p.Currency,
		GLAccountID:        p.GLAccountID,
		OpeningBalance:     p.OpeningBalance,
		CurrentBalance:     p.OpeningBalance,
		IsActive:           true,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("creating bank account: %w", err)
	}
	s.logger.Info("bank account created", zap.Int64("id", a.ID), zap.String("name", a.Name))
	return a, nil
}

func (s *BankService) GetAccount(ctx context.Context, id int64) (*domain.BankAccount, error) {
	return s.accounts.FindByID(ctx, id)
}

func (s *BankService) ListAccounts(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error) {
	return s.accounts.List(ctx, activeOnly)
}

// StatementRow is one line of an uploaded statement.
type StatementRow struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // signed: deposits positive, withdrawals negative
	Reference   string
	Category    string
}

// ImportResult summarizes one statement import.
type ImportResult struct {
	Imported    int
	Skipped     int
	TotalInFile int
	NewBalance  decimal.Decimal
}

// ImportStatement loads statement rows into a bank account. Rows already seen
// (same dedup hash) are skipped, so re-importing a file is a no-op. The whole
// batch commits atomically and running balances are recomputed from the
// account's opening balance afterwards.
func (s *BankService) ImportStatement(ctx context.Context, accountID int64, rows []StatementRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: statement has no rows", domain.ErrValidation)
	}
	for i, r := range rows {
		if r.Date.IsZero() {
			return nil, fmt.Errorf("%w: row %d has no date", domain.ErrValidation, i+1)
		}
		if strings.TrimSpace(r.Description) == "" {
			return nil, fmt.Errorf("%w: row %d has no description", domain.ErrValidation, i+1)
		}
		if r.Amount.IsZero() {
			return nil, fmt.Errorf("%w: row %d has a zero amount", domain.ErrValidation, i+1)
		}
		if !ledgerdomain.HasValidPlaces(r.Amount) {
			return nil, fmt.Errorf("%w: row %d amount has more than %d decimal places", domain.ErrValidation, i+1, ledgerdomain.MaxPlaces)
		}
	}

	result := &ImportResult{TotalInFile: len(rows)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.FindForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}

		seen, err := s.transactions.Hashes(ctx, tx, accountID)
		if err != nil {
			return err
		}

		// Stable sort by date keeps the file's relative order within a day.
		ordered := make([]StatementRow, len(rows))
		copy(ordered, rows)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Date.Before(ordered[j].Date)
		})

		var batch []domain.BankTransaction
		for _, r := range ordered {
			hash := importHash(r)
			if seen[hash] {
				result.Skipped++
				continue
			}
			seen[hash] = true
			batch = append(batch, domain.BankTransaction{
				BankAccountID:   accountID,
				TransactionDate: r.Date,
				Description:     r.Description,
				Amount:          r.Amount,
				Reference:       r.Reference,
				Category:        r.Category,
				ImportHash:      hash,
			})
		}
		result.Imported = len(batch)

		if err := s.transactions.CreateBatch(ctx, tx, batch); err != nil {
			return err
		}

		balance, err := s.recomputeBalances(ctx, tx, account)
		if err != nil {
			return err
		}
		result.NewBalance = balance

		account.CurrentBalance = balance
		return s.accounts.Save(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("statement imported",
		zap.Int64("bank_account_id", accountID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// recomputeBalances rewrites the running balance on every transaction of the
// account, in (date, id) order, starting from the opening balance. Returns the
// final balance.
func (s *BankService) recomputeBalances(ctx context.Context, tx *gorm.DB, account *domain.BankAccount) (decimal.Decimal, error) {
	all, err := s.transactions.AllOrdered(ctx, tx, account.ID)
	if err != nil {
		return decimal.Zero, err
	}
	running := account.OpeningBalance
	for i := range all {
		running = running.Add(all[i].Amount)
		if !all[i].Balance.Equal(running) {
			all[i].Balance = running
			if err := s.transactions.Save(ctx, tx, &all[i]); err != nil {
				return decimal.Zero, err
			}
		}
	}
	return running, nil
}

// importHash is the dedup key for a statement row. A bank reference is taken
// as authoritative when present; otherwise the date, normalized description
// and amount identify the row.
func importHash(r StatementRow) string {
	var key string
	if ref := strings.TrimSpace(r.Reference); ref != "" {
		key = r.Date.Format("2006-01-02") + "|ref:" + ref + "|" + r.Amount.StringFixed(ledgerdomain.MaxPlaces)
	} else {
		desc := strings.Join(strings.Fields(strings.ToLower(r.Description)), " ")
		key = r.Date.Format("2006-01-02") + "|" + desc + "|" + r.Amount.StringFixed(ledgerdomain.MaxPlaces)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GetTransaction returns one imported line.
func (s *BankService) GetTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error) {
	return s.transactions.FindByID(ctx, id)
}

// ListTransactions returns a page of statement lines, newest first.
func (s *BankService) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.BankTransaction, int64, error) {
	if _, err := s.accounts.FindByID(ctx, f.BankAccountID); err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return s.transactions.List(ctx, f)
}

// Reconcile matches a bank transaction to an existing journal entry.
func (s *BankService) Reconcile(ctx context.Context, transactionID, journalEntryID int64) (*domain.BankTransaction, error) {
	t, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.IsReconciled {
		return nil, domain.ErrAlreadyReconciled
	}
	if _, err := s.journal.GetEntry(ctx, journalEntryID); err != nil {
		return nil, fmt.Errorf("journal entry %d: %w", journalEntryID, err)
	}
	t.IsReconciled = true
	t.JournalEntryID = &journalEntryID
	if err := s.transactions.Save(ctx, nil, t); err != nil {
		return nil, err
	}
	s.logger.Info("transaction reconciled",
		zap.Int64("transaction_id", transactionID),
		zap.Int64("journal_entry_id", journalEntryID))
	return t, nil
}

// Unreconcile breaks the match on a reconciled transaction.
func (s *BankService) Unreconcile(ctx context.Context, transactionID int64) (*domain.BankTransaction, error) {
	t, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !t.IsReconciled {
		return nil, domain.ErrNotReconciled
	}
	t.IsReconciled = false
	t.JournalEntryID = nil
	if err := s.transactions.Save(ctx, nil, t); err != nil {
		return nil, err
	}
	return t, nil
}

// EntryReconciled implements the journal engine's reconciliation check:
// entries matched to a bank transaction cannot be deleted.
func (s *BankService) EntryReconciled(ctx context.Context, journalEntryID int64) (bool, error) {
	return s.transactions.LinkedToEntry(ctx, journalEntryID)
}
