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

// AccountService manages the chart of accounts and serves balance and ledger
// projections over posted journal lines.
type AccountService struct {
	db       *gorm.DB
	accounts domain.AccountRepository
	journal  domain.JournalRepository
	logger   *zap.Logger
}

func NewAccountService(db *gorm.DB, accounts domain.AccountRepository, journal domain.JournalRepository, logger *zap.Logger) *AccountService {
	return &AccountService{db: db, accounts: accounts, journal: journal, logger: logger}
}

// CreateAccountParams describes a new account. NormalBalance is derived from
// the type, never supplied.
type CreateAccountParams struct {
	Code            string
	Name            string
	Type            domain.AccountType
	SubType         string
	Description     string
	ParentAccountID *int64
	TaxCode         string
}

// CreateAccount adds an account to the chart. The code must be unique and a
// parent, when given, must exist and share the account type.
func (s *AccountService) CreateAccount(ctx context.Context, p CreateAccountParams) (*domain.Account, error) {
	if p.Code == "" || p.Name == "" {
		return nil, fmt.Errorf("%w: code and name are required", domain.ErrValidation)
	}
	if !p.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, p.Type)
	}

	if _, err := s.accounts.FindByCode(ctx, p.Code); err == nil {
		return nil, fmt.Errorf("code %s: %w", p.Code, domain.ErrDuplicateCode)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if p.ParentAccountID != nil {
		parent, err := s.accounts.FindByID(ctx, *p.ParentAccountID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("parent %d: %w", *p.ParentAccountID, domain.ErrInvalidParent)
			}
			return nil, err
		}
		if parent.Type != p.Type {
			return nil, fmt.Errorf("parent %s is %s, child is %s: %w", parent.Code, parent.Type, p.Type, domain.ErrInvalidParent)
		}
	}

	a := &domain.Account{
		Code:            p.Code,
		Name:            p.Name,
		Type:            p.Type,
		SubType:         p.SubType,
		Description:     p.Description,
		ParentAccountID: p.ParentAccountID,
		NormalBalance:   domain.NormalBalanceFor(p.Type),
		TaxCode:         p.TaxCode,
		IsActive:        true,
	}
	if err := s.accounts.Create(ctx, nil, a); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	s.logger.Info("account created", zap.String("code", a.Code), zap.String("type", string(a.Type)))
	return a, nil
}

// AccountPatch holds the mutable fields of an account. Nil means unchanged.
type AccountPatch struct {
	Code        *string
	Name        *string
	Type        *domain.AccountType
	SubType     *string
	Description *string
	TaxCode     *string
	ParentID    *int64
	ClearParent bool
}

// UpdateAccount applies a patch. Code and type are locked on system accounts;
// parent changes are checked against cycles and type mismatches.
func (s *AccountService) UpdateAccount(ctx context.Context, id int64, patch AccountPatch) (*domain.Account, error) {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.IsSystem && (patch.Code != nil || patch.Type != nil) {
		return nil, domain.ErrSystemAccount
	}

	if patch.Code != nil && *patch.Code != a.Code {
		if _, err := s.accounts.FindByCode(ctx, *patch.Code); err == nil {
			return nil, fmt.Errorf("code %s: %w", *patch.Code, domain.ErrDuplicateCode)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		a.Code = *patch.Code
	}
	if patch.Type != nil && *patch.Type != a.Type {
		if !patch.Type.IsValid() {
			return nil, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, *patch.Type)
		}
		a.Type = *patch.Type
		a.NormalBalance = domain.NormalBalanceFor(a.Type)
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.SubType != nil {
		a.SubType = *patch.SubType
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}
	if patch.TaxCode != nil {
		a.TaxCode = *patch.TaxCode
	}

	if patch.ClearParent {
		a.ParentAccountID = nil
	} else if patch.ParentID != nil {
		if err := s.checkParent(ctx, a, *patch.ParentID); err != nil {
			return nil, err
		}
		a.ParentAccountID = patch.ParentID
	}

	if err := s.accounts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}
	return a, nil
}

// checkParent rejects parents that do not exist, cross account types, or
// would form a cycle through the account being edited.
func (s *AccountService) checkParent(ctx context.Context, a *domain.Account, parentID int64) error {
	if parentID == a.ID {
		return fmt.Errorf("account cannot parent itself: %w", domain.ErrInvalidParent)
	}
	parent, err := s.accounts.FindByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("parent %d: %w", parentID, domain.ErrInvalidParent)
		}
		return err
	}
	if parent.Type != a.Type {
		return fmt.Errorf("parent %s is %s, child is %s: %w", parent.Code, parent.Type, a.Type, domain.ErrInvalidParent)
	}
	for cur := parent; cur.ParentAccountID != nil; {
		if *cur.ParentAccountID == a.ID {
			return fmt.Errorf("parent chain loops through %s: %w", a.Code, domain.ErrInvalidParent)
		}
		next, err := s.accounts.FindByID(ctx, *cur.ParentAccountID)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// SetActive toggles an account. Deactivation hides the account from pickers
// but leaves historical balances untouched.
func (s *AccountService) SetActive(ctx context.Context, id int64, active bool) error {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if a.IsActive == active {
		return nil
	}
	a.IsActive = active
	return s.accounts.Save(ctx, a)
}

// DeleteAccount removes an account without ledger activity; an account with
// history is deactivated instead. System accounts are protected.
// Returns true when the account was hard-deleted.
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if a.IsSystem {
		return false, domain.ErrSystemAccount
	}
	hasLines, err := s.accounts.HasLines(ctx, id)
	if err != nil {
		return false, err
	}
	if hasLines {
		a.IsActive = false
		return false, s.accounts.Save(ctx, a)
	}
	return true, s.db.WithContext(ctx).Delete(&domain.Account{}, id).Error
}

// GetAccount returns one account.
func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

// ListAccounts returns accounts ordered by code.
func (s *AccountService) ListAccounts(ctx context.Context, f domain.AccountFilter) ([]domain.Account, error) {
	return s.accounts.List(ctx, f)
}

// GetBalance returns the signed balance of an account as of a date (nil means
// all history). Parent accounts aggregate every descendant, descendant-first.
func (s *AccountService) GetBalance(ctx context.Context, id int64, asOf *time.Time) (decimal.Decimal, error) {
	all, err := s.accounts.List(ctx, domain.AccountFilter{})
	if err != nil {
		return decimal.Zero, err
	}
	byID := make(map[int64]*domain.Account, len(all))
	children := make(map[int64][]int64, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
		if all[i].ParentAccountID != nil {
			children[*all[i].ParentAccountID] = append(children[*all[i].ParentAccountID], all[i].ID)
		}
	}
	if _, ok := byID[id]; !ok {
		return decimal.Zero, domain.ErrNotFound
	}

	subtree := collectSubtree(id, children)
	sums, err := s.journal.SumByAccount(ctx, subtree, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	activity := make(map[int64]domain.AccountActivity, len(sums))
	for _, sum := range sums {
		activity[sum.AccountID] = sum
	}

	return sumSubtree(id, children, byID, activity), nil
}

// sumSubtree adds up signed balances bottom-up: children first, then the
// node's own activity.
func sumSubtree(id int64, children map[int64][]int64, byID map[int64]*domain.Account, activity map[int64]domain.AccountActivity) decimal.Decimal {
	total := decimal.Zero
	for _, child := range children[id] {
		total = total.Add(sumSubtree(child, children, byID, activity))
	}
	if act, ok := activity[id]; ok {
		own := byID[id].NormalBalance.Sign().Mul(act.Debit.Sub(act.Credit))
		total = total.Add(own)
	}
	return total
}

func collectSubtree(id int64, children map[int64][]int64) []int64 {
	ids := []int64{id}
	for _, child := range children[id] {
		ids = append(ids, collectSubtree(child, children)...)
	}
	return ids
}

// Ledger is one page of an account's ledger with a running balance column
// seeded from the activity before the requested window.
type Ledger struct {
	Account *domain.Account
	Opening decimal.Decimal
	Rows    []domain.LedgerRow
	Total   int64
}

// GetLedger returns ledger rows ordered (entry_date, entry id, line id) with
// running balances. Offset-based, so a consumer can restart anywhere.
func (s *AccountService) GetLedger(ctx context.Context, id int64, f domain.LedgerFilter) (*Ledger, error) {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	opening := decimal.Zero
	if f.From != nil {
		act, err := s.journal.Opening(ctx, id, *f.From)
		if err != nil {
			return nil, err
		}
		opening = a.NormalBalance.Sign().Mul(act.Debit.Sub(act.Credit))
	}

	rows, total, err := s.journal.LedgerRows(ctx, id, f)
	if err != nil {
		return nil, err
	}

	// Resume the running balance at the page boundary.
	running := opening
	if f.Offset > 0 {
		page := domain.LedgerFilter{From: f.From, To: f.To, Limit: f.Offset, Offset: 0}
		prior, _, err := s.journal.LedgerRows(ctx, id, page)
		if err != nil {
			return nil, err
		}
		for _, r := range prior {
			running = running.Add(a.NormalBalance.Sign().Mul(r.Debit.Sub(r.Credit)))
		}
	}
	for i := range rows {
		running = running.Add(a.NormalBalance.Sign().Mul(rows[i].Debit.Sub(rows[i].Credit)))
		rows[i].Running = running
	}

	return &Ledger{Account: a, Opening: opening, Rows: rows, Total: total}, nil
}
