package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/northbooks/northbooks/internal/ledger/adapter/repo"
	"github.com/northbooks/northbooks/internal/ledger/domain"
)

type fixture struct {
	db       *gorm.DB
	accounts *repo.AccountRepo
	journal  *JournalService
	chart    *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Account{}, &domain.JournalEntry{}, &domain.JournalLine{},
	))

	accountRepo := repo.NewAccountRepo(db)
	journalRepo := repo.NewJournalRepo(db)
	logger := zap.NewNop()

	f := &fixture{
		db:       db,
		accounts: accountRepo,
		journal:  NewJournalService(db, accountRepo, journalRepo, nil, logger),
		chart:    NewAccountService(db, accountRepo, journalRepo, logger),
	}
	_, err = f.chart.SeedChart(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) account(t *testing.T, code string) *domain.Account {
	t.Helper()
	a, err := f.accounts.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return a
}

func (f *fixture) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	a := f.account(t, code)
	b, err := f.chart.GetBalance(context.Background(), a.ID, nil)
	require.NoError(t, err)
	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPostEntry_CashSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)

	entry, err := f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "Cash sale",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("500.00")},
			{AccountID: revenue.ID, Credit: dec("500.00")},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Len(t, entry.Lines, 2)
	assert.True(t, entry.IsPosted)

	assert.True(t, f.balance(t, CodeCash).Equal(dec("500")), "cash should be 500, got %s", f.balance(t, CodeCash))
	assert.True(t, f.balance(t, CodeRevenue).Equal(dec("500")))
}

func TestPostEntry_ExpenseWithTax(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent := f.account(t, "5350")
	gst := f.account(t, CodeTaxReceivable)
	cash := f.account(t, CodeCash)

	_, err := f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-05"),
		Description: "March rent",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: rent.ID, Debit: dec("100.00")},
			{AccountID: gst.ID, Debit: dec("5.00")},
			{AccountID: cash.ID, Credit: dec("105.00")},
		},
	})
	require.NoError(t, err)

	assert.True(t, f.balance(t, "5350").Equal(dec("100")))
	assert.True(t, f.balance(t, CodeTaxReceivable).Equal(dec("5")))
	assert.True(t, f.balance(t, CodeCash).Equal(dec("-105")))
}

func TestPostEntry_Unbalanced(t *testing.T) {
	f := newFixture(t)
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)

	_, err := f.journal.PostEntry(context.Background(), PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "off by two cents",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("100.00")},
			{AccountID: revenue.ID, Credit: dec("99.98")},
		},
	})
	require.Error(t, err)

	var unbalanced *domain.UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	assert.True(t, unbalanced.Delta.Equal(dec("0.02")))

	// Nothing committed.
	assert.True(t, f.balance(t, CodeCash).IsZero())
}

func TestPostEntry_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)

	base := PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "x",
		Type:        domain.EntryManual,
	}

	t.Run("single line", func(t *testing.T) {
		p := base
		p.Lines = []LineParams{{AccountID: cash.ID, Debit: dec("10.00")}}
		_, err := f.journal.PostEntry(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("negative amount", func(t *testing.T) {
		p := base
		p.Lines = []LineParams{
			{AccountID: cash.ID, Debit: dec("-10.00")},
			{AccountID: revenue.ID, Credit: dec("-10.00")},
		}
		_, err := f.journal.PostEntry(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("both sides set", func(t *testing.T) {
		p := base
		p.Lines = []LineParams{
			{AccountID: cash.ID, Debit: dec("10.00"), Credit: dec("10.00")},
			{AccountID: revenue.ID, Credit: dec("10.00")},
		}
		_, err := f.journal.PostEntry(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("sub-cent precision", func(t *testing.T) {
		p := base
		p.Lines = []LineParams{
			{AccountID: cash.ID, Debit: dec("10.001")},
			{AccountID: revenue.ID, Credit: dec("10.001")},
		}
		_, err := f.journal.PostEntry(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("missing description", func(t *testing.T) {
		p := base
		p.Description = ""
		p.Lines = []LineParams{
			{AccountID: cash.ID, Debit: dec("10.00")},
			{AccountID: revenue.ID, Credit: dec("10.00")},
		}
		_, err := f.journal.PostEntry(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown entry type", func(t *testing.T) {
		p := base
		p.Type = domain.EntryType("bogus")
		p.Lines = []LineParams{
			{AccountID: cash.ID, Debit: dec("10.00")},
			{AccountID: revenue.ID, Credit: dec("10.00")},
		}
		_, err := f.journal.PostEntry(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestPostEntry_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	cash := f.account(t, CodeCash)

	_, err := f.journal.PostEntry(context.Background(), PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "bad account",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("10.00")},
			{AccountID: 99999, Credit: dec("10.00")},
		},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostEntry_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)

	misc, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "7000", Name: "Misc Income", Type: domain.Revenue,
	})
	require.NoError(t, err)
	require.NoError(t, f.chart.SetActive(ctx, misc.ID, false))

	_, err = f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "inactive target",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("10.00")},
			{AccountID: misc.ID, Credit: dec("10.00")},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInactiveAccount)
}

func TestDeleteEntry_ReversesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)

	entry, err := f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "to be deleted",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("250.00")},
			{AccountID: revenue.ID, Credit: dec("250.00")},
		},
	})
	require.NoError(t, err)
	require.NoError(t, f.journal.DeleteEntry(ctx, entry.ID))

	_, err = f.journal.GetEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, f.balance(t, CodeCash).IsZero())
	assert.True(t, f.balance(t, CodeRevenue).IsZero())
}

func TestDeleteEntry_NotManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)

	entry, err := f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "year-end adjustment",
		Type:        domain.EntryAdjustment,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("50.00")},
			{AccountID: revenue.ID, Credit: dec("50.00")},
		},
	})
	require.NoError(t, err)

	err = f.journal.DeleteEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotManual)
}

type stubChecker struct{ linked bool }

func (s stubChecker) EntryReconciled(context.Context, int64) (bool, error) {
	return s.linked, nil
}

func TestDeleteEntry_Reconciled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)

	entry, err := f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "matched to a bank line",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("75.00")},
			{AccountID: revenue.ID, Credit: dec("75.00")},
		},
	})
	require.NoError(t, err)

	f.journal.SetReconciliationChecker(stubChecker{linked: true})
	err = f.journal.DeleteEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, domain.ErrReferenced)

	// The blocked delete rolled back whole: entry and balances intact.
	kept, err := f.journal.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Lines, 2)
	assert.True(t, f.balance(t, CodeCash).Equal(dec("75")))

	f.journal.SetReconciliationChecker(stubChecker{linked: false})
	assert.NoError(t, f.journal.DeleteEntry(ctx, entry.ID))
}

func TestListEntries_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	bank := f.account(t, CodeBank)
	revenue := f.account(t, CodeRevenue)

	post := func(day string, entryType domain.EntryType, debitAcct int64) {
		_, err := f.journal.PostEntry(ctx, PostEntryParams{
			Date:        date(day),
			Description: "entry " + day,
			Type:        entryType,
			Lines: []LineParams{
				{AccountID: debitAcct, Debit: dec("10.00")},
				{AccountID: revenue.ID, Credit: dec("10.00")},
			},
		})
		require.NoError(t, err)
	}
	post("2024-03-01", domain.EntryManual, cash.ID)
	post("2024-03-02", domain.EntryManual, bank.ID)
	post("2024-03-03", domain.EntryAdjustment, cash.ID)

	all, total, err := f.journal.ListEntries(ctx, domain.EntryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "entry 2024-03-03", all[0].Description)

	manual := domain.EntryManual
	byType, total, err := f.journal.ListEntries(ctx, domain.EntryFilter{Type: &manual})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, byType, 2)

	byAccount, total, err := f.journal.ListEntries(ctx, domain.EntryFilter{AccountID: &bank.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "entry 2024-03-02", byAccount[0].Description)

	from, to := date("2024-03-02"), date("2024-03-02")
	byDate, total, err := f.journal.ListEntries(ctx, domain.EntryFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, byDate, 1)
}
