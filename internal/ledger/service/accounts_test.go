package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbooks/northbooks/internal/ledger/domain"
)

func TestSeedChart_Idempotent(t *testing.T) {
	f := newFixture(t)

	// The fixture already seeded once.
	created, err := f.chart.SeedChart(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created)

	cash := f.account(t, CodeCash)
	assert.True(t, cash.IsSystem)
	assert.Equal(t, domain.DebitNormal, cash.NormalBalance)

	// Contra asset accounts seed credit-normal.
	accum := f.account(t, "1520")
	assert.Equal(t, domain.CreditNormal, accum.NormalBalance)
}

func TestCreateAccount_DuplicateCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.chart.CreateAccount(context.Background(), CreateAccountParams{
		Code: CodeCash, Name: "Cash Again", Type: domain.Asset,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestCreateAccount_ParentTypeMismatch(t *testing.T) {
	f := newFixture(t)
	revenue := f.account(t, CodeRevenue)

	_, err := f.chart.CreateAccount(context.Background(), CreateAccountParams{
		Code: "1700", Name: "Weird Child", Type: domain.Asset,
		ParentAccountID: &revenue.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)
}

func TestUpdateAccount_SystemImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)

	newCode := "1001"
	_, err := f.chart.UpdateAccount(ctx, cash.ID, AccountPatch{Code: &newCode})
	assert.ErrorIs(t, err, domain.ErrSystemAccount)

	newType := domain.Expense
	_, err = f.chart.UpdateAccount(ctx, cash.ID, AccountPatch{Type: &newType})
	assert.ErrorIs(t, err, domain.ErrSystemAccount)

	// Renaming a system account is fine.
	name := "Petty Cash"
	updated, err := f.chart.UpdateAccount(ctx, cash.ID, AccountPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Petty Cash", updated.Name)
}

func TestUpdateAccount_TypeChangeRederivesNormalBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "7000", Name: "Consulting Income", Type: domain.Revenue,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CreditNormal, a.NormalBalance)

	newType := domain.Expense
	updated, err := f.chart.UpdateAccount(ctx, a.ID, AccountPatch{Type: &newType})
	require.NoError(t, err)
	assert.Equal(t, domain.DebitNormal, updated.NormalBalance)
}

func TestUpdateAccount_ParentCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "5990", Name: "Overhead", Type: domain.Expense,
	})
	require.NoError(t, err)
	child, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "5991", Name: "Overhead - Office", Type: domain.Expense,
		ParentAccountID: &parent.ID,
	})
	require.NoError(t, err)

	_, err = f.chart.UpdateAccount(ctx, parent.ID, AccountPatch{ParentID: &child.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)

	_, err = f.chart.UpdateAccount(ctx, parent.ID, AccountPatch{ParentID: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)

	t.Run("system accounts are protected", func(t *testing.T) {
		_, err := f.chart.DeleteAccount(ctx, cash.ID)
		assert.ErrorIs(t, err, domain.ErrSystemAccount)
	})

	t.Run("no history hard-deletes", func(t *testing.T) {
		a, err := f.chart.CreateAccount(ctx, CreateAccountParams{
			Code: "7100", Name: "Scratch", Type: domain.Revenue,
		})
		require.NoError(t, err)
		hardDeleted, err := f.chart.DeleteAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, hardDeleted)
		_, err = f.chart.GetAccount(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("history deactivates instead", func(t *testing.T) {
		a, err := f.chart.CreateAccount(ctx, CreateAccountParams{
			Code: "7200", Name: "Used", Type: domain.Revenue,
		})
		require.NoError(t, err)
		_, err = f.journal.PostEntry(ctx, PostEntryParams{
			Date:        date("2024-03-01"),
			Description: "activity",
			Type:        domain.EntryManual,
			Lines: []LineParams{
				{AccountID: cash.ID, Debit: dec("20.00")},
				{AccountID: a.ID, Credit: dec("20.00")},
			},
		})
		require.NoError(t, err)

		hardDeleted, err := f.chart.DeleteAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, hardDeleted)

		kept, err := f.chart.GetAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, kept.IsActive)
	})
}

func TestGetBalance_Hierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)

	parent, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "5980", Name: "Facilities", Type: domain.Expense,
	})
	require.NoError(t, err)
	childA, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "5981", Name: "Facilities - Rent", Type: domain.Expense,
		ParentAccountID: &parent.ID,
	})
	require.NoError(t, err)
	childB, err := f.chart.CreateAccount(ctx, CreateAccountParams{
		Code: "5982", Name: "Facilities - Cleaning", Type: domain.Expense,
		ParentAccountID: &parent.ID,
	})
	require.NoError(t, err)

	_, err = f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "rent",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: childA.ID, Debit: dec("100.00")},
			{AccountID: cash.ID, Credit: dec("100.00")},
		},
	})
	require.NoError(t, err)
	_, err = f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-10"),
		Description: "cleaning",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: childB.ID, Debit: dec("50.00")},
			{AccountID: cash.ID, Credit: dec("50.00")},
		},
	})
	require.NoError(t, err)

	total, err := f.chart.GetBalance(ctx, parent.ID, nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("150")), "got %s", total)

	// As-of excludes the later posting.
	asOf := date("2024-03-05")
	early, err := f.chart.GetBalance(ctx, parent.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, early.Equal(dec("100")), "got %s", early)
}

func TestGetLedger_RunningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.account(t, CodeCash)
	revenue := f.account(t, CodeRevenue)
	rent := f.account(t, "5350")

	_, err := f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-01"),
		Description: "sale",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: cash.ID, Debit: dec("500.00")},
			{AccountID: revenue.ID, Credit: dec("500.00")},
		},
	})
	require.NoError(t, err)
	_, err = f.journal.PostEntry(ctx, PostEntryParams{
		Date:        date("2024-03-02"),
		Description: "rent",
		Type:        domain.EntryManual,
		Lines: []LineParams{
			{AccountID: rent.ID, Debit: dec("200.00")},
			{AccountID: cash.ID, Credit: dec("200.00")},
		},
	})
	require.NoError(t, err)

	ledger, err := f.chart.GetLedger(ctx, cash.ID, domain.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 2)
	assert.EqualValues(t, 2, ledger.Total)
	assert.True(t, ledger.Rows[0].Running.Equal(dec("500")))
	assert.True(t, ledger.Rows[1].Running.Equal(dec("300")))

	// Offset resumes the running balance where the prior page ended.
	page, err := f.chart.GetLedger(ctx, cash.ID, domain.LedgerFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.True(t, page.Rows[0].Running.Equal(dec("300")))

	// A window seeds the opening balance from what came before.
	from := date("2024-03-02")
	windowed, err := f.chart.GetLedger(ctx, cash.ID, domain.LedgerFilter{From: &from})
	require.NoError(t, err)
	assert.True(t, windowed.Opening.Equal(dec("500")), "got %s", windowed.Opening)
	require.Len(t, windowed.Rows, 1)
	assert.True(t, windowed.Rows[0].Running.Equal(dec("300")))
}
