package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/documents/adapter/repo"
	"github.com/northbooks/northbooks/internal/documents/domain"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
	ledgersvc "github.com/northbooks/northbooks/internal/ledger/service"
)

func draftBill(t *testing.T, f *fixture, vendorID int64, items []ItemParams) *domain.Bill {
	t.Helper()
	b, err := f.bills.Create(context.Background(), CreateBillParams{
		VendorID: vendorID,
		BillDate: date("2024-04-01"),
		DueDate:  date("2024-04-30"),
		TaxRate:  dec("0.05"),
		Items:    items,
	})
	require.NoError(t, err)
	return b
}

func TestBillLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.customer(t, "Paper Supply Co", domain.ContactVendor)

	supplies, err := f.accounts.FindByCode(ctx, "5250")
	require.NoError(t, err)

	b := draftBill(t, f, vendor.ID, []ItemParams{
		{Description: "Office supplies", Quantity: dec("2"), UnitPrice: dec("100.00"), AccountID: &supplies.ID},
	})
	assert.Equal(t, "BILL-1001", b.BillNumber)
	assert.Equal(t, domain.StatusDraft, b.Status)
	assert.True(t, b.Total.Equal(dec("210.00")))

	issued, err := f.bills.Issue(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, issued.Status)

	assert.True(t, f.balance(t, "5250").Equal(dec("200")))
	assert.True(t, f.balance(t, ledgersvc.CodeTaxReceivable).Equal(dec("10")))
	assert.True(t, f.balance(t, ledgersvc.CodePayable).Equal(dec("210")))

	entries, _, err := f.journal.ListEntries(ctx, ledgerdomain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledgerdomain.EntryAutoBill, entries[0].EntryType)
	require.NotNil(t, entries[0].BillID)
	assert.Equal(t, b.ID, *entries[0].BillID)

	paid, err := f.bills.RecordPayment(ctx, b.ID, PaymentParams{
		Amount: dec("210.00"),
		Date:   date("2024-04-20"),
		Method: "cheque",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)

	assert.True(t, f.balance(t, ledgersvc.CodePayable).IsZero())
	assert.True(t, f.balance(t, ledgersvc.CodeBank).Equal(dec("-210")))
}

func TestBill_ExpenseAccountFallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.customer(t, "Paper Supply Co", domain.ContactVendor)

	t.Run("no account anywhere falls back to other expenses", func(t *testing.T) {
		b := draftBill(t, f, vendor.ID, []ItemParams{
			{Description: "Mystery charge", Quantity: dec("1"), UnitPrice: dec("40.00")},
		})
		_, err := f.bills.Issue(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, f.balance(t, ledgersvc.CodeOtherExpense).Equal(dec("40")))
	})

	t.Run("bill default covers items without an override", func(t *testing.T) {
		rent, err := f.accounts.FindByCode(ctx, "5350")
		require.NoError(t, err)
		supplies, err := f.accounts.FindByCode(ctx, "5250")
		require.NoError(t, err)

		b, err := f.bills.Create(ctx, CreateBillParams{
			VendorID:         vendor.ID,
			BillDate:         date("2024-04-01"),
			DueDate:          date("2024-04-30"),
			ExpenseAccountID: &rent.ID,
			Items: []ItemParams{
				{Description: "Rent", Quantity: dec("1"), UnitPrice: dec("500.00")},
				{Description: "Supplies", Quantity: dec("1"), UnitPrice: dec("25.00"), AccountID: &supplies.ID},
			},
		})
		require.NoError(t, err)
		_, err = f.bills.Issue(ctx, b.ID)
		require.NoError(t, err)

		assert.True(t, f.balance(t, "5350").Equal(dec("500")))
		assert.True(t, f.balance(t, "5250").Equal(dec("25")))
	})
}

func TestBill_DraftEditing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.customer(t, "Paper Supply Co", domain.ContactVendor)

	b := draftBill(t, f, vendor.ID, []ItemParams{
		{Description: "Toner", Quantity: dec("1"), UnitPrice: dec("80.00")},
	})

	updated, err := f.bills.Update(ctx, b.ID, UpdateBillParams{
		Items: []ItemParams{
			{Description: "Toner", Quantity: dec("2"), UnitPrice: dec("80.00")},
		},
	})
	require.NoError(t, err)
	assert.True(t, updated.Subtotal.Equal(dec("160.00")))

	_, err = f.bills.Issue(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.bills.Update(ctx, b.ID, UpdateBillParams{})
	assert.ErrorIs(t, err, domain.ErrNotDraft)
	err = f.bills.Delete(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotDraft)
}

// lateEditBillRepo runs a callback just before the row lock is taken,
// standing in for a draft edit racing an issue call.
type lateEditBillRepo struct {
	domain.BillRepository
	beforeLock func()
}

func (r *lateEditBillRepo) FindForUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Bill, error) {
	if r.beforeLock != nil {
		fn := r.beforeLock
		r.beforeLock = nil
		fn()
	}
	return r.BillRepository.FindForUpdate(ctx, db, id)
}

func TestBill_IssuePostsLockedTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.customer(t, "Paper Supply Co", domain.ContactVendor)
	supplies, err := f.accounts.FindByCode(ctx, "5250")
	require.NoError(t, err)

	b := draftBill(t, f, vendor.ID, []ItemParams{
		{Description: "Office supplies", Quantity: dec("2"), UnitPrice: dec("100.00"), AccountID: &supplies.ID},
	}) // total 210.00

	racy := &lateEditBillRepo{BillRepository: repo.NewBillRepo(f.db)}
	svc := NewBillService(f.db, racy, repo.NewCustomerRepo(f.db), f.journal, f.accounts, zap.NewNop())

	// A draft edit commits between the issue pre-read and the row lock.
	racy.beforeLock = func() {
		_, err := f.bills.Update(ctx, b.ID, UpdateBillParams{
			Items: []ItemParams{
				{Description: "Office supplies", Quantity: dec("3"), UnitPrice: dec("100.00"), AccountID: &supplies.ID},
			},
		})
		require.NoError(t, err)
	}

	issued, err := svc.Issue(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, issued.Status)
	assert.True(t, issued.Total.Equal(dec("315.00")))

	// The posting carries the totals the bill froze with.
	assert.True(t, f.balance(t, "5250").Equal(dec("300")))
	assert.True(t, f.balance(t, ledgersvc.CodeTaxReceivable).Equal(dec("15")))
	assert.True(t, f.balance(t, ledgersvc.CodePayable).Equal(dec("315")))
}

func TestBill_Overpayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.customer(t, "Paper Supply Co", domain.ContactVendor)

	b := draftBill(t, f, vendor.ID, []ItemParams{
		{Description: "Toner", Quantity: dec("1"), UnitPrice: dec("100.00")},
	})
	_, err := f.bills.Issue(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.bills.RecordPayment(ctx, b.ID, PaymentParams{
		Amount: dec("200.00"),
		Date:   date("2024-04-20"),
	})
	var overpay *domain.OverPaymentError
	require.ErrorAs(t, err, &overpay)
	assert.True(t, overpay.Owing.Equal(dec("105.00")))
}

func TestBill_OverdueIsDerived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.customer(t, "Paper Supply Co", domain.ContactVendor)

	b := draftBill(t, f, vendor.ID, []ItemParams{
		{Description: "Toner", Quantity: dec("1"), UnitPrice: dec("100.00")},
	})
	_, err := f.bills.Issue(ctx, b.ID)
	require.NoError(t, err)

	stored, status, err := f.bills.Get(ctx, b.ID, date("2024-05-15"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, status)
	assert.Equal(t, domain.StatusReceived, stored.Status)
}

func TestBill_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendorA := f.customer(t, "Vendor A", domain.ContactVendor)
	vendorB := f.customer(t, "Vendor B", domain.ContactVendor)

	first := draftBill(t, f, vendorA.ID, []ItemParams{
		{Description: "One", Quantity: dec("1"), UnitPrice: dec("10.00")},
	})
	draftBill(t, f, vendorB.ID, []ItemParams{
		{Description: "Two", Quantity: dec("1"), UnitPrice: dec("20.00")},
	})
	_, err := f.bills.Issue(ctx, first.ID)
	require.NoError(t, err)

	draft := domain.StatusDraft
	drafts, _, total, err := f.bills.List(ctx, domain.DocumentFilter{Status: &draft}, date("2024-04-02"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, drafts, 1)
	assert.Equal(t, "BILL-1002", drafts[0].BillNumber)

	byVendor, _, total, err := f.bills.List(ctx, domain.DocumentFilter{CounterpartyID: &vendorA.ID}, date("2024-04-02"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, byVendor, 1)
	assert.Equal(t, "BILL-1001", byVendor[0].BillNumber)
}
