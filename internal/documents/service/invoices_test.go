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

	"github.com/northbooks/northbooks/internal/documents/adapter/repo"
	"github.com/northbooks/northbooks/internal/documents/domain"
	ledgerrepo "github.com/northbooks/northbooks/internal/ledger/adapter/repo"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
	ledgersvc "github.com/northbooks/northbooks/internal/ledger/service"
)

type fixture struct {
	db        *gorm.DB
	accounts  *ledgerrepo.AccountRepo
	ledger    *ledgersvc.AccountService
	journal   *ledgersvc.JournalService
	invoices  *InvoiceService
	bills     *BillService
	customers *CustomerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.Account{}, &ledgerdomain.JournalEntry{}, &ledgerdomain.JournalLine{},
		&domain.Customer{},
		&domain.Invoice{}, &domain.InvoiceItem{}, &domain.InvoicePayment{},
		&domain.Bill{}, &domain.BillItem{}, &domain.BillPayment{},
	))

	logger := zap.NewNop()
	accountRepo := ledgerrepo.NewAccountRepo(db)
	journalRepo := ledgerrepo.NewJournalRepo(db)
	journalSvc := ledgersvc.NewJournalService(db, accountRepo, journalRepo, nil, logger)
	ledgerSvc := ledgersvc.NewAccountService(db, accountRepo, journalRepo, logger)

	customerRepo := repo.NewCustomerRepo(db)
	invoiceRepo := repo.NewInvoiceRepo(db)
	billRepo := repo.NewBillRepo(db)

	f := &fixture{
		db:        db,
		accounts:  accountRepo,
		ledger:    ledgerSvc,
		journal:   journalSvc,
		invoices:  NewInvoiceService(db, invoiceRepo, customerRepo, journalSvc, accountRepo, logger),
		bills:     NewBillService(db, billRepo, customerRepo, journalSvc, accountRepo, logger),
		customers: NewCustomerService(customerRepo, logger),
	}
	_, err = ledgerSvc.SeedChart(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	a, err := f.accounts.FindByCode(context.Background(), code)
	require.NoError(t, err)
	b, err := f.ledger.GetBalance(context.Background(), a.ID, nil)
	require.NoError(t, err)
	return b
}

func (f *fixture) customer(t *testing.T, name string, ct domain.ContactType) *domain.Customer {
	t.Helper()
	c, err := f.customers.Create(context.Background(), CreateCustomerParams{Name: name, ContactType: ct})
	require.NoError(t, err)
	return c
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

func draftInvoice(t *testing.T, f *fixture, customerID int64) *domain.Invoice {
	t.Helper()
	inv, err := f.invoices.Create(context.Background(), CreateInvoiceParams{
		CustomerID:  customerID,
		InvoiceDate: date("2024-04-01"),
		DueDate:     date("2024-04-30"),
		TaxRate:     dec("0.05"),
		Items: []ItemParams{
			{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("100.00")},
		},
	})
	require.NoError(t, err)
	return inv
}

func TestInvoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)

	inv := draftInvoice(t, f, cust.ID)
	assert.Equal(t, "INV-1001", inv.InvoiceNumber)
	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.True(t, inv.Subtotal.Equal(dec("200.00")))
	assert.True(t, inv.TaxAmount.Equal(dec("10.00")))
	assert.True(t, inv.Total.Equal(dec("210.00")))

	// Drafts have no ledger effect.
	assert.True(t, f.balance(t, ledgersvc.CodeReceivable).IsZero())

	issued, err := f.invoices.Issue(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, issued.Status)

	assert.True(t, f.balance(t, ledgersvc.CodeReceivable).Equal(dec("210")))
	assert.True(t, f.balance(t, ledgersvc.CodeRevenue).Equal(dec("200")))
	assert.True(t, f.balance(t, ledgersvc.CodeTaxPayable).Equal(dec("10")))

	// The posted entry links back to the invoice.
	entries, _, err := f.journal.ListEntries(ctx, ledgerdomain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledgerdomain.EntryAutoInvoice, entries[0].EntryType)
	require.NotNil(t, entries[0].InvoiceID)
	assert.Equal(t, inv.ID, *entries[0].InvoiceID)

	paid, err := f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("210.00"),
		Date:   date("2024-04-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	require.Len(t, paid.Payments, 1)
	assert.Equal(t, "bank_transfer", paid.Payments[0].Method)

	assert.True(t, f.balance(t, ledgersvc.CodeBank).Equal(dec("210")))
	assert.True(t, f.balance(t, ledgersvc.CodeReceivable).IsZero())
}

func TestInvoice_PartialThenOverpayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	inv := draftInvoice(t, f, cust.ID)
	_, err := f.invoices.Issue(ctx, inv.ID)
	require.NoError(t, err)

	partial, err := f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("100.00"),
		Date:   date("2024-04-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, partial.Status)
	assert.True(t, partial.AmountOwing().Equal(dec("110.00")))

	_, err = f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("150.00"),
		Date:   date("2024-04-11"),
	})
	var overpay *domain.OverPaymentError
	require.ErrorAs(t, err, &overpay)
	assert.True(t, overpay.Owing.Equal(dec("110.00")))

	// The rejected payment left no trace.
	assert.True(t, f.balance(t, ledgersvc.CodeBank).Equal(dec("100")))

	final, err := f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("110.00"),
		Date:   date("2024-04-12"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, final.Status)
	assert.True(t, f.balance(t, ledgersvc.CodeReceivable).IsZero())
}

func TestInvoice_DraftEditing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	inv := draftInvoice(t, f, cust.ID)

	updated, err := f.invoices.Update(ctx, inv.ID, UpdateInvoiceParams{
		Items: []ItemParams{
			{Description: "Consulting", Quantity: dec("3"), UnitPrice: dec("100.00")},
		},
	})
	require.NoError(t, err)
	assert.True(t, updated.Subtotal.Equal(dec("300.00")))
	assert.True(t, updated.Total.Equal(dec("315.00")))
	require.Len(t, updated.Items, 1)

	// Changing only the tax rate retotals existing items.
	zero := dec("0")
	updated, err = f.invoices.Update(ctx, inv.ID, UpdateInvoiceParams{TaxRate: &zero})
	require.NoError(t, err)
	assert.True(t, updated.TaxAmount.IsZero())
	assert.True(t, updated.Total.Equal(dec("300.00")))

	_, err = f.invoices.Issue(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.invoices.Update(ctx, inv.ID, UpdateInvoiceParams{TaxRate: &zero})
	assert.ErrorIs(t, err, domain.ErrNotDraft)
	err = f.invoices.Delete(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestInvoice_SequentialNumbers(t *testing.T) {
	f := newFixture(t)
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)

	first := draftInvoice(t, f, cust.ID)
	second := draftInvoice(t, f, cust.ID)
	assert.Equal(t, "INV-1001", first.InvoiceNumber)
	assert.Equal(t, "INV-1002", second.InvoiceNumber)
}

func TestInvoice_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)

	base := CreateInvoiceParams{
		CustomerID:  cust.ID,
		InvoiceDate: date("2024-04-01"),
		DueDate:     date("2024-04-30"),
		Items: []ItemParams{
			{Description: "Work", Quantity: dec("1"), UnitPrice: dec("50.00")},
		},
	}

	t.Run("due date before invoice date", func(t *testing.T) {
		p := base
		p.DueDate = date("2024-03-01")
		_, err := f.invoices.Create(ctx, p)
		assert.ErrorIs(t, err, domain.ErrInvalidDueDate)
	})

	t.Run("unknown customer", func(t *testing.T) {
		p := base
		p.CustomerID = 99999
		_, err := f.invoices.Create(ctx, p)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no items", func(t *testing.T) {
		p := base
		p.Items = nil
		_, err := f.invoices.Create(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("zero quantity", func(t *testing.T) {
		p := base
		p.Items = []ItemParams{{Description: "Work", Quantity: dec("0"), UnitPrice: dec("50.00")}}
		_, err := f.invoices.Create(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("negative tax rate", func(t *testing.T) {
		p := base
		p.TaxRate = dec("-0.05")
		_, err := f.invoices.Create(ctx, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestInvoice_PaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	inv := draftInvoice(t, f, cust.ID)

	// Drafts cannot take payments.
	_, err := f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("10.00"), Date: date("2024-04-10"),
	})
	assert.ErrorIs(t, err, domain.ErrNotIssued)

	_, err = f.invoices.Issue(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("10.00"), Date: date("2024-04-10"), Method: "barter",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("-5.00"), Date: date("2024-04-10"),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInvoice_OverdueIsDerived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	inv := draftInvoice(t, f, cust.ID)
	_, err := f.invoices.Issue(ctx, inv.ID)
	require.NoError(t, err)

	// Before the due date the stored status shows through.
	_, status, err := f.invoices.Get(ctx, inv.ID, date("2024-04-15"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, status)

	// After the due date the label flips, but the stored status does not.
	stored, status, err := f.invoices.Get(ctx, inv.ID, date("2024-05-15"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, status)
	assert.Equal(t, domain.StatusSent, stored.Status)

	// Paying clears the overdue label.
	_, err = f.invoices.RecordPayment(ctx, inv.ID, PaymentParams{
		Amount: dec("210.00"), Date: date("2024-05-20"),
	})
	require.NoError(t, err)
	_, status, err = f.invoices.Get(ctx, inv.ID, date("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, status)
}

func TestInvoice_DeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	inv := draftInvoice(t, f, cust.ID)

	require.NoError(t, f.invoices.Delete(ctx, inv.ID))
	_, _, err := f.invoices.Get(ctx, inv.ID, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// lateEditInvoiceRepo runs a callback just before the row lock is taken,
// standing in for a draft edit racing an issue call.
type lateEditInvoiceRepo struct {
	domain.InvoiceRepository
	beforeLock func()
}

func (r *lateEditInvoiceRepo) FindForUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Invoice, error) {
	if r.beforeLock != nil {
		fn := r.beforeLock
		r.beforeLock = nil
		fn()
	}
	return r.InvoiceRepository.FindForUpdate(ctx, db, id)
}

func TestInvoice_IssuePostsLockedTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	inv := draftInvoice(t, f, cust.ID) // total 210.00

	racy := &lateEditInvoiceRepo{InvoiceRepository: repo.NewInvoiceRepo(f.db)}
	svc := NewInvoiceService(f.db, racy, repo.NewCustomerRepo(f.db), f.journal, f.accounts, zap.NewNop())

	// A draft edit commits between the issue pre-read and the row lock.
	racy.beforeLock = func() {
		_, err := f.invoices.Update(ctx, inv.ID, UpdateInvoiceParams{
			Items: []ItemParams{
				{Description: "Consulting", Quantity: dec("4"), UnitPrice: dec("100.00")},
			},
		})
		require.NoError(t, err)
	}

	issued, err := svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, issued.Status)
	assert.True(t, issued.Total.Equal(dec("420.00")))

	// The posting carries the totals the invoice froze with.
	assert.True(t, f.balance(t, ledgersvc.CodeReceivable).Equal(dec("420")))
	assert.True(t, f.balance(t, ledgersvc.CodeRevenue).Equal(dec("400")))
	assert.True(t, f.balance(t, ledgersvc.CodeTaxPayable).Equal(dec("20")))
}

func TestInvoice_NumberingSeesUncommittedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust := f.customer(t, "Acme Corp", domain.ContactCustomer)
	draftInvoice(t, f, cust.ID) // INV-1001

	invRepo := repo.NewInvoiceRepo(f.db)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		inv := &domain.Invoice{
			CustomerID:    cust.ID,
			InvoiceNumber: "INV-1002",
			InvoiceDate:   date("2024-04-02"),
			DueDate:       date("2024-04-30"),
			Status:        domain.StatusDraft,
		}
		if err := invRepo.Create(ctx, tx, inv); err != nil {
			return err
		}
		last, err := invRepo.LastNumber(ctx, tx)
		if err != nil {
			return err
		}
		assert.Equal(t, "INV-1002", last)
		return nil
	})
	require.NoError(t, err)
}

func TestCustomer_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customers.Create(ctx, CreateCustomerParams{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.customers.Create(ctx, CreateCustomerParams{Name: "X", ContactType: "alien"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err := f.customers.Create(ctx, CreateCustomerParams{Name: "Defaulted"})
	require.NoError(t, err)
	assert.Equal(t, domain.ContactCustomer, c.ContactType)
}

func TestCustomer_ListByType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer(t, "Customer Only", domain.ContactCustomer)
	f.customer(t, "Vendor Only", domain.ContactVendor)
	f.customer(t, "Both Ways", domain.ContactBoth)

	vendors := domain.ContactVendor
	got, err := f.customers.List(ctx, &vendors)
	require.NoError(t, err)
	// "both" entries appear in vendor listings too.
	require.Len(t, got, 2)

	all, err := f.customers.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
