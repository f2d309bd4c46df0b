package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/northbooks/northbooks/internal/documents/domain"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
	ledgersvc "github.com/northbooks/northbooks/internal/ledger/service"
)

// BillService runs the vendor bill lifecycle, mirroring InvoiceService on the
// payable side of the ledger.
type BillService struct {
	db       *gorm.DB
	bills    domain.BillRepository
	vendors  domain.CustomerRepository
	journal  *ledgersvc.JournalService
	control  controlAccounts
	accounts ledgerdomain.AccountRepository
	logger   *zap.Logger
}

func NewBillService(db *gorm.DB, bills domain.BillRepository, vendors domain.CustomerRepository, journal *ledgersvc.JournalService, accounts ledgerdomain.AccountRepository, logger *zap.Logger) *BillService {
	return &BillService{
		db:       db,
		bills:    bills,
		vendors:  vendors,
		journal:  journal,
		control:  controlAccounts{repo: accounts},
		accounts: accounts,
		logger:   logger,
	}
}

// CreateBillParams describes a new draft bill.
type CreateBillParams struct {
	VendorID         int64
	BillDate         time.Time
	DueDate          time.Time
	TaxRate          decimal.Decimal
	Notes            string
	ExpenseAccountID *int64
	Items            []ItemParams
}

func (s *BillService) Create(ctx context.Context, p CreateBillParams) (*domain.Bill, error) {
	if err := validateItems(p.Items); err != nil {
		return nil, err
	}
	if p.TaxRate.IsNegative() {
		return nil, fmt.Errorf("%w: tax rate cannot be negative", domain.ErrValidation)
	}
	if p.BillDate.IsZero() || p.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: bill date and due date are required", domain.ErrValidation)
	}
	if p.DueDate.Before(p.BillDate) {
		return nil, domain.ErrInvalidDueDate
	}
	if _, err := s.vendors.FindByID(ctx, p.VendorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("vendor %d: %w", p.VendorID, domain.ErrNotFound)
		}
		return nil, err
	}
	if p.ExpenseAccountID != nil {
		if _, err := s.accounts.FindByID(ctx, *p.ExpenseAccountID); err != nil {
			return nil, fmt.Errorf("expense account %d: %w", *p.ExpenseAccountID, err)
		}
	}

	subtotal, taxAmount, total := computeTotals(p.Items, p.TaxRate)
	b := &domain.Bill{
		VendorID:         p.VendorID,
		BillDate:         p.BillDate,
		DueDate:          p.DueDate,
		Status:           domain.StatusDraft,
		Subtotal:         subtotal,
		TaxRate:          p.TaxRate,
		TaxAmount:        taxAmount,
		Total:            total,
		ExpenseAccountID: p.ExpenseAccountID,
		Notes:            p.Notes,
	}
	for _, it := range p.Items {
		b.Items = append(b.Items, domain.BillItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Quantity.Mul(it.UnitPrice).Round(ledgerdomain.MaxPlaces),
			AccountID:   it.AccountID,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := s.bills.LastNumber(ctx, tx)
		if err != nil {
			return err
		}
		b.BillNumber = nextNumber("BILL", last)
		return s.bills.Create(ctx, tx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("creating bill: %w", err)
	}

	s.logger.Info("bill created", zap.String("number", b.BillNumber), zap.Int64("vendor_id", b.VendorID))
	return b, nil
}

// UpdateBillParams patches a draft. Nil fields are unchanged; a non-nil
// Items slice replaces all line items.
type UpdateBillParams struct {
	VendorID         *int64
	BillDate         *time.Time
	DueDate          *time.Time
	TaxRate          *decimal.Decimal
	Notes            *string
	ExpenseAccountID *int64
	Items            []ItemParams
}

// Update edits a draft in place. Received bills are frozen.
func (s *BillService) Update(ctx context.Context, id int64, p UpdateBillParams) (*domain.Bill, error) {
	b, err := s.bills.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	if p.VendorID != nil {
		if _, err := s.vendors.FindByID(ctx, *p.VendorID); err != nil {
			return nil, err
		}
		b.VendorID = *p.VendorID
	}
	if p.BillDate != nil {
		b.BillDate = *p.BillDate
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if b.DueDate.Before(b.BillDate) {
		return nil, domain.ErrInvalidDueDate
	}
	if p.TaxRate != nil {
		if p.TaxRate.IsNegative() {
			return nil, fmt.Errorf("%w: tax rate cannot be negative", domain.ErrValidation)
		}
		b.TaxRate = *p.TaxRate
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	if p.ExpenseAccountID != nil {
		if _, err := s.accounts.FindByID(ctx, *p.ExpenseAccountID); err != nil {
			return nil, fmt.Errorf("expense account %d: %w", *p.ExpenseAccountID, err)
		}
		b.ExpenseAccountID = p.ExpenseAccountID
	}

	items := p.Items
	if items == nil {
		// Retotal with existing items when only the tax rate moved.
		for _, it := range b.Items {
			items = append(items, ItemParams{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice, AccountID: it.AccountID})
		}
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	b.Subtotal, b.TaxAmount, b.Total = computeTotals(items, b.TaxRate)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Items != nil {
			rows := make([]domain.BillItem, len(p.Items))
			for i, it := range p.Items {
				rows[i] = domain.BillItem{
					Description: it.Description,
					Quantity:    it.Quantity,
					UnitPrice:   it.UnitPrice,
					Amount:      it.Quantity.Mul(it.UnitPrice).Round(ledgerdomain.MaxPlaces),
					AccountID:   it.AccountID,
				}
			}
			if err := s.bills.ReplaceItems(ctx, tx, b.ID, rows); err != nil {
				return err
			}
		}
		return s.bills.Save(ctx, tx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("updating bill: %w", err)
	}
	return s.bills.FindByID(ctx, id)
}

// Issue moves a draft to received and posts the payable entry:
// Dr expense per item [+ Dr GST Receivable] / Cr Accounts Payable (total).
// Item-level expense accounts override the bill default; the fallback is the
// Other Expenses account.
func (s *BillService) Issue(ctx context.Context, id int64) (*domain.Bill, error) {
	b, err := s.bills.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	ap, err := s.control.byCode(ctx, ledgersvc.CodePayable)
	if err != nil {
		return nil, err
	}
	fallback, err := s.control.byCode(ctx, ledgersvc.CodeOtherExpense)
	if err != nil {
		return nil, err
	}
	taxReceivable, err := s.control.byCode(ctx, ledgersvc.CodeTaxReceivable)
	if err != nil {
		return nil, err
	}

	err = s.withConflictRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			locked, err := s.bills.FindForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if locked.Status != domain.StatusDraft {
				return domain.ErrNotDraft
			}

			// Lines come from the locked row and its items, not the earlier
			// read; a draft edit committed in between must not split the
			// posting from the totals the bill freezes with.
			var lines []ledgersvc.LineParams
			for _, it := range locked.Items {
				accountID := fallback.ID
				switch {
				case it.AccountID != nil:
					accountID = *it.AccountID
				case locked.ExpenseAccountID != nil:
					accountID = *locked.ExpenseAccountID
				}
				lines = append(lines, ledgersvc.LineParams{
					AccountID:   accountID,
					Description: it.Description,
					Debit:       it.Amount,
				})
			}
			if locked.TaxAmount.IsPositive() {
				lines = append(lines, ledgersvc.LineParams{
					AccountID:   taxReceivable.ID,
					Description: "GST on " + locked.BillNumber,
					Debit:       locked.TaxAmount,
				})
			}
			lines = append(lines, ledgersvc.LineParams{
				AccountID:   ap.ID,
				Description: "Bill " + locked.BillNumber,
				Credit:      locked.Total,
			})

			if _, err := s.journal.PostEntryTx(ctx, tx, ledgersvc.PostEntryParams{
				Date:        locked.BillDate,
				Description: fmt.Sprintf("Bill %s received", locked.BillNumber),
				Type:        ledgerdomain.EntryAutoBill,
				Reference:   locked.BillNumber,
				BillID:      &locked.ID,
				Lines:       lines,
			}); err != nil {
				return err
			}
			locked.Status = domain.StatusReceived
			return s.bills.Save(ctx, tx, locked)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bill issued", zap.String("number", b.BillNumber))
	return s.bills.FindByID(ctx, id)
}

// RecordPayment applies a payment: Dr Accounts Payable / Cr Bank.
func (s *BillService) RecordPayment(ctx context.Context, id int64, p PaymentParams) (*domain.Bill, error) {
	if err := validatePayment(p); err != nil {
		return nil, err
	}
	if p.Method == "" {
		p.Method = "bank_transfer"
	}

	ap, err := s.control.byCode(ctx, ledgersvc.CodePayable)
	if err != nil {
		return nil, err
	}
	bank, err := s.control.byCode(ctx, ledgersvc.CodeBank)
	if err != nil {
		return nil, err
	}

	err = s.withConflictRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			b, err := s.bills.FindForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if !b.Status.Payable() {
				return domain.ErrNotIssued
			}
			owing := b.AmountOwing()
			if p.Amount.Sub(owing).GreaterThan(ledgerdomain.Tolerance) {
				return &domain.OverPaymentError{Owing: owing}
			}

			desc := "Payment for " + b.BillNumber
			if _, err := s.journal.PostEntryTx(ctx, tx, ledgersvc.PostEntryParams{
				Date:        p.Date,
				Description: "Payment for bill " + b.BillNumber,
				Type:        ledgerdomain.EntryAutoBillPay,
				Reference:   b.BillNumber,
				BillID:      &b.ID,
				Lines: []ledgersvc.LineParams{
					{AccountID: ap.ID, Description: desc, Debit: p.Amount},
					{AccountID: bank.ID, Description: desc, Credit: p.Amount},
				},
			}); err != nil {
				return err
			}

			if err := s.bills.AddPayment(ctx, tx, &domain.BillPayment{
				BillID:      b.ID,
				PaymentDate: p.Date,
				Amount:      p.Amount,
				Method:      p.Method,
				Reference:   p.Reference,
				Notes:       p.Notes,
			}); err != nil {
				return err
			}

			b.AmountPaid = b.AmountPaid.Add(p.Amount)
			if ledgerdomain.WithinTolerance(b.AmountOwing()) {
				b.Status = domain.StatusPaid
			} else {
				b.Status = domain.StatusPartial
			}
			return s.bills.Save(ctx, tx, b)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bill payment recorded",
		zap.Int64("bill_id", id),
		zap.String("amount", p.Amount.StringFixed(ledgerdomain.MaxPlaces)))
	return s.bills.FindByID(ctx, id)
}

// Delete removes a draft bill.
func (s *BillService) Delete(ctx context.Context, id int64) error {
	b, err := s.bills.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != domain.StatusDraft {
		return domain.ErrNotDraft
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.bills.Delete(ctx, tx, id)
	})
}

// Get returns a bill with its derived status as of now.
func (s *BillService) Get(ctx context.Context, id int64, now time.Time) (*domain.Bill, domain.DocumentStatus, error) {
	b, err := s.bills.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return b, domain.DeriveStatus(b.Status, b.DueDate, now), nil
}

// List returns a page of bills with derived statuses, newest first.
func (s *BillService) List(ctx context.Context, f domain.DocumentFilter, now time.Time) ([]domain.Bill, []domain.DocumentStatus, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	bills, total, err := s.bills.List(ctx, f)
	if err != nil {
		return nil, nil, 0, err
	}
	derived := make([]domain.DocumentStatus, len(bills))
	for i, b := range bills {
		derived[i] = domain.DeriveStatus(b.Status, b.DueDate, now)
	}
	return bills, derived, total, nil
}

func (s *BillService) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxPaymentRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ledgerdomain.ErrConflict) {
			return err
		}
	}
	return err
}
