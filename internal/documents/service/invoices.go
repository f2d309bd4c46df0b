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

// maxPaymentRetries bounds retries when a payment transaction loses an
// optimistic-lock race on cached account balances.
const maxPaymentRetries = 3

// InvoiceService runs the invoice lifecycle. Every ledger effect goes through
// the journal engine inside the same transaction as the status change.
type InvoiceService struct {
	db        *gorm.DB
	invoices  domain.InvoiceRepository
	customers domain.CustomerRepository
	journal   *ledgersvc.JournalService
	control   controlAccounts
	logger    *zap.Logger
}

func NewInvoiceService(db *gorm.DB, invoices domain.InvoiceRepository, customers domain.CustomerRepository, journal *ledgersvc.JournalService, accounts ledgerdomain.AccountRepository, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		db:        db,
		invoices:  invoices,
		customers: customers,
		journal:   journal,
		control:   controlAccounts{repo: accounts},
		logger:    logger,
	}
}

// CreateInvoiceParams describes a new draft invoice.
type CreateInvoiceParams struct {
	CustomerID  int64
	InvoiceDate time.Time
	DueDate     time.Time
	TaxRate     decimal.Decimal
	Notes       string
	Items       []ItemParams
}

// Create validates and stores a draft. Drafts have no ledger effect and stay
// freely editable.
func (s *InvoiceService) Create(ctx context.Context, p CreateInvoiceParams) (*domain.Invoice, error) {
	if err := validateItems(p.Items); err != nil {
		return nil, err
	}
	if p.TaxRate.IsNegative() {
		return nil, fmt.Errorf("%w: tax rate cannot be negative", domain.ErrValidation)
	}
	if p.InvoiceDate.IsZero() || p.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: invoice date and due date are required", domain.ErrValidation)
	}
	if p.DueDate.Before(p.InvoiceDate) {
		return nil, domain.ErrInvalidDueDate
	}
	if _, err := s.customers.FindByID(ctx, p.CustomerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("customer %d: %w", p.CustomerID, domain.ErrNotFound)
		}
		return nil, err
	}

	subtotal, taxAmount, total := computeTotals(p.Items, p.TaxRate)
	inv := &domain.Invoice{
		CustomerID:  p.CustomerID,
		InvoiceDate: p.InvoiceDate,
		DueDate:     p.DueDate,
		Status:      domain.StatusDraft,
		Subtotal:    subtotal,
		TaxRate:     p.TaxRate,
		TaxAmount:   taxAmount,
		Total:       total,
		Notes:       p.Notes,
	}
	for _, it := range p.Items {
		inv.Items = append(inv.Items, domain.InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Quantity.Mul(it.UnitPrice).Round(ledgerdomain.MaxPlaces),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := s.invoices.LastNumber(ctx, tx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = nextNumber("INV", last)
		return s.invoices.Create(ctx, tx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("creating invoice: %w", err)
	}

	s.logger.Info("invoice created", zap.String("number", inv.InvoiceNumber), zap.Int64("customer_id", inv.CustomerID))
	return inv, nil
}

// UpdateInvoiceParams patches a draft. Nil fields are unchanged; a non-nil
// Items slice replaces all line items.
type UpdateInvoiceParams struct {
	CustomerID  *int64
	InvoiceDate *time.Time
	DueDate     *time.Time
	TaxRate     *decimal.Decimal
	Notes       *string
	Items       []ItemParams
}

// Update edits a draft in place. Issued documents are frozen.
func (s *InvoiceService) Update(ctx context.Context, id int64, p UpdateInvoiceParams) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	if p.CustomerID != nil {
		if _, err := s.customers.FindByID(ctx, *p.CustomerID); err != nil {
			return nil, err
		}
		inv.CustomerID = *p.CustomerID
	}
	if p.InvoiceDate != nil {
		inv.InvoiceDate = *p.InvoiceDate
	}
	if p.DueDate != nil {
		inv.DueDate = *p.DueDate
	}
	if inv.DueDate.Before(inv.InvoiceDate) {
		return nil, domain.ErrInvalidDueDate
	}
	if p.TaxRate != nil {
		if p.TaxRate.IsNegative() {
			return nil, fmt.Errorf("%w: tax rate cannot be negative", domain.ErrValidation)
		}
		inv.TaxRate = *p.TaxRate
	}
	if p.Notes != nil {
		inv.Notes = *p.Notes
	}

	items := p.Items
	if items == nil {
		// Retotal with existing items when only the tax rate moved.
		for _, it := range inv.Items {
			items = append(items, ItemParams{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
		}
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	inv.Subtotal, inv.TaxAmount, inv.Total = computeTotals(items, inv.TaxRate)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Items != nil {
			rows := make([]domain.InvoiceItem, len(p.Items))
			for i, it := range p.Items {
				rows[i] = domain.InvoiceItem{
					Description: it.Description,
					Quantity:    it.Quantity,
					UnitPrice:   it.UnitPrice,
					Amount:      it.Quantity.Mul(it.UnitPrice).Round(ledgerdomain.MaxPlaces),
				}
			}
			if err := s.invoices.ReplaceItems(ctx, tx, inv.ID, rows); err != nil {
				return err
			}
		}
		return s.invoices.Save(ctx, tx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("updating invoice: %w", err)
	}
	return s.invoices.FindByID(ctx, id)
}

// Issue moves a draft to sent and posts the receivable entry:
// Dr Accounts Receivable (total) / Cr Revenue (subtotal) [+ Cr GST Payable].
// Line items freeze from here on.
func (s *InvoiceService) Issue(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	ar, err := s.control.byCode(ctx, ledgersvc.CodeReceivable)
	if err != nil {
		return nil, err
	}
	revenue, err := s.control.byCode(ctx, ledgersvc.CodeRevenue)
	if err != nil {
		return nil, err
	}
	taxPayable, err := s.control.byCode(ctx, ledgersvc.CodeTaxPayable)
	if err != nil {
		return nil, err
	}

	err = s.withConflictRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			locked, err := s.invoices.FindForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if locked.Status != domain.StatusDraft {
				return domain.ErrNotDraft
			}

			// Amounts come from the locked row, not the earlier read; a
			// draft edit committed in between must not split the posting
			// from the totals the invoice freezes with.
			lines := []ledgersvc.LineParams{
				{AccountID: ar.ID, Description: "Invoice " + locked.InvoiceNumber, Debit: locked.Total},
				{AccountID: revenue.ID, Description: "Invoice " + locked.InvoiceNumber, Credit: locked.Subtotal},
			}
			if locked.TaxAmount.IsPositive() {
				lines = append(lines, ledgersvc.LineParams{
					AccountID:   taxPayable.ID,
					Description: "GST on " + locked.InvoiceNumber,
					Credit:      locked.TaxAmount,
				})
			}
			if _, err := s.journal.PostEntryTx(ctx, tx, ledgersvc.PostEntryParams{
				Date:        locked.InvoiceDate,
				Description: fmt.Sprintf("Invoice %s sent", locked.InvoiceNumber),
				Type:        ledgerdomain.EntryAutoInvoice,
				Reference:   locked.InvoiceNumber,
				InvoiceID:   &locked.ID,
				Lines:       lines,
			}); err != nil {
				return err
			}
			locked.Status = domain.StatusSent
			return s.invoices.Save(ctx, tx, locked)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice issued", zap.String("number", inv.InvoiceNumber))
	return s.invoices.FindByID(ctx, id)
}

// RecordPayment applies a payment: Dr Bank / Cr Accounts Receivable, then
// advances amount_paid and the status. The invoice row is locked so two
// concurrent payments cannot both pass the owing check.
func (s *InvoiceService) RecordPayment(ctx context.Context, id int64, p PaymentParams) (*domain.Invoice, error) {
	if err := validatePayment(p); err != nil {
		return nil, err
	}
	if p.Method == "" {
		p.Method = "bank_transfer"
	}

	bank, err := s.control.byCode(ctx, ledgersvc.CodeBank)
	if err != nil {
		return nil, err
	}
	ar, err := s.control.byCode(ctx, ledgersvc.CodeReceivable)
	if err != nil {
		return nil, err
	}

	err = s.withConflictRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, err := s.invoices.FindForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if !inv.Status.Payable() {
				return domain.ErrNotIssued
			}
			owing := inv.AmountOwing()
			if p.Amount.Sub(owing).GreaterThan(ledgerdomain.Tolerance) {
				return &domain.OverPaymentError{Owing: owing}
			}

			desc := "Payment for " + inv.InvoiceNumber
			if _, err := s.journal.PostEntryTx(ctx, tx, ledgersvc.PostEntryParams{
				Date:        p.Date,
				Description: "Payment received for " + inv.InvoiceNumber,
				Type:        ledgerdomain.EntryAutoPayment,
				Reference:   inv.InvoiceNumber,
				InvoiceID:   &inv.ID,
				Lines: []ledgersvc.LineParams{
					{AccountID: bank.ID, Description: desc, Debit: p.Amount},
					{AccountID: ar.ID, Description: desc, Credit: p.Amount},
				},
			}); err != nil {
				return err
			}

			if err := s.invoices.AddPayment(ctx, tx, &domain.InvoicePayment{
				InvoiceID:   inv.ID,
				PaymentDate: p.Date,
				Amount:      p.Amount,
				Method:      p.Method,
				Reference:   p.Reference,
				Notes:       p.Notes,
			}); err != nil {
				return err
			}

			inv.AmountPaid = inv.AmountPaid.Add(p.Amount)
			if ledgerdomain.WithinTolerance(inv.AmountOwing()) {
				inv.Status = domain.StatusPaid
				paidDate := p.Date
				inv.PaidDate = &paidDate
			} else {
				inv.Status = domain.StatusPartial
			}
			return s.invoices.Save(ctx, tx, inv)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice payment recorded",
		zap.Int64("invoice_id", id),
		zap.String("amount", p.Amount.StringFixed(ledgerdomain.MaxPlaces)))
	return s.invoices.FindByID(ctx, id)
}

// Delete removes a draft. Issued invoices have ledger history and cannot be
// deleted.
func (s *InvoiceService) Delete(ctx context.Context, id int64) error {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusDraft {
		return domain.ErrNotDraft
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.invoices.Delete(ctx, tx, id)
	})
}

// Get returns an invoice with its derived status as of now.
func (s *InvoiceService) Get(ctx context.Context, id int64, now time.Time) (*domain.Invoice, domain.DocumentStatus, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return inv, domain.DeriveStatus(inv.Status, inv.DueDate, now), nil
}

// List returns a page of invoices with derived statuses, newest first.
func (s *InvoiceService) List(ctx context.Context, f domain.DocumentFilter, now time.Time) ([]domain.Invoice, []domain.DocumentStatus, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	invoices, total, err := s.invoices.List(ctx, f)
	if err != nil {
		return nil, nil, 0, err
	}
	derived := make([]domain.DocumentStatus, len(invoices))
	for i, inv := range invoices {
		derived[i] = domain.DeriveStatus(inv.Status, inv.DueDate, now)
	}
	return invoices, derived, total, nil
}

func (s *InvoiceService) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxPaymentRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ledgerdomain.ErrConflict) {
			return err
		}
	}
	return err
}
