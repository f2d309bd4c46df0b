package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northbooks/northbooks/internal/documents/domain"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
)

// ItemParams is one requested line item.
type ItemParams struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	AccountID   *int64 // expense account override, bills only
}

// PaymentParams describes a payment to apply to a document.
type PaymentParams struct {
	Amount    decimal.Decimal
	Date      time.Time
	Method    string
	Reference string
	Notes     string
}

func validateItems(items []ItemParams) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", domain.ErrValidation)
	}
	for i, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			return fmt.Errorf("%w: item %d has no description", domain.ErrValidation, i+1)
		}
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: item %d quantity must be positive", domain.ErrValidation, i+1)
		}
		if !it.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: item %d unit price must be positive", domain.ErrValidation, i+1)
		}
		if !ledgerdomain.HasValidPlaces(it.UnitPrice) {
			return fmt.Errorf("%w: item %d unit price has more than %d decimal places", domain.ErrValidation, i+1, ledgerdomain.MaxPlaces)
		}
	}
	return nil
}

func validatePayment(p PaymentParams) error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", domain.ErrValidation)
	}
	if !ledgerdomain.HasValidPlaces(p.Amount) {
		return fmt.Errorf("%w: payment amount has more than %d decimal places", domain.ErrValidation, ledgerdomain.MaxPlaces)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: payment date is required", domain.ErrValidation)
	}
	if p.Method != "" && !domain.PaymentMethods[p.Method] {
		return fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, p.Method)
	}
	return nil
}

// computeTotals rounds each line to cents before summing so the stored item
// amounts always add up to the stored subtotal.
func computeTotals(items []ItemParams, taxRate decimal.Decimal) (subtotal, taxAmount, total decimal.Decimal) {
	for _, it := range items {
		subtotal = subtotal.Add(it.Quantity.Mul(it.UnitPrice).Round(ledgerdomain.MaxPlaces))
	}
	taxAmount = subtotal.Mul(taxRate).Round(ledgerdomain.MaxPlaces)
	total = subtotal.Add(taxAmount)
	return subtotal, taxAmount, total
}

// nextNumber produces the next sequential document number, e.g.
// nextNumber("INV", "INV-1004") == "INV-1005". The sequence starts at 1001.
func nextNumber(prefix, last string) string {
	if last == "" {
		return fmt.Sprintf("%s-%d", prefix, 1001)
	}
	parts := strings.SplitN(last, "-", 2)
	n := 1000
	if len(parts) == 2 {
		if parsed, err := strconv.Atoi(parts[1]); err == nil {
			n = parsed
		}
	}
	return fmt.Sprintf("%s-%d", prefix, n+1)
}

// controlAccounts resolves the system accounts documents post against.
type controlAccounts struct {
	repo ledgerdomain.AccountRepository
}

func (c controlAccounts) byCode(ctx context.Context, code string) (*ledgerdomain.Account, error) {
	a, err := c.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("control account %s: %w", code, err)
	}
	return a, nil
}
