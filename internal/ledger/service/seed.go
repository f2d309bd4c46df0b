package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/northbooks/northbooks/internal/ledger/domain"
)

// Well-known control account codes the document and banking modules post
// against. They are part of the seeded chart and marked is_system.
const (
	CodeCash          = "1000"
	CodeBank          = "1050"
	CodeReceivable    = "1100"
	CodeTaxReceivable = "1300"
	CodePayable       = "2000"
	CodeTaxPayable    = "2100"
	CodeCreditCard    = "2300"
	CodeRevenue       = "4000"
	CodeOtherExpense  = "5950"
)

type seedAccount struct {
	code         string
	name         string
	accountType  domain.AccountType
	subType      string
	taxCode      string
	creditNormal bool // overrides the type-derived side (contra accounts)
}

// defaultAccounts is the seed chart for a small service business, expense
// codes mapped to T2125 lines.
var defaultAccounts = []seedAccount{
	// Assets (1000s)
	{code: "1000", name: "Cash", accountType: domain.Asset, subType: "current_asset"},
	{code: "1050", name: "Business Bank Account", accountType: domain.Asset, subType: "current_asset"},
	{code: "1100", name: "Accounts Receivable", accountType: domain.Asset, subType: "current_asset"},
	{code: "1200", name: "Prepaid Expenses", accountType: domain.Asset, subType: "current_asset"},
	{code: "1300", name: "GST/HST Receivable", accountType: domain.Asset, subType: "current_asset"},
	{code: "1500", name: "Computer Equipment", accountType: domain.Asset, subType: "fixed_asset"},
	{code: "1510", name: "Office Equipment", accountType: domain.Asset, subType: "fixed_asset"},
	{code: "1520", name: "Accum. Depreciation - Equipment", accountType: domain.Asset, subType: "fixed_asset", creditNormal: true},
	{code: "1600", name: "Vehicles", accountType: domain.Asset, subType: "fixed_asset"},
	{code: "1610", name: "Accum. Depreciation - Vehicles", accountType: domain.Asset, subType: "fixed_asset", creditNormal: true},

	// Liabilities (2000s)
	{code: "2000", name: "Accounts Payable", accountType: domain.Liability, subType: "current_liability"},
	{code: "2100", name: "GST/HST Payable", accountType: domain.Liability, subType: "current_liability"},
	{code: "2200", name: "Income Tax Payable", accountType: domain.Liability, subType: "current_liability"},
	{code: "2300", name: "Credit Card Payable", accountType: domain.Liability, subType: "current_liability"},

	// Equity (3000s)
	{code: "3000", name: "Owner's Equity", accountType: domain.Equity, subType: "equity"},
	{code: "3100", name: "Owner's Draws", accountType: domain.Equity, subType: "equity"},
	{code: "3200", name: "Retained Earnings", accountType: domain.Equity, subType: "equity"},

	// Revenue (4000s)
	{code: "4000", name: "Service Revenue", accountType: domain.Revenue, subType: "revenue"},
	{code: "4100", name: "Product Sales", accountType: domain.Revenue, subType: "revenue"},
	{code: "4200", name: "Other Income", accountType: domain.Revenue, subType: "revenue"},

	// Expenses (5000s)
	{code: "5000", name: "Advertising & Marketing", accountType: domain.Expense, subType: "expense", taxCode: "8521"},
	{code: "5050", name: "Bad Debts", accountType: domain.Expense, subType: "expense", taxCode: "8590"},
	{code: "5100", name: "Bank Fees & Interest", accountType: domain.Expense, subType: "expense", taxCode: "8710"},
	{code: "5150", name: "Insurance", accountType: domain.Expense, subType: "expense", taxCode: "8690"},
	{code: "5200", name: "Meals & Entertainment", accountType: domain.Expense, subType: "expense", taxCode: "8523"},
	{code: "5250", name: "Office Supplies", accountType: domain.Expense, subType: "expense", taxCode: "8810"},
	{code: "5300", name: "Professional Fees", accountType: domain.Expense, subType: "expense", taxCode: "8860"},
	{code: "5350", name: "Rent", accountType: domain.Expense, subType: "expense", taxCode: "8910"},
	{code: "5400", name: "Repairs & Maintenance", accountType: domain.Expense, subType: "expense", taxCode: "8960"},
	{code: "5450", name: "Software & Subscriptions", accountType: domain.Expense, subType: "expense", taxCode: "8810"},
	{code: "5500", name: "Telephone & Internet", accountType: domain.Expense, subType: "expense", taxCode: "8220"},
	{code: "5550", name: "Travel", accountType: domain.Expense, subType: "expense", taxCode: "9200"},
	{code: "5600", name: "Utilities", accountType: domain.Expense, subType: "expense", taxCode: "9220"},
	{code: "5650", name: "Vehicle Expenses", accountType: domain.Expense, subType: "expense", taxCode: "9281"},
	{code: "5700", name: "Contractor Payments", accountType: domain.Expense, subType: "expense", taxCode: "8810"},
	{code: "5750", name: "Employee Wages", accountType: domain.Expense, subType: "expense", taxCode: "9060"},
	{code: "5800", name: "Shipping", accountType: domain.Expense, subType: "expense", taxCode: "8810"},
	{code: "5850", name: "Taxes & Licenses", accountType: domain.Expense, subType: "expense", taxCode: "8760"},
	{code: "5900", name: "Depreciation", accountType: domain.Expense, subType: "expense", taxCode: "9936"},
	{code: "5950", name: "Other Expenses", accountType: domain.Expense, subType: "expense", taxCode: "9270"},
	{code: "5960", name: "Business-Use-of-Home", accountType: domain.Expense, subType: "expense", taxCode: "9945"},

	// Cost of goods sold (6000s)
	{code: "6000", name: "Cost of Goods Sold", accountType: domain.Expense, subType: "cogs"},
	{code: "6100", name: "Inventory Purchases", accountType: domain.Expense, subType: "cogs"},
}

// SeedChart inserts the default chart of accounts, skipping codes that
// already exist. Idempotent; returns the number created.
func (s *AccountService) SeedChart(ctx context.Context) (int, error) {
	existing, err := s.accounts.List(ctx, domain.AccountFilter{})
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.Code] = true
	}

	created := 0
	for _, sa := range defaultAccounts {
		if have[sa.code] {
			continue
		}
		normal := domain.NormalBalanceFor(sa.accountType)
		if sa.creditNormal {
			normal = domain.CreditNormal
		}
		a := &domain.Account{
			Code:          sa.code,
			Name:          sa.name,
			Type:          sa.accountType,
			SubType:       sa.subType,
			TaxCode:       sa.taxCode,
			NormalBalance: normal,
			IsActive:      true,
			IsSystem:      true,
		}
		if err := s.accounts.Create(ctx, nil, a); err != nil {
			return created, fmt.Errorf("seeding account %s: %w", sa.code, err)
		}
		created++
	}
	if created > 0 {
		s.logger.Info("chart of accounts seeded", zap.Int("created", created))
	}
	return created, nil
}
