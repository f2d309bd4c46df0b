package domain

import "github.com/shopspring/decimal"

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	Asset     AccountType = "asset"
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

// IsValid reports whether t is one of the five account types.
func (t AccountType) IsValid() bool {
	switch t {
	case Asset, Liability, Equity, Revenue, Expense:
		return true
	}
	return false
}

// NormalBalance is the side on which an account type naturally increases.
type NormalBalance string

const (
	DebitNormal  NormalBalance = "debit"
	CreditNormal NormalBalance = "credit"
)

// NormalBalanceFor derives the normal balance from an account type:
// asset/expense accounts grow on the debit side, the rest on the credit side.
func NormalBalanceFor(t AccountType) NormalBalance {
	if t == Asset || t == Expense {
		return DebitNormal
	}
	return CreditNormal
}

// Sign returns +1 for debit-normal and -1 for credit-normal accounts.
// A signed balance is Sign * (total debits - total credits).
func (n NormalBalance) Sign() decimal.Decimal {
	if n == CreditNormal {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// EntryType tags the origin of a journal entry.
type EntryType string

const (
	EntryManual      EntryType = "manual"
	EntryAutoExpense EntryType = "auto_expense"
	EntryAutoRevenue EntryType = "auto_revenue"
	EntryAutoInvoice EntryType = "auto_invoice"
	EntryAutoPayment EntryType = "auto_payment"
	EntryAutoBill    EntryType = "auto_bill"
	EntryAutoBillPay EntryType = "auto_bill_payment"
	EntryAdjustment  EntryType = "adjustment"
)

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	_, ok := entryTypes[t]
	return ok
}

// Deletable reports whether entries of this type may be deleted directly.
// Auto-generated entries are retracted via their source document, never
// deleted on their own.
func (t EntryType) Deletable() bool {
	return entryTypes[t]
}

var entryTypes = map[EntryType]bool{
	EntryManual:      true,
	EntryAutoExpense: false,
	EntryAutoRevenue: false,
	EntryAutoInvoice: false,
	EntryAutoPayment: false,
	EntryAutoBill:    false,
	EntryAutoBillPay: false,
	EntryAdjustment:  false,
}

// Tolerance is the maximum absolute imbalance accepted when checking that
// debits equal credits, and when deciding a document is paid in full.
// Half a cent absorbs rounding without hiding real imbalances.
var Tolerance = decimal.New(5, -3) // 0.005

// WithinTolerance reports whether d is within +/- Tolerance of zero.
func WithinTolerance(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(Tolerance)
}

// MaxPlaces is the ledger's currency precision. Amounts with more fractional
// digits are rejected rather than silently rounded.
const MaxPlaces = 2

// HasValidPlaces reports whether d has at most MaxPlaces decimal places.
func HasValidPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MaxPlaces))
}
