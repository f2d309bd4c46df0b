package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northbooks/northbooks/internal/ledger/domain"
)

const dateLayout = "2006-01-02"

type createAccountReq struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"required"`
	SubType     string `json:"sub_type"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_account_id"`
	TaxCode     string `json:"tax_code"`
}

type updateAccountReq struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	SubType     *string `json:"sub_type"`
	Description *string `json:"description"`
	TaxCode     *string `json:"tax_code"`
	ParentID    *int64  `json:"parent_account_id"`
	ClearParent bool    `json:"clear_parent"`
}

type accountResp struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	SubType       string `json:"sub_type,omitempty"`
	Description   string `json:"description,omitempty"`
	ParentID      *int64 `json:"parent_account_id,omitempty"`
	NormalBalance string `json:"normal_balance"`
	IsActive      bool   `json:"is_active"`
	IsSystem      bool   `json:"is_system"`
	TaxCode       string `json:"tax_code,omitempty"`
	Balance       string `json:"balance"`
}

func toAccountResp(a *domain.Account) accountResp {
	return accountResp{
		ID:            a.ID,
		Code:          a.Code,
		Name:          a.Name,
		Type:          string(a.Type),
		SubType:       a.SubType,
		Description:   a.Description,
		ParentID:      a.ParentAccountID,
		NormalBalance: string(a.NormalBalance),
		IsActive:      a.IsActive,
		IsSystem:      a.IsSystem,
		TaxCode:       a.TaxCode,
		Balance:       a.Balance.StringFixed(domain.MaxPlaces),
	}
}

type postEntryReq struct {
	Date        string    `json:"date" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Type        string    `json:"entry_type"`
	Reference   string    `json:"reference"`
	Notes       string    `json:"notes"`
	Lines       []lineReq `json:"lines" binding:"required,min=2,dive"`
}

type lineReq struct {
	AccountID   int64  `json:"account_id" binding:"required"`
	Description string `json:"description"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

type entryResp struct {
	ID          int64      `json:"id"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Type        string     `json:"entry_type"`
	Reference   string     `json:"reference,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	InvoiceID   *int64     `json:"invoice_id,omitempty"`
	BillID      *int64     `json:"bill_id,omitempty"`
	IsPosted    bool       `json:"is_posted"`
	TotalDebit  string     `json:"total_debit"`
	TotalCredit string     `json:"total_credit"`
	Lines       []lineResp `json:"lines"`
}

type lineResp struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Description string `json:"description,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

func toEntryResp(e *domain.JournalEntry) entryResp {
	debit, credit := e.Totals()
	resp := entryResp{
		ID:          e.ID,
		Date:        e.EntryDate.Format(dateLayout),
		Description: e.Description,
		Type:        string(e.EntryType),
		Reference:   e.Reference,
		Notes:       e.Notes,
		InvoiceID:   e.InvoiceID,
		BillID:      e.BillID,
		IsPosted:    e.IsPosted,
		TotalDebit:  debit.StringFixed(domain.MaxPlaces),
		TotalCredit: credit.StringFixed(domain.MaxPlaces),
		Lines:       make([]lineResp, len(e.Lines)),
	}
	for i, l := range e.Lines {
		resp.Lines[i] = lineResp{
			ID:          l.ID,
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Debit.StringFixed(domain.MaxPlaces),
			Credit:      l.Credit.StringFixed(domain.MaxPlaces),
		}
	}
	return resp
}

type ledgerRowResp struct {
	LineID         int64  `json:"line_id"`
	JournalEntryID int64  `json:"journal_entry_id"`
	Date           string `json:"date"`
	Description    string `json:"description"`
	Reference      string `json:"reference,omitempty"`
	EntryType      string `json:"entry_type"`
	Debit          string `json:"debit"`
	Credit         string `json:"credit"`
	Balance        string `json:"balance"`
}

func toLedgerRowResp(r domain.LedgerRow) ledgerRowResp {
	return ledgerRowResp{
		LineID:         r.LineID,
		JournalEntryID: r.JournalEntryID,
		Date:           r.EntryDate.Format(dateLayout),
		Description:    r.Description,
		Reference:      r.Reference,
		EntryType:      string(r.EntryType),
		Debit:          r.Debit.StringFixed(domain.MaxPlaces),
		Credit:         r.Credit.StringFixed(domain.MaxPlaces),
		Balance:        r.Running.StringFixed(domain.MaxPlaces),
	}
}

// parseAmount accepts an optional decimal string, empty meaning zero.
func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q", field, s)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
