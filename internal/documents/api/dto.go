package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northbooks/northbooks/internal/documents/domain"
	"github.com/northbooks/northbooks/internal/documents/service"
)

const dateLayout = "2006-01-02"

type itemReq struct {
	Description string `json:"description" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	AccountID   *int64 `json:"account_id"`
}

func toItemParams(items []itemReq) ([]service.ItemParams, error) {
	out := make([]service.ItemParams, len(items))
	for i, it := range items {
		qty, err := decimal.NewFromString(it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid quantity %q", i+1, it.Quantity)
		}
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid unit price %q", i+1, it.UnitPrice)
		}
		out[i] = service.ItemParams{
			Description: it.Description,
			Quantity:    qty,
			UnitPrice:   price,
			AccountID:   it.AccountID,
		}
	}
	return out, nil
}

type createInvoiceReq struct {
	CustomerID  int64     `json:"customer_id" binding:"required"`
	InvoiceDate string    `json:"invoice_date" binding:"required"`
	DueDate     string    `json:"due_date" binding:"required"`
	TaxRate     string    `json:"tax_rate"`
	Notes       string    `json:"notes"`
	Items       []itemReq `json:"items" binding:"required,min=1,dive"`
}

type updateInvoiceReq struct {
	CustomerID  *int64    `json:"customer_id"`
	InvoiceDate *string   `json:"invoice_date"`
	DueDate     *string   `json:"due_date"`
	TaxRate     *string   `json:"tax_rate"`
	Notes       *string   `json:"notes"`
	Items       []itemReq `json:"items"`
}

type createBillReq struct {
	VendorID         int64     `json:"vendor_id" binding:"required"`
	BillDate         string    `json:"bill_date" binding:"required"`
	DueDate          string    `json:"due_date" binding:"required"`
	TaxRate          string    `json:"tax_rate"`
	Notes            string    `json:"notes"`
	ExpenseAccountID *int64    `json:"expense_account_id"`
	Items            []itemReq `json:"items" binding:"required,min=1,dive"`
}

type updateBillReq struct {
	VendorID         *int64    `json:"vendor_id"`
	BillDate         *string   `json:"bill_date"`
	DueDate          *string   `json:"due_date"`
	TaxRate          *string   `json:"tax_rate"`
	Notes            *string   `json:"notes"`
	ExpenseAccountID *int64    `json:"expense_account_id"`
	Items            []itemReq `json:"items"`
}

type paymentReq struct {
	Amount    string `json:"amount" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

func toPaymentParams(req paymentReq) (service.PaymentParams, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return service.PaymentParams{}, fmt.Errorf("invalid amount %q", req.Amount)
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return service.PaymentParams{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return service.PaymentParams{
		Amount:    amount,
		Date:      date,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	}, nil
}

type createCustomerReq struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	PostalCode   string `json:"postal_code"`
	Notes        string `json:"notes"`
	ContactType  string `json:"contact_type"`
}

type itemResp struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
	AccountID   *int64 `json:"account_id,omitempty"`
}

type paymentResp struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type invoiceResp struct {
	ID            int64         `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	CustomerID    int64         `json:"customer_id"`
	InvoiceDate   string        `json:"invoice_date"`
	DueDate       string        `json:"due_date"`
	PaidDate      *string       `json:"paid_date,omitempty"`
	Status        string        `json:"status"`
	Subtotal      string        `json:"subtotal"`
	TaxRate       string        `json:"tax_rate"`
	TaxAmount     string        `json:"tax_amount"`
	Total         string        `json:"total"`
	AmountPaid    string        `json:"amount_paid"`
	AmountOwing   string        `json:"amount_owing"`
	Notes         string        `json:"notes,omitempty"`
	Items         []itemResp    `json:"items"`
	Payments      []paymentResp `json:"payments"`
}

func toInvoiceResp(inv *domain.Invoice, status domain.DocumentStatus) invoiceResp {
	resp := invoiceResp{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		InvoiceDate:   inv.InvoiceDate.Format(dateLayout),
		DueDate:       inv.DueDate.Format(dateLayout),
		Status:        string(status),
		Subtotal:      inv.Subtotal.StringFixed(2),
		TaxRate:       inv.TaxRate.String(),
		TaxAmount:     inv.TaxAmount.StringFixed(2),
		Total:         inv.Total.StringFixed(2),
		AmountPaid:    inv.AmountPaid.StringFixed(2),
		AmountOwing:   inv.AmountOwing().StringFixed(2),
		Notes:         inv.Notes,
		Items:         make([]itemResp, len(inv.Items)),
		Payments:      make([]paymentResp, len(inv.Payments)),
	}
	if inv.PaidDate != nil {
		d := inv.PaidDate.Format(dateLayout)
		resp.PaidDate = &d
	}
	for i, it := range inv.Items {
		resp.Items[i] = itemResp{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Amount:      it.Amount.StringFixed(2),
		}
	}
	for i, p := range inv.Payments {
		resp.Payments[i] = paymentResp{
			ID:        p.ID,
			Date:      p.PaymentDate.Format(dateLayout),
			Amount:    p.Amount.StringFixed(2),
			Method:    p.Method,
			Reference: p.Reference,
			Notes:     p.Notes,
		}
	}
	return resp
}

type billResp struct {
	ID               int64         `json:"id"`
	BillNumber       string        `json:"bill_number"`
	VendorID         int64         `json:"vendor_id"`
	BillDate         string        `json:"bill_date"`
	DueDate          string        `json:"due_date"`
	Status           string        `json:"status"`
	Subtotal         string        `json:"subtotal"`
	TaxRate          string        `json:"tax_rate"`
	TaxAmount        string        `json:"tax_amount"`
	Total            string        `json:"total"`
	AmountPaid       string        `json:"amount_paid"`
	AmountOwing      string        `json:"amount_owing"`
	ExpenseAccountID *int64        `json:"expense_account_id,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	Items            []itemResp    `json:"items"`
	Payments         []paymentResp `json:"payments"`
}

func toBillResp(b *domain.Bill, status domain.DocumentStatus) billResp {
	resp := billResp{
		ID:               b.ID,
		BillNumber:       b.BillNumber,
		VendorID:         b.VendorID,
		BillDate:         b.BillDate.Format(dateLayout),
		DueDate:          b.DueDate.Format(dateLayout),
		Status:           string(status),
		Subtotal:         b.Subtotal.StringFixed(2),
		TaxRate:          b.TaxRate.String(),
		TaxAmount:        b.TaxAmount.StringFixed(2),
		Total:            b.Total.StringFixed(2),
		AmountPaid:       b.AmountPaid.StringFixed(2),
		AmountOwing:      b.AmountOwing().StringFixed(2),
		ExpenseAccountID: b.ExpenseAccountID,
		Notes:            b.Notes,
		Items:            make([]itemResp, len(b.Items)),
		Payments:         make([]paymentResp, len(b.Payments)),
	}
	for i, it := range b.Items {
		resp.Items[i] = itemResp{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Amount:      it.Amount.StringFixed(2),
			AccountID:   it.AccountID,
		}
	}
	for i, p := range b.Payments {
		resp.Payments[i] = paymentResp{
			ID:        p.ID,
			Date:      p.PaymentDate.Format(dateLayout),
			Amount:    p.Amount.StringFixed(2),
			Method:    p.Method,
			Reference: p.Reference,
			Notes:     p.Notes,
		}
	}
	return resp
}

type customerResp struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	Province     string `json:"province,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Notes        string `json:"notes,omitempty"`
	ContactType  string `json:"contact_type"`
}

func toCustomerResp(c *domain.Customer) customerResp {
	return customerResp{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		AddressLine1: c.AddressLine1,
		AddressLine2: c.AddressLine2,
		City:         c.City,
		Province:     c.Province,
		PostalCode:   c.PostalCode,
		Notes:        c.Notes,
		ContactType:  string(c.ContactType),
	}
}
