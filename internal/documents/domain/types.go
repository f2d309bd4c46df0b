package domain

import "time"

// DocumentStatus is the persisted lifecycle state of an invoice or bill.
// StatusOverdue is a derived label only, never stored.
type DocumentStatus string

const (
	StatusDraft    DocumentStatus = "draft"
	StatusSent     DocumentStatus = "sent"     // issued invoice
	StatusReceived DocumentStatus = "received" // issued bill
	StatusPartial  DocumentStatus = "partial"
	StatusPaid     DocumentStatus = "paid"
	StatusOverdue  DocumentStatus = "overdue"
)

// Issued reports whether the document has left draft and affects the ledger.
func (s DocumentStatus) Issued() bool {
	switch s {
	case StatusSent, StatusReceived, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// Payable reports whether a payment may still be applied.
func (s DocumentStatus) Payable() bool {
	return s == StatusSent || s == StatusReceived || s == StatusPartial
}

// DeriveStatus overlays the overdue label on an issued, unpaid document.
// Due dates are date-granular: a document stays current through the whole
// due day and turns overdue the day after. now is injected so the
// computation stays deterministic.
func DeriveStatus(stored DocumentStatus, dueDate time.Time, now time.Time) DocumentStatus {
	if !stored.Payable() {
		return stored
	}
	ny, nm, nd := now.Date()
	dy, dm, dd := dueDate.Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	if today.After(dueDay) {
		return StatusOverdue
	}
	return stored
}

// ContactType classifies a directory entry.
type ContactType string

const (
	ContactCustomer ContactType = "customer"
	ContactVendor   ContactType = "vendor"
	ContactBoth     ContactType = "both"
)

func (t ContactType) IsValid() bool {
	return t == ContactCustomer || t == ContactVendor || t == ContactBoth
}

// PaymentMethod values accepted on payment records.
var PaymentMethods = map[string]bool{
	"cash":          true,
	"cheque":        true,
	"credit_card":   true,
	"debit":         true,
	"bank_transfer": true,
	"other":         true,
}
