package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/northbooks/northbooks/internal/documents/domain"
	"github.com/northbooks/northbooks/internal/documents/service"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
)

// DocumentsHandler exposes invoices, bills and the customer directory.
type DocumentsHandler struct {
	invoices  *service.InvoiceService
	bills     *service.BillService
	customers *service.CustomerService
	now       func() time.Time
}

func NewDocumentsHandler(invoices *service.InvoiceService, bills *service.BillService, customers *service.CustomerService) *DocumentsHandler {
	return &DocumentsHandler{
		invoices:  invoices,
		bills:     bills,
		customers: customers,
		now:       time.Now,
	}
}

func (h *DocumentsHandler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", h.CreateInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.PATCH("/:id", h.UpdateInvoice)
		invoices.DELETE("/:id", h.DeleteInvoice)
		invoices.POST("/:id/issue", h.IssueInvoice)
		invoices.POST("/:id/payments", h.PayInvoice)
	}
	bills := r.Group("/bills")
	{
		bills.POST("", h.CreateBill)
		bills.GET("", h.ListBills)
		bills.GET("/:id", h.GetBill)
		bills.PATCH("/:id", h.UpdateBill)
		bills.DELETE("/:id", h.DeleteBill)
		bills.POST("/:id/issue", h.IssueBill)
		bills.POST("/:id/payments", h.PayBill)
	}
	customers := r.Group("/customers")
	{
		customers.POST("", h.CreateCustomer)
		customers.GET("", h.ListCustomers)
		customers.GET("/:id", h.GetCustomer)
	}
}

func (h *DocumentsHandler) CreateInvoice(c *gin.Context) {
	var req createInvoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	invoiceDate, dueDate, taxRate, ok := parseDocumentFields(c, req.InvoiceDate, req.DueDate, req.TaxRate)
	if !ok {
		return
	}
	items, err := toItemParams(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), service.CreateInvoiceParams{
		CustomerID:  req.CustomerID,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		TaxRate:     taxRate,
		Notes:       req.Notes,
		Items:       items,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceResp(inv, inv.Status))
}

func (h *DocumentsHandler) ListInvoices(c *gin.Context) {
	f, ok := documentFilter(c)
	if !ok {
		return
	}
	invoices, statuses, total, err := h.invoices.List(c.Request.Context(), f, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]invoiceResp, len(invoices))
	for i := range invoices {
		out[i] = toInvoiceResp(&invoices[i], statuses[i])
	}
	c.JSON(http.StatusOK, gin.H{"invoices": out, "total": total})
}

func (h *DocumentsHandler) GetInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inv, status, err := h.invoices.Get(c.Request.Context(), id, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResp(inv, status))
}

func (h *DocumentsHandler) UpdateInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateInvoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	p := service.UpdateInvoiceParams{CustomerID: req.CustomerID, Notes: req.Notes}
	if req.InvoiceDate != nil {
		d, err := time.Parse(dateLayout, *req.InvoiceDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invoice_date must be YYYY-MM-DD"})
			return
		}
		p.InvoiceDate = &d
	}
	if req.DueDate != nil {
		d, err := time.Parse(dateLayout, *req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		p.DueDate = &d
	}
	if req.TaxRate != nil {
		rate, err := decimal.NewFromString(*req.TaxRate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax_rate"})
			return
		}
		p.TaxRate = &rate
	}
	if req.Items != nil {
		items, err := toItemParams(req.Items)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p.Items = items
	}
	inv, err := h.invoices.Update(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResp(inv, inv.Status))
}

func (h *DocumentsHandler) DeleteInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *DocumentsHandler) IssueInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inv, err := h.invoices.Issue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResp(inv, inv.Status))
}

func (h *DocumentsHandler) PayInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req paymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	p, err := toPaymentParams(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.invoices.RecordPayment(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResp(inv, inv.Status))
}

func (h *DocumentsHandler) CreateBill(c *gin.Context) {
	var req createBillReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	billDate, dueDate, taxRate, ok := parseDocumentFields(c, req.BillDate, req.DueDate, req.TaxRate)
	if !ok {
		return
	}
	items, err := toItemParams(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.bills.Create(c.Request.Context(), service.CreateBillParams{
		VendorID:         req.VendorID,
		BillDate:         billDate,
		DueDate:          dueDate,
		TaxRate:          taxRate,
		Notes:            req.Notes,
		ExpenseAccountID: req.ExpenseAccountID,
		Items:            items,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBillResp(b, b.Status))
}

func (h *DocumentsHandler) ListBills(c *gin.Context) {
	f, ok := documentFilter(c)
	if !ok {
		return
	}
	bills, statuses, total, err := h.bills.List(c.Request.Context(), f, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]billResp, len(bills))
	for i := range bills {
		out[i] = toBillResp(&bills[i], statuses[i])
	}
	c.JSON(http.StatusOK, gin.H{"bills": out, "total": total})
}

func (h *DocumentsHandler) GetBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, status, err := h.bills.Get(c.Request.Context(), id, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResp(b, status))
}

func (h *DocumentsHandler) UpdateBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateBillReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	p := service.UpdateBillParams{
		VendorID:         req.VendorID,
		Notes:            req.Notes,
		ExpenseAccountID: req.ExpenseAccountID,
	}
	if req.BillDate != nil {
		d, err := time.Parse(dateLayout, *req.BillDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bill_date must be YYYY-MM-DD"})
			return
		}
		p.BillDate = &d
	}
	if req.DueDate != nil {
		d, err := time.Parse(dateLayout, *req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		p.DueDate = &d
	}
	if req.TaxRate != nil {
		rate, err := decimal.NewFromString(*req.TaxRate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax_rate"})
			return
		}
		p.TaxRate = &rate
	}
	if req.Items != nil {
		items, err := toItemParams(req.Items)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p.Items = items
	}
	b, err := h.bills.Update(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResp(b, b.Status))
}

func (h *DocumentsHandler) DeleteBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.bills.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *DocumentsHandler) IssueBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.bills.Issue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResp(b, b.Status))
}

func (h *DocumentsHandler) PayBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req paymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	p, err := toPaymentParams(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.bills.RecordPayment(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResp(b, b.Status))
}

func (h *DocumentsHandler) CreateCustomer(c *gin.Context) {
	var req createCustomerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	cust, err := h.customers.Create(c.Request.Context(), service.CreateCustomerParams{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		Province:     req.Province,
		PostalCode:   req.PostalCode,
		Notes:        req.Notes,
		ContactType:  domain.ContactType(req.ContactType),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCustomerResp(cust))
}

func (h *DocumentsHandler) ListCustomers(c *gin.Context) {
	var contactType *domain.ContactType
	if t := c.Query("contact_type"); t != "" {
		ct := domain.ContactType(t)
		if !ct.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown contact type " + t})
			return
		}
		contactType = &ct
	}
	customers, err := h.customers.List(c.Request.Context(), contactType)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]customerResp, len(customers))
	for i := range customers {
		out[i] = toCustomerResp(&customers[i])
	}
	c.JSON(http.StatusOK, gin.H{"customers": out})
}

func (h *DocumentsHandler) GetCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cust, err := h.customers.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResp(cust))
}

func parseDocumentFields(c *gin.Context, dateStr, dueStr, rateStr string) (docDate, dueDate time.Time, taxRate decimal.Decimal, ok bool) {
	var err error
	docDate, err = time.Parse(dateLayout, dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document date must be YYYY-MM-DD"})
		return
	}
	dueDate, err = time.Parse(dateLayout, dueStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
		return
	}
	if rateStr != "" {
		taxRate, err = decimal.NewFromString(rateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax_rate"})
			return
		}
	}
	return docDate, dueDate, taxRate, true
}

func documentFilter(c *gin.Context) (domain.DocumentFilter, bool) {
	var f domain.DocumentFilter
	if s := c.Query("status"); s != "" {
		st := domain.DocumentStatus(s)
		f.Status = &st
	}
	if s := c.Query("counterparty_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "counterparty_id must be an integer"})
			return f, false
		}
		f.CounterpartyID = &id
	}
	if s := c.Query("from"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return f, false
		}
		f.From = &d
	}
	if s := c.Query("to"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return f, false
		}
		f.To = &d
	}
	f.Skip = intQuery(c, "skip", 0)
	f.Limit = intQuery(c, "limit", 50)
	return f, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	s := c.Query(name)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// writeError maps domain errors onto HTTP statuses. Overpayments return the
// remaining balance so clients can retry with a smaller amount.
func writeError(c *gin.Context, err error) {
	var overpay *domain.OverPaymentError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, ledgerdomain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotDraft),
		errors.Is(err, domain.ErrNotIssued),
		errors.Is(err, ledgerdomain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &overpay):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        err.Error(),
			"amount_owing": overpay.Owing.StringFixed(2),
		})
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDueDate),
		errors.Is(err, ledgerdomain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
