package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/northbooks/northbooks/internal/banking/domain"
	"github.com/northbooks/northbooks/internal/banking/service"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
)

const dateLayout = "2006-01-02"

// BankingHandler exposes bank accounts, statement imports and reconciliation.
type BankingHandler struct {
	svc *service.BankService
}

func NewBankingHandler(svc *service.BankService) *BankingHandler {
	return &BankingHandler{svc: svc}
}

func (h *BankingHandler) RegisterRoutes(r *gin.RouterGroup) {
	accounts := r.Group("/bank-accounts")
	{
		accounts.POST("", h.CreateAccount)
		accounts.GET("", h.ListAccounts)
		accounts.GET("/:id", h.GetAccount)
		accounts.POST("/:id/import", h.ImportStatement)
		accounts.GET("/:id/transactions", h.ListTransactions)
	}
	transactions := r.Group("/bank-transactions")
	{
		transactions.GET("/:id", h.GetTransaction)
		transactions.POST("/:id/reconcile", h.Reconcile)
		transactions.POST("/:id/unreconcile", h.Unreconcile)
	}
}

type createAccountReq struct {
	Name               string `json:"name" binding:"required"`
	Institution        string `json:"institution"`
	AccountNumberLast4 string `json:"account_number_last4"`
	AccountType        string `json:"account_type"`
	Currency           string `json:"currency"`
	GLAccountID        *int64 `json:"gl_account_id"`
	OpeningBalance     string `json:"opening_balance"`
}

type accountResp struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Institution        string `json:"institution,omitempty"`
	AccountNumberLast4 string `json:"account_number_last4,omitempty"`
	AccountType        string `json:"account_type"`
	Currency           string `json:"currency"`
	GLAccountID        *int64 `json:"gl_account_id,omitempty"`
	OpeningBalance     string `json:"opening_balance"`
	CurrentBalance     string `json:"current_balance"`
	IsActive           bool   `json:"is_active"`
}

func toAccountResp(a *domain.BankAccount) accountResp {
	return accountResp{
		ID:                 a.ID,
		Name:               a.Name,
		Institution:        a.Institution,
		AccountNumberLast4: a.AccountNumberLast4,
		AccountType:        string(a.AccountType),
		Currency:           a.Currency,
		GLAccountID:        a.GLAccountID,
		OpeningBalance:     a.OpeningBalance.StringFixed(2),
		CurrentBalance:     a.CurrentBalance.StringFixed(2),
		IsActive:           a.IsActive,
	}
}

type statementRowReq struct {
	Date        string `json:"date" binding:"required"`
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Reference   string `json:"reference"`
	Category    string `json:"category"`
}

type importReq struct {
	Rows []statementRowReq `json:"transactions" binding:"required,min=1,dive"`
}

type transactionResp struct {
	ID             int64  `json:"id"`
	BankAccountID  int64  `json:"bank_account_id"`
	Date           string `json:"date"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Balance        string `json:"balance"`
	Reference      string `json:"reference,omitempty"`
	Category       string `json:"category,omitempty"`
	IsReconciled   bool   `json:"is_reconciled"`
	JournalEntryID *int64 `json:"journal_entry_id,omitempty"`
}

func toTransactionResp(t *domain.BankTransaction) transactionResp {
	return transactionResp{
		ID:             t.ID,
		BankAccountID:  t.BankAccountID,
		Date:           t.TransactionDate.Format(dateLayout),
		Description:    t.Description,
		Amount:         t.Amount.StringFixed(2),
		Balance:        t.Balance.StringFixed(2),
		Reference:      t.Reference,
		Category:       t.Category,
		IsReconciled:   t.IsReconciled,
		JournalEntryID: t.JournalEntryID,
	}
}

func (h *BankingHandler) CreateAccount(c *gin.Context) {
	var req createAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid opening_balance"})
			return
		}
	}
	a, err := h.svc.CreateAccount(c.Request.Context(), service.CreateAccountParams{
		Name:               req.Name,
		Institution:        req.Institution,
		AccountNumberLast4: req.AccountNumberLast4,
		AccountType:        domain.BankAccountType(req.AccountType),
		Currency:           req.Currency,
		GLAccountID:        req.GLAccountID,
		OpeningBalance:     opening,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccountResp(a))
}

func (h *BankingHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.svc.ListAccounts(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]accountResp, len(accounts))
	for i := range accounts {
		out[i] = toAccountResp(&accounts[i])
	}
	c.JSON(http.StatusOK, gin.H{"bank_accounts": out})
}

func (h *BankingHandler) GetAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.svc.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResp(a))
}

func (h *BankingHandler) ImportStatement(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	rows := make([]service.StatementRow, len(req.Rows))
	for i, r := range req.Rows {
		date, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("row %d: date must be YYYY-MM-DD", i+1)})
			return
		}
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("row %d: invalid amount %q", i+1, r.Amount)})
			return
		}
		rows[i] = service.StatementRow{
			Date:        date,
			Description: r.Description,
			Amount:      amount,
			Reference:   r.Reference,
			Category:    r.Category,
		}
	}
	result, err := h.svc.ImportStatement(c.Request.Context(), id, rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported":      result.Imported,
		"skipped":       result.Skipped,
		"total_in_file": result.TotalInFile,
		"new_balance":   result.NewBalance.StringFixed(2),
	})
}

func (h *BankingHandler) ListTransactions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	f := domain.TransactionFilter{BankAccountID: id}
	if s := c.Query("reconciled"); s != "" {
		v := s == "true"
		f.Reconciled = &v
	}
	if s := c.Query("from"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		f.From = &d
	}
	if s := c.Query("to"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		f.To = &d
	}
	f.Skip = intQuery(c, "skip", 0)
	f.Limit = intQuery(c, "limit", 50)

	rows, total, err := h.svc.ListTransactions(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]transactionResp, len(rows))
	for i := range rows {
		out[i] = toTransactionResp(&rows[i])
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "total": total})
}

func (h *BankingHandler) GetTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResp(t))
}

type reconcileReq struct {
	JournalEntryID int64 `json:"journal_entry_id" binding:"required"`
}

func (h *BankingHandler) Reconcile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reconcileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	t, err := h.svc.Reconcile(c.Request.Context(), id, req.JournalEntryID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResp(t))
}

func (h *BankingHandler) Unreconcile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.svc.Unreconcile(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResp(t))
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

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, ledgerdomain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyReconciled), errors.Is(err, domain.ErrNotReconciled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
