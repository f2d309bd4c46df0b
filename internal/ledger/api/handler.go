package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/northbooks/northbooks/internal/ledger/domain"
	"github.com/northbooks/northbooks/internal/ledger/service"
)

// LedgerHandler exposes the chart of accounts and the journal engine.
type LedgerHandler struct {
	accounts *service.AccountService
	journal  *service.JournalService
}

func NewLedgerHandler(accounts *service.AccountService, journal *service.JournalService) *LedgerHandler {
	return &LedgerHandler{accounts: accounts, journal: journal}
}

func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	accounts := r.Group("/accounts")
	{
		accounts.POST("", h.CreateAccount)
		accounts.POST("/seed", h.SeedChart)
		accounts.GET("", h.ListAccounts)
		accounts.GET("/:id", h.GetAccount)
		accounts.PATCH("/:id", h.UpdateAccount)
		accounts.DELETE("/:id", h.DeleteAccount)
		accounts.POST("/:id/activate", h.ActivateAccount)
		accounts.POST("/:id/deactivate", h.DeactivateAccount)
		accounts.GET("/:id/balance", h.GetBalance)
		accounts.GET("/:id/ledger", h.GetLedger)
	}
	journal := r.Group("/journal-entries")
	{
		journal.POST("", h.PostEntry)
		journal.GET("", h.ListEntries)
		journal.GET("/:id", h.GetEntry)
		journal.DELETE("/:id", h.DeleteEntry)
	}
}

func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req createAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	a, err := h.accounts.CreateAccount(c.Request.Context(), service.CreateAccountParams{
		Code:            req.Code,
		Name:            req.Name,
		Type:            domain.AccountType(req.Type),
		SubType:         req.SubType,
		Description:     req.Description,
		ParentAccountID: req.ParentID,
		TaxCode:         req.TaxCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccountResp(a))
}

// SeedChart creates any missing default accounts. Safe to call repeatedly.
func (h *LedgerHandler) SeedChart(c *gin.Context) {
	created, err := h.accounts.SeedChart(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	var f domain.AccountFilter
	if t := c.Query("type"); t != "" {
		at := domain.AccountType(t)
		if !at.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown account type " + t})
			return
		}
		f.Type = &at
	}
	f.ActiveOnly = c.Query("active") == "true"

	accounts, err := h.accounts.ListAccounts(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]accountResp, len(accounts))
	for i := range accounts {
		out[i] = toAccountResp(&accounts[i])
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.accounts.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResp(a))
}

func (h *LedgerHandler) UpdateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	patch := service.AccountPatch{
		Code:        req.Code,
		Name:        req.Name,
		SubType:     req.SubType,
		Description: req.Description,
		TaxCode:     req.TaxCode,
		ParentID:    req.ParentID,
		ClearParent: req.ClearParent,
	}
	if req.Type != nil {
		at := domain.AccountType(*req.Type)
		patch.Type = &at
	}
	a, err := h.accounts.UpdateAccount(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResp(a))
}

// DeleteAccount hard-deletes an account with no history, otherwise it
// deactivates it and says so.
func (h *LedgerHandler) DeleteAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	hardDeleted, err := h.accounts.DeleteAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !hardDeleted {
		c.JSON(http.StatusOK, gin.H{"deleted": false, "deactivated": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *LedgerHandler) ActivateAccount(c *gin.Context)   { h.setActive(c, true) }
func (h *LedgerHandler) DeactivateAccount(c *gin.Context) { h.setActive(c, false) }

func (h *LedgerHandler) setActive(c *gin.Context, active bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.accounts.SetActive(c.Request.Context(), id, active); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": active})
}

// GetBalance returns the signed balance including child accounts, optionally
// as of a date.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var asOf *time.Time
	if s := c.Query("as_of"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
			return
		}
		asOf = &d
	}
	balance, err := h.accounts.GetBalance(c.Request.Context(), id, asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"account_id": id, "balance": balance.StringFixed(domain.MaxPlaces)}
	if asOf != nil {
		resp["as_of"] = asOf.Format(dateLayout)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LedgerHandler) GetLedger(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var f domain.LedgerFilter
	if s := c.Query("from"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		f.From = &d
	}
	if s := c.Query("to"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		f.To = &d
	}
	f.Limit = intQuery(c, "limit", 50)
	f.Offset = intQuery(c, "offset", 0)

	ledger, err := h.accounts.GetLedger(c.Request.Context(), id, f)
	if err != nil {
		writeError(c, err)
		return
	}
	rows := make([]ledgerRowResp, len(ledger.Rows))
	for i, r := range ledger.Rows {
		rows[i] = toLedgerRowResp(r)
	}
	c.JSON(http.StatusOK, gin.H{
		"account":         toAccountResp(ledger.Account),
		"opening_balance": ledger.Opening.StringFixed(domain.MaxPlaces),
		"rows":            rows,
		"total":           ledger.Total,
	})
}

func (h *LedgerHandler) PostEntry(c *gin.Context) {
	var req postEntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	entryType := domain.EntryManual
	if req.Type != "" {
		entryType = domain.EntryType(req.Type)
	}

	p := service.PostEntryParams{
		Date:        date,
		Description: req.Description,
		Type:        entryType,
		Reference:   req.Reference,
		Notes:       req.Notes,
		Lines:       make([]service.LineParams, len(req.Lines)),
	}
	for i, l := range req.Lines {
		debit, err := parseAmount("debit", l.Debit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		credit, err := parseAmount("credit", l.Credit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p.Lines[i] = service.LineParams{
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       debit,
			Credit:      credit,
		}
	}

	entry, err := h.journal.PostEntry(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEntryResp(entry))
}

func (h *LedgerHandler) ListEntries(c *gin.Context) {
	var f domain.EntryFilter
	if t := c.Query("entry_type"); t != "" {
		et := domain.EntryType(t)
		if !et.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entry type " + t})
			return
		}
		f.Type = &et
	}
	if s := c.Query("account_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account_id must be an integer"})
			return
		}
		f.AccountID = &id
	}
	if s := c.Query("from"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		f.From = &d
	}
	if s := c.Query("to"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		f.To = &d
	}
	f.Skip = intQuery(c, "skip", 0)
	f.Limit = intQuery(c, "limit", 50)

	entries, total, err := h.journal.ListEntries(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]entryResp, len(entries))
	for i := range entries {
		out[i] = toEntryResp(&entries[i])
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "total": total})
}

func (h *LedgerHandler) GetEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := h.journal.GetEntry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEntryResp(entry))
}

func (h *LedgerHandler) DeleteEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.journal.DeleteEntry(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
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

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var unbalanced *domain.UnbalancedEntryError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrSystemAccount),
		errors.Is(err, domain.ErrNotManual),
		errors.Is(err, domain.ErrReferenced):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &unbalanced):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"delta": unbalanced.Delta.StringFixed(domain.MaxPlaces),
		})
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidParent),
		errors.Is(err, domain.ErrInactiveAccount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
