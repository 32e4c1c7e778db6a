package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"store_engine/internal/domain"
	"store_engine/internal/purchase"
	"store_engine/internal/settlement"
)

// engineHandler maps HTTP requests to engine operations and engine outcomes
// back to status codes.
type engineHandler struct {
	accounts   domain.AccountStore
	ledger     domain.LedgerStore
	registry   domain.TransactionRegistry
	catalog    domain.ProductCatalog
	inventory  domain.CredentialInventory
	settlement *settlement.Service
	purchase   *purchase.Service
	logger     *zap.Logger
}

// newEngineHandler creates the handler set.
func newEngineHandler(accounts domain.AccountStore, ledger domain.LedgerStore, registry domain.TransactionRegistry, catalog domain.ProductCatalog, inventory domain.CredentialInventory, settlementSvc *settlement.Service, purchaseSvc *purchase.Service, logger *zap.Logger) *engineHandler {
	return &engineHandler{
		accounts:   accounts,
		ledger:     ledger,
		registry:   registry,
		catalog:    catalog,
		inventory:  inventory,
		settlement: settlementSvc,
		purchase:   purchaseSvc,
		logger:     logger,
	}
}

// handleEnsureAccount handles POST /accounts.
func (h *engineHandler) handleEnsureAccount(c *gin.Context) {
	var req struct {
		ExternalRef string `json:"external_ref" binding:"required"`
		Username    string `json:"username"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	account, err := h.accounts.Ensure(c.Request.Context(), req.ExternalRef, req.Username, req.FirstName, req.LastName)
	if err != nil {
		h.logger.Error("failed to ensure account", zap.String("external_ref", req.ExternalRef), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ensure account"})
		return
	}
	c.JSON(http.StatusOK, account)
}

// handleBalance handles GET /accounts/:ref/balance.
func (h *engineHandler) handleBalance(c *gin.Context) {
	account, ok := h.accountByRef(c)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), account.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"external_ref":  account.ExternalRef,
		"balance_cents": balance,
		"balance":       domain.FormatCents(balance),
	})
}

// handleHistory handles GET /accounts/:ref/transactions.
func (h *engineHandler) handleHistory(c *gin.Context) {
	account, ok := h.accountByRef(c)
	if !ok {
		return
	}
	txs, err := h.registry.History(c.Request.Context(), account.ID, 20)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// handleCreateCharge handles POST /charges.
func (h *engineHandler) handleCreateCharge(c *gin.Context) {
	var req struct {
		ExternalRef string `json:"external_ref" binding:"required"`
		Amount      string `json:"amount" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	amountCents, err := domain.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	account, err := h.accounts.GetByRef(c.Request.Context(), req.ExternalRef)
	if err != nil {
		h.respondError(c, err)
		return
	}

	instructions, err := h.settlement.RequestCharge(c.Request.Context(), account.ID, amountCents, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, instructions)
}

// handleGatewayWebhook handles POST /gateway/webhook. The gateway sends the
// payment id either as a query parameter or inside the JSON body, and may
// deliver the same event many times.
func (h *engineHandler) handleGatewayWebhook(c *gin.Context) {
	paymentID := c.Query("id")
	if paymentID == "" {
		paymentID = c.Query("data.id")
	}
	if paymentID == "" {
		var body struct {
			ID   string `json:"id"`
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			paymentID = body.Data.ID
			if paymentID == "" {
				paymentID = body.ID
			}
		}
	}
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing payment id"})
		return
	}

	result, err := h.settlement.ReportCompleted(c.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			// Unknown id: acknowledge so the gateway stops redelivering.
			c.JSON(http.StatusOK, gin.H{"ok": true, "settled": false})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "settled": result.Settled, "result": result})
}

// handlePurchase handles POST /purchases.
func (h *engineHandler) handlePurchase(c *gin.Context) {
	var req struct {
		ExternalRef string `json:"external_ref" binding:"required"`
		ProductID   string `json:"product_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	account, err := h.accounts.GetByRef(c.Request.Context(), req.ExternalRef)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.purchase.Buy(c.Request.Context(), account.ID, req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleListProducts handles GET /products.
func (h *engineHandler) handleListProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// handleAddProduct handles POST /products (operator).
func (h *engineHandler) handleAddProduct(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Price string `json:"price" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	priceCents, err := domain.ParseAmount(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}
	product, err := h.catalog.Add(c.Request.Context(), req.Name, priceCents)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// handleAddCredential handles POST /credentials (operator).
func (h *engineHandler) handleAddCredential(c *gin.Context) {
	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		Login     string `json:"login" binding:"required"`
		Secret    string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if _, err := h.catalog.Get(c.Request.Context(), req.ProductID); err != nil {
		h.respondError(c, err)
		return
	}
	credential, err := h.inventory.Add(c.Request.Context(), req.ProductID, req.Login, req.Secret)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": credential.ID, "product_id": credential.ProductID})
}

// handleManualCredit handles POST /accounts/:ref/credit (operator): a
// direct balance adjustment outside any gateway transaction.
func (h *engineHandler) handleManualCredit(c *gin.Context) {
	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	amountCents, err := domain.ParseAmount(req.Amount)
	if err != nil || amountCents == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	account, ok := h.accountByRef(c)
	if !ok {
		return
	}
	balance, err := h.ledger.Adjust(c.Request.Context(), account.ID, amountCents)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("manual credit applied",
		zap.String("actor_id", c.GetHeader(actorHeader)),
		zap.String("account_id", account.ID),
		zap.Int64("amount_cents", amountCents))
	c.JSON(http.StatusOK, gin.H{"balance_cents": balance, "balance": domain.FormatCents(balance)})
}

// handleBan handles POST /accounts/:ref/ban (operator).
func (h *engineHandler) handleBan(c *gin.Context) {
	h.setBanned(c, true)
}

// handleUnban handles POST /accounts/:ref/unban (operator).
func (h *engineHandler) handleUnban(c *gin.Context) {
	h.setBanned(c, false)
}

func (h *engineHandler) setBanned(c *gin.Context, banned bool) {
	account, ok := h.accountByRef(c)
	if !ok {
		return
	}
	if err := h.accounts.SetBanned(c.Request.Context(), account.ID, banned); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("account ban flag changed",
		zap.String("actor_id", c.GetHeader(actorHeader)),
		zap.String("account_id", account.ID),
		zap.Bool("banned", banned))
	c.JSON(http.StatusOK, gin.H{"external_ref": account.ExternalRef, "banned": banned})
}

// handleManualApproval handles POST /approvals/:id (operator): the manual
// fallback when a webhook never arrived. Verifies with the gateway first,
// exactly like the webhook path.
func (h *engineHandler) handleManualApproval(c *gin.Context) {
	result, err := h.settlement.ReportCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleReport handles GET /reports/:period (operator).
func (h *engineHandler) handleReport(c *gin.Context) {
	since, ok := periodStart(c.Param("period"), time.Now().UTC())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period, use total/daily/weekly/monthly"})
		return
	}
	report, err := h.registry.Report(c.Request.Context(), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"period":      c.Param("period"),
		"count":       report.Count,
		"total_cents": report.TotalCents,
		"total":       domain.FormatCents(report.TotalCents),
	})
}

// periodStart maps a report period to its inclusive start instant. A zero
// time means no lower bound.
func periodStart(period string, now time.Time) (time.Time, bool) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "total":
		return time.Time{}, true
	case "daily":
		return midnight, true
	case "weekly":
		return midnight.AddDate(0, 0, -6), true
	case "monthly":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// accountByRef resolves the :ref path parameter, answering 404 itself when
// the account is unknown.
func (h *engineHandler) accountByRef(c *gin.Context) (*domain.Account, bool) {
	account, err := h.accounts.GetByRef(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return account, true
}

// respondError maps engine outcomes to status codes. Business rejections
// state which precondition failed without leaking internal identifiers.
func (h *engineHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrDuplicateExternalID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrExternalService):
		h.logger.Error("gateway failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case settlement.IsConsistencyViolation(err):
		// Operational alert: approval recorded, credit missing.
		h.logger.Error("consistency violation, manual reconciliation required", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement recorded but credit failed; operators notified"})
	default:
		h.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
