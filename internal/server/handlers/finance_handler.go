package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/service/finance"
)

// FinanceHandler exposes the transaction ledger.
type FinanceHandler struct {
	svc    *finance.Service
	logger *zap.Logger
}

// NewFinanceHandler constructs the finance handler.
func NewFinanceHandler(svc *finance.Service, logger *zap.Logger) *FinanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinanceHandler{svc: svc, logger: logger}
}

// Create records a manual transaction.
func (h *FinanceHandler) Create(c *gin.Context) {
	var in finance.Input
	if !bindJSON(c, h.logger, &in) {
		return
	}
	txn, err := h.svc.RecordTransaction(c.Request.Context(), actor(c), c.Param("farmID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// List returns transactions between ?from= and ?to= (inclusive days).
func (h *FinanceHandler) List(c *gin.Context) {
	txns, err := h.svc.ListTransactions(c.Request.Context(), actor(c), c.Param("farmID"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// Summary aggregates income and expense over the same window.
func (h *FinanceHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context(), actor(c), c.Param("farmID"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
