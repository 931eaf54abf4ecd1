package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/service/advisor"
	"github.com/mamadbah2/rabbitry/internal/service/reporting"
)

// ReportingHandler exposes the dashboard, reminders, export and the advisor.
type ReportingHandler struct {
	reporting *reporting.Service
	advisor   *advisor.Service
	logger    *zap.Logger
}

// NewReportingHandler constructs the reporting handler. advisorSvc may be nil.
func NewReportingHandler(reportingSvc *reporting.Service, advisorSvc *advisor.Service, logger *zap.Logger) *ReportingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportingHandler{reporting: reportingSvc, advisor: advisorSvc, logger: logger}
}

// Summary returns the farm dashboard.
func (h *ReportingHandler) Summary(c *gin.Context) {
	summary, err := h.reporting.Summary(c.Request.Context(), actor(c), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Notifications lists reminders; ?unread=true hides read ones.
func (h *ReportingHandler) Notifications(c *gin.Context) {
	items, err := h.reporting.ListNotifications(c.Request.Context(), actor(c), c.Param("farmID"), c.Query("unread") == "true")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkRead flags one reminder as read.
func (h *ReportingHandler) MarkRead(c *gin.Context) {
	n, err := h.reporting.MarkNotificationRead(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("notificationID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// Export streams the whole farm as one JSON document.
func (h *ReportingHandler) Export(c *gin.Context) {
	export, err := h.reporting.Export(c.Request.Context(), actor(c), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="farm-`+export.Farm.ID+`.json"`)
	c.JSON(http.StatusOK, export)
}

type askRequest struct {
	Question string `json:"question"`
	Reset    bool   `json:"reset"`
}

// Ask forwards a question to the advisor.
func (h *ReportingHandler) Ask(c *gin.Context) {
	var req askRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(c, h.logger, models.Validationf("question is required"))
		return
	}
	if h.advisor == nil {
		respondError(c, h.logger, models.ErrProvider)
		return
	}
	if req.Reset {
		h.advisor.Reset(actor(c), c.Param("farmID"))
	}
	answer, err := h.advisor.Ask(c.Request.Context(), actor(c), c.Param("farmID"), req.Question)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
