package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/service/housing"
)

// HousingHandler exposes housing units.
type HousingHandler struct {
	svc    *housing.Service
	logger *zap.Logger
}

// NewHousingHandler constructs the housing handler.
func NewHousingHandler(svc *housing.Service, logger *zap.Logger) *HousingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HousingHandler{svc: svc, logger: logger}
}

// Create adds a unit.
func (h *HousingHandler) Create(c *gin.Context) {
	var in housing.UnitInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	unit, err := h.svc.CreateUnit(c.Request.Context(), actor(c), c.Param("farmID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

// List returns every unit of the farm.
func (h *HousingHandler) List(c *gin.Context) {
	units, err := h.svc.ListUnits(c.Request.Context(), actor(c), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"housing_units": units})
}

// Reconcile recomputes occupancy counters.
func (h *HousingHandler) Reconcile(c *gin.Context) {
	corrections, err := h.svc.Reconcile(c.Request.Context(), actor(c), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"corrections": corrections})
}
