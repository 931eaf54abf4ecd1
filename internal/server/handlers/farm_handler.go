package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/service/farms"
)

// FarmHandler exposes farm configuration.
type FarmHandler struct {
	svc    *farms.Service
	logger *zap.Logger
}

// NewFarmHandler constructs the farm handler.
func NewFarmHandler(svc *farms.Service, logger *zap.Logger) *FarmHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmHandler{svc: svc, logger: logger}
}

// Create registers a farm owned by the caller.
func (h *FarmHandler) Create(c *gin.Context) {
	var in farms.Input
	if !bindJSON(c, h.logger, &in) {
		return
	}
	farm, err := h.svc.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, farm)
}

// Get returns one farm.
func (h *FarmHandler) Get(c *gin.Context) {
	farm, err := h.svc.Get(c.Request.Context(), actor(c), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, farm)
}

// Update replaces the editable configuration.
func (h *FarmHandler) Update(c *gin.Context) {
	var in farms.Input
	if !bindJSON(c, h.logger, &in) {
		return
	}
	farm, err := h.svc.Update(c.Request.Context(), actor(c), c.Param("farmID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, farm)
}
