package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/service/breeding"
)

const defaultUpcomingDays = 7

// BreedingHandler exposes mating records.
type BreedingHandler struct {
	svc    *breeding.Service
	logger *zap.Logger
}

// NewBreedingHandler constructs the breeding handler.
func NewBreedingHandler(svc *breeding.Service, logger *zap.Logger) *BreedingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreedingHandler{svc: svc, logger: logger}
}

// Create records a mating.
func (h *BreedingHandler) Create(c *gin.Context) {
	var in breeding.MatingInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.svc.RecordMating(c.Request.Context(), actor(c), c.Param("farmID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List returns matings, optionally filtered by ?status=.
func (h *BreedingHandler) List(c *gin.Context) {
	records, err := h.svc.List(c.Request.Context(), actor(c), c.Param("farmID"), models.MatingStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matings": records})
}

// Get returns one mating.
func (h *BreedingHandler) Get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("matingID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Palpation records the pregnancy check.
func (h *BreedingHandler) Palpation(c *gin.Context) {
	var in breeding.PalpationInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	record, err := h.svc.RecordPalpation(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("matingID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delivery records a kindling and registers the kits.
func (h *BreedingHandler) Delivery(c *gin.Context) {
	var in breeding.DeliveryInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.svc.RecordDelivery(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("matingID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Upcoming lists palpations, deliveries and weanings due within ?days= (7 by default).
func (h *BreedingHandler) Upcoming(c *gin.Context) {
	days := defaultUpcomingDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
			return
		}
		days = n
	}
	events, err := h.svc.UpcomingEvents(c.Request.Context(), actor(c), c.Param("farmID"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
