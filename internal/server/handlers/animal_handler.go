package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/herd"
	"github.com/mamadbah2/rabbitry/internal/service/housing"
)

// AnimalHandler exposes the herd registry and per-animal housing moves.
// Animals are addressed by id or tag.
type AnimalHandler struct {
	herd    *herd.Service
	housing *housing.Service
	logger  *zap.Logger
}

// NewAnimalHandler constructs the animal handler.
func NewAnimalHandler(herdSvc *herd.Service, housingSvc *housing.Service, logger *zap.Logger) *AnimalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnimalHandler{herd: herdSvc, housing: housingSvc, logger: logger}
}

// Register adds a born or purchased animal.
func (h *AnimalHandler) Register(c *gin.Context) {
	var in herd.RegisterInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.herd.Register(c.Request.Context(), actor(c), c.Param("farmID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List returns animals, optionally filtered by ?status= and ?housing=.
func (h *AnimalHandler) List(c *gin.Context) {
	filter := repository.AnimalFilter{
		Status:    models.AnimalStatus(c.Query("status")),
		HousingID: c.Query("housing"),
		LiveOnly:  c.Query("live") == "true",
	}
	animals, err := h.herd.List(c.Request.Context(), actor(c), c.Param("farmID"), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"animals": animals})
}

// Get returns one animal.
func (h *AnimalHandler) Get(c *gin.Context) {
	animal, err := h.herd.Get(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("animalID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, animal)
}

// Update patches descriptive fields.
func (h *AnimalHandler) Update(c *gin.Context) {
	var in herd.UpdateInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	animal, err := h.herd.Update(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("animalID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, animal)
}

// Move assigns the animal to a housing unit, or releases it when housing_id is empty.
func (h *AnimalHandler) Move(c *gin.Context) {
	var in housing.AssignInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	ctx := c.Request.Context()
	animal, err := h.herd.Get(ctx, actor(c), c.Param("farmID"), c.Param("animalID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	move, err := h.housing.AssignAnimal(ctx, actor(c), c.Param("farmID"), animal.ID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, move)
}

type releaseRequest struct {
	Date string `json:"date"`
}

// Release takes the animal out of its housing without moving it elsewhere.
// The body is optional; without a date the release happens now.
func (h *AnimalHandler) Release(c *gin.Context) {
	var in releaseRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, h.logger, &in) {
		return
	}
	ctx := c.Request.Context()
	animal, err := h.herd.Get(ctx, actor(c), c.Param("farmID"), c.Param("animalID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	move, err := h.housing.ReleaseAnimal(ctx, actor(c), c.Param("farmID"), animal.ID, in.Date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, move)
}

// History lists the housing assignments of the animal.
func (h *AnimalHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	animal, err := h.herd.Get(ctx, actor(c), c.Param("farmID"), c.Param("animalID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	history, err := h.housing.History(ctx, actor(c), c.Param("farmID"), animal.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	medical, err := h.herd.MedicalHistory(ctx, actor(c), c.Param("farmID"), animal.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"housing": history, "medical": medical})
}

// Wean marks a kit weaned and optionally moves it.
func (h *AnimalHandler) Wean(c *gin.Context) {
	var in herd.WeanInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.herd.Wean(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("animalID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Death records a natural death or a processing.
func (h *AnimalHandler) Death(c *gin.Context) {
	var in herd.DeathInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.herd.RecordDeath(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("animalID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Medical records a health event.
func (h *AnimalHandler) Medical(c *gin.Context) {
	var in herd.MedicalInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.herd.RecordMedical(c.Request.Context(), actor(c), c.Param("farmID"), c.Param("animalID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Sell sells a batch of animals for one total amount.
func (h *AnimalHandler) Sell(c *gin.Context) {
	var in herd.SaleInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.herd.SellAnimals(c.Request.Context(), actor(c), c.Param("farmID"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
