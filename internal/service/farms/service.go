package farms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
)

// Authorize loads the farm and checks that actor owns it.
func Authorize(ctx context.Context, v repository.View, actor, farmID string) (models.Farm, error) {
	if actor == "" {
		return models.Farm{}, fmt.Errorf("%w: missing user identity", models.ErrPermissionDenied)
	}
	farm, err := v.GetFarm(ctx, farmID)
	if err != nil {
		return models.Farm{}, err
	}
	if farm.OwnerID != actor {
		return models.Farm{}, fmt.Errorf("%w: farm %s", models.ErrPermissionDenied, farmID)
	}
	return farm, nil
}

// Input is the editable part of a farm configuration.
type Input struct {
	Name           string                `json:"name"`
	Currency       string                `json:"currency"`
	Timezone       string                `json:"timezone"`
	GestationDays  int                   `json:"gestation_days"`
	PalpationDays  int                   `json:"palpation_days"`
	WeaningDays    int                   `json:"weaning_days"`
	Breeds         []models.Breed        `json:"breeds"`
	TagPrefix      string                `json:"tag_prefix"`
	CapacityPolicy models.CapacityPolicy `json:"capacity_policy"`
}

// Service manages farm configuration.
type Service struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a farm configuration service.
func NewService(store repository.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create registers a new farm owned by actor.
func (s *Service) Create(ctx context.Context, actor string, in Input) (models.Farm, error) {
	if actor == "" {
		return models.Farm{}, fmt.Errorf("%w: missing user identity", models.ErrPermissionDenied)
	}

	now := s.now().UTC()
	farm := apply(models.Farm{ID: uuid.NewString(), OwnerID: actor, CreatedAt: now}, in)
	farm.UpdatedAt = now
	farm.Normalize()
	if err := farm.Validate(); err != nil {
		return models.Farm{}, err
	}

	if err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		return tx.PutFarm(ctx, farm)
	}); err != nil {
		return models.Farm{}, fmt.Errorf("create farm: %w", err)
	}

	s.logger.Info("farm created", zap.String("farm_id", farm.ID), zap.String("owner", actor))
	return farm, nil
}

// Get returns the farm when actor owns it.
func (s *Service) Get(ctx context.Context, actor, farmID string) (models.Farm, error) {
	var farm models.Farm
	err := s.store.View(ctx, func(v repository.View) error {
		var err error
		farm, err = Authorize(ctx, v, actor, farmID)
		return err
	})
	return farm, err
}

// Update replaces the editable configuration.
func (s *Service) Update(ctx context.Context, actor, farmID string, in Input) (models.Farm, error) {
	var farm models.Farm
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		current, err := Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		farm = apply(current, in)
		farm.UpdatedAt = s.now().UTC()
		farm.Normalize()
		if err := farm.Validate(); err != nil {
			return err
		}
		return tx.PutFarm(ctx, farm)
	})
	if err != nil {
		return models.Farm{}, err
	}
	s.logger.Info("farm updated", zap.String("farm_id", farmID))
	return farm, nil
}

func apply(f models.Farm, in Input) models.Farm {
	f.Name = in.Name
	f.Currency = in.Currency
	f.Timezone = in.Timezone
	f.GestationDays = in.GestationDays
	f.PalpationDays = in.PalpationDays
	f.WeaningDays = in.WeaningDays
	f.Breeds = append([]models.Breed(nil), in.Breeds...)
	f.TagPrefix = in.TagPrefix
	f.CapacityPolicy = in.CapacityPolicy
	return f
}

// Owner returns the owner of a farm without an access check. Used by trusted
// intake channels that act on behalf of the owner.
func (s *Service) Owner(ctx context.Context, farmID string) (string, error) {
	var owner string
	err := s.store.View(ctx, func(v repository.View) error {
		farm, err := v.GetFarm(ctx, farmID)
		owner = farm.OwnerID
		return err
	})
	return owner, err
}
