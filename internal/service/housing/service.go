// Package housing keeps hutch occupancy and the assignment history consistent.
package housing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/observability"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/farms"
)

// UnitInput creates a housing unit.
type UnitInput struct {
	Label       string   `json:"label"`
	Capacity    int      `json:"capacity"`
	Accessories []string `json:"accessories"`
	Notes       string   `json:"notes"`
}

// AssignInput moves an animal. An empty HousingID takes the animal out of housing.
type AssignInput struct {
	HousingID string                   `json:"housing_id"`
	Purpose   models.AssignmentPurpose `json:"purpose"`
	Notes     string                   `json:"notes"`
	Date      string                   `json:"date"`
}

// Service exposes the housing ledger.
type Service struct {
	store   repository.Store
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the housing service.
func NewService(store repository.Store, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// CreateUnit adds a hutch to the farm.
func (s *Service) CreateUnit(ctx context.Context, actor, farmID string, in UnitInput) (models.HousingUnit, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return models.HousingUnit{}, models.Validationf("housing label is required")
	}
	if in.Capacity < 1 {
		return models.HousingUnit{}, models.Validationf("housing capacity must be at least 1, got %d", in.Capacity)
	}

	now := s.now().UTC()
	unit := models.HousingUnit{
		ID:          uuid.NewString(),
		FarmID:      farmID,
		Label:       label,
		Capacity:    in.Capacity,
		Accessories: append([]string{}, in.Accessories...),
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if _, err := farms.Authorize(ctx, tx, actor, farmID); err != nil {
			return err
		}
		existing, err := tx.ListHousing(ctx, farmID)
		if err != nil {
			return err
		}
		for _, u := range existing {
			if strings.EqualFold(u.Label, label) {
				return models.Validationf("housing label %q already exists", label)
			}
		}
		return tx.PutHousing(ctx, unit)
	})
	if err != nil {
		return models.HousingUnit{}, err
	}
	s.logger.Info("housing unit created", zap.String("farm_id", farmID), zap.String("label", label), zap.Int("capacity", in.Capacity))
	return unit, nil
}

// ListUnits returns the farm's hutches ordered by label.
func (s *Service) ListUnits(ctx context.Context, actor, farmID string) ([]models.HousingUnit, error) {
	var units []models.HousingUnit
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		var err error
		units, err = v.ListHousing(ctx, farmID)
		return err
	})
	return units, err
}

// FindUnit resolves a housing unit by id or, failing that, by label.
func FindUnit(ctx context.Context, v repository.View, farmID, ref string) (models.HousingUnit, error) {
	unit, err := v.GetHousing(ctx, farmID, ref)
	if err == nil || !isNotFound(err) {
		return unit, err
	}
	units, lerr := v.ListHousing(ctx, farmID)
	if lerr != nil {
		return models.HousingUnit{}, lerr
	}
	for _, u := range units {
		if strings.EqualFold(u.Label, strings.TrimSpace(ref)) {
			return u, nil
		}
	}
	return models.HousingUnit{}, err
}

// AssignAnimal moves an animal into a unit, or out of housing when in.HousingID is empty.
func (s *Service) AssignAnimal(ctx context.Context, actor, farmID, animalID string, in AssignInput) (Move, error) {
	var result Move
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		farm, err := farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		animal, err := tx.GetAnimal(ctx, farmID, animalID)
		if err != nil {
			return err
		}
		at, err := moment(in.Date, s.now())
		if err != nil {
			return err
		}
		targetID := in.HousingID
		if targetID != "" {
			unit, err := FindUnit(ctx, tx, farmID, targetID)
			if err != nil {
				return err
			}
			targetID = unit.ID
		}
		result, err = Assign(ctx, tx, farm, animal, targetID, in.Purpose, in.Notes, at)
		return err
	})
	if err != nil {
		return Move{}, err
	}
	s.Observe(farmID, result)
	return result, nil
}

// ReleaseAnimal takes an animal out of its housing as of date (today when empty).
func (s *Service) ReleaseAnimal(ctx context.Context, actor, farmID, animalID, date string) (Move, error) {
	var result Move
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if _, err := farms.Authorize(ctx, tx, actor, farmID); err != nil {
			return err
		}
		animal, err := tx.GetAnimal(ctx, farmID, animalID)
		if err != nil {
			return err
		}
		at, err := moment(date, s.now())
		if err != nil {
			return err
		}
		result, err = Release(ctx, tx, animal, at)
		return err
	})
	if err != nil {
		return Move{}, err
	}
	s.Observe(farmID, result)
	return result, nil
}

// Reconcile recomputes occupancy counters and reports what changed.
func (s *Service) Reconcile(ctx context.Context, actor, farmID string) ([]Correction, error) {
	var corrections []Correction
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if _, err := farms.Authorize(ctx, tx, actor, farmID); err != nil {
			return err
		}
		var err error
		corrections, err = Reconcile(ctx, tx, farmID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile occupancy: %w", err)
	}
	s.metrics.LedgerOp("reconcile")
	for _, c := range corrections {
		s.logger.Warn("occupancy corrected",
			zap.String("farm_id", farmID),
			zap.String("housing", c.Label),
			zap.Int("recorded", c.Recorded),
			zap.Int("actual", c.Actual),
		)
	}
	return corrections, nil
}

// History returns the assignment history of one animal, or of the farm when animalID is empty.
func (s *Service) History(ctx context.Context, actor, farmID, animalID string) ([]models.HousingAssignment, error) {
	var history []models.HousingAssignment
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		if animalID != "" {
			if _, err := v.GetAnimal(ctx, farmID, animalID); err != nil {
				return err
			}
		}
		var err error
		history, err = v.ListAssignments(ctx, farmID, animalID)
		return err
	})
	return history, err
}

// Observe records metrics and logs for a committed move. Other services call it
// after composing Assign or Release into their own transactions.
func (s *Service) Observe(farmID string, m Move) {
	if s == nil {
		return
	}
	switch {
	case !m.Changed:
		s.metrics.LedgerOp("noop")
	case m.Target != nil:
		s.metrics.LedgerOp("assign")
	default:
		s.metrics.LedgerOp("release")
	}
	for _, w := range m.Warnings {
		if w.Code == models.WarningCapacity {
			s.metrics.CapacityWarning()
		}
		s.logger.Warn("housing warning", zap.String("farm_id", farmID), zap.String("tag", m.Animal.Tag), zap.String("warning", w.Message))
	}
	if m.Changed {
		s.logger.Info("housing ledger updated",
			zap.String("farm_id", farmID),
			zap.String("tag", m.Animal.Tag),
			zap.String("housing_id", m.Animal.CurrentHousing()),
		)
	}
}

// moment returns the parsed date, or the current instant so same-day moves keep their order.
func moment(date string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return now.UTC(), nil
	}
	return models.ParseDay(date)
}
