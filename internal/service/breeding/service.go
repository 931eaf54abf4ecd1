// Package breeding runs the mating lifecycle: pairing, palpation and delivery.
package breeding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/domain/rules"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/farms"
	"github.com/mamadbah2/rabbitry/internal/service/herd"
	"github.com/mamadbah2/rabbitry/internal/service/housing"
)

// MatingInput pairs a doe with a buck. Animals are referenced by id or tag.
type MatingInput struct {
	Doe   string `json:"doe"`
	Buck  string `json:"buck"`
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

// PalpationInput records the pregnancy check.
type PalpationInput struct {
	Positive bool   `json:"positive"`
	Date     string `json:"date"`
}

// DeliveryInput records a kindling. Live kits are registered as new animals.
type DeliveryInput struct {
	Date       string `json:"date"`
	Born       int    `json:"born"`
	Live       int    `json:"live"`
	KitHousing string `json:"kit_housing"`
}

// MatingResult is a mating record plus advisory warnings.
type MatingResult struct {
	Record   models.MatingRecord `json:"record"`
	Relation rules.Relation      `json:"relation"`
	Warnings []models.Warning    `json:"warnings,omitempty"`
}

// DeliveryResult is the delivered record and the registered kits.
type DeliveryResult struct {
	Record   models.MatingRecord `json:"record"`
	Kits     []models.Animal     `json:"kits"`
	Warnings []models.Warning    `json:"warnings,omitempty"`
}

// Service manages mating records.
type Service struct {
	store   repository.Store
	housing *housing.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the breeding service.
func NewService(store repository.Store, housingSvc *housing.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, housing: housingSvc, logger: logger, now: time.Now}
}

// Relate compares two animals' parentage, including a direct parent/offspring link.
func Relate(a, b models.Animal) rules.Relation {
	pa := rules.Parentage{FatherTag: a.FatherTag, MotherTag: a.MotherTag}
	pb := rules.Parentage{FatherTag: b.FatherTag, MotherTag: b.MotherTag}
	if rules.IsParentOf(a.Tag, pb) || rules.IsParentOf(b.Tag, pa) {
		return rules.ParentOffspring
	}
	return rules.DetectRelation(pa, pb)
}

// RecordMating saves a Pending mating with projected palpation and delivery dates.
// Related parents produce an inbreeding warning, never an error.
func (s *Service) RecordMating(ctx context.Context, actor, farmID string, in MatingInput) (MatingResult, error) {
	var result MatingResult
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		farm, err := farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		doe, err := herd.ResolveAnimal(ctx, tx, farmID, in.Doe)
		if err != nil {
			return fmt.Errorf("doe: %w", err)
		}
		buck, err := herd.ResolveAnimal(ctx, tx, farmID, in.Buck)
		if err != nil {
			return fmt.Errorf("buck: %w", err)
		}
		if doe.Sex != models.SexFemale {
			return models.Validationf("%s is not a doe", doe.Tag)
		}
		if buck.Sex != models.SexMale {
			return models.Validationf("%s is not a buck", buck.Tag)
		}
		for _, a := range []models.Animal{doe, buck} {
			if a.Status.Terminal() {
				return models.Validationf("%s is %s", a.Tag, a.Status)
			}
		}
		if doe.Status == models.StatusPregnant {
			return models.Validationf("doe %s is already pregnant", doe.Tag)
		}
		open, err := openMatings(ctx, tx, farmID, doe.ID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return models.Validationf("doe %s has a pending mating from %s", doe.Tag, open[0].MatingDate.Format(models.DateLayout))
		}

		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}
		dates := rules.ProjectBreedingDates(date, farm.PalpationDays, farm.GestationDays)
		relation := Relate(doe, buck)

		now := s.now().UTC()
		record := models.MatingRecord{
			ID:                    uuid.NewString(),
			FarmID:                farmID,
			DoeID:                 doe.ID,
			DoeTag:                doe.Tag,
			BuckID:                buck.ID,
			BuckTag:               buck.Tag,
			MatingDate:            date,
			ExpectedPalpationDate: dates.Palpation,
			ExpectedDeliveryDate:  dates.Delivery,
			Status:                models.MatingPending,
			Relation:              string(relation),
			Notes:                 in.Notes,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.PutMating(ctx, record); err != nil {
			return err
		}
		result = MatingResult{Record: record, Relation: relation}
		if relation != rules.NoRelationFound {
			result.Warnings = append(result.Warnings, models.Warning{
				Code:    models.WarningInbreeding,
				Message: fmt.Sprintf("%s and %s are related (%s)", doe.Tag, buck.Tag, relation),
			})
		}
		return nil
	})
	if err != nil {
		return MatingResult{}, err
	}

	fields := []zap.Field{
		zap.String("farm_id", farmID),
		zap.String("doe", result.Record.DoeTag),
		zap.String("buck", result.Record.BuckTag),
		zap.String("expected_delivery", result.Record.ExpectedDeliveryDate.Format(models.DateLayout)),
	}
	if len(result.Warnings) > 0 {
		s.logger.Warn("mating recorded between related animals", append(fields, zap.String("relation", string(result.Relation)))...)
	} else {
		s.logger.Info("mating recorded", fields...)
	}
	return result, nil
}

// RecordPalpation resolves a Pending mating. A positive check marks the doe Pregnant.
func (s *Service) RecordPalpation(ctx context.Context, actor, farmID, matingID string, in PalpationInput) (models.MatingRecord, error) {
	var record models.MatingRecord
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		farm, err := farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		record, err = tx.GetMating(ctx, farmID, matingID)
		if err != nil {
			return err
		}
		if record.Status != models.MatingPending {
			return fmt.Errorf("%w: mating is %s, palpation needs Pending", models.ErrInvalidTransition, record.Status)
		}
		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}
		if date.Before(record.MatingDate) {
			return models.Validationf("palpation date is before the mating date")
		}
		doe, err := tx.GetAnimal(ctx, farmID, record.DoeID)
		if err != nil {
			return err
		}
		if doe.Status.Terminal() {
			return fmt.Errorf("%w: doe %s is %s", models.ErrInvalidTransition, doe.Tag, doe.Status)
		}

		now := s.now().UTC()
		record.PalpationDate = &date
		record.UpdatedAt = now
		next := models.StatusActive
		if in.Positive {
			record.Status = models.MatingPregnant
			next = models.StatusPregnant
		} else {
			record.Status = models.MatingFailed
		}
		if doe.Status != next {
			if err := rules.Transition(doe.Status, next); err != nil {
				return fmt.Errorf("doe %s: %w", doe.Tag, err)
			}
			doe.Status = next
			doe.StatusDate = &date
			doe.UpdatedAt = now
			if err := tx.PutAnimal(ctx, doe); err != nil {
				return err
			}
		}
		return tx.PutMating(ctx, record)
	})
	if err != nil {
		return models.MatingRecord{}, err
	}
	s.logger.Info("palpation recorded",
		zap.String("farm_id", farmID),
		zap.String("doe", record.DoeTag),
		zap.String("status", string(record.Status)),
	)
	return record, nil
}

// RecordDelivery closes a Pregnant mating, returns the doe to Active and registers the live kits.
func (s *Service) RecordDelivery(ctx context.Context, actor, farmID, matingID string, in DeliveryInput) (DeliveryResult, error) {
	if in.Born < 0 || in.Live < 0 {
		return DeliveryResult{}, models.Validationf("litter counts must not be negative")
	}
	if in.Live > in.Born {
		return DeliveryResult{}, models.Validationf("live kits (%d) exceed kits born (%d)", in.Live, in.Born)
	}

	var (
		result DeliveryResult
		moves  []housing.Move
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		farm, err := farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		record, err := tx.GetMating(ctx, farmID, matingID)
		if err != nil {
			return err
		}
		if record.Status != models.MatingPregnant {
			return fmt.Errorf("%w: mating is %s, delivery needs Pregnant", models.ErrInvalidTransition, record.Status)
		}
		date, err := models.ParseEventDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}
		if date.Before(record.MatingDate) {
			return models.Validationf("delivery date is before the mating date")
		}
		doe, err := tx.GetAnimal(ctx, farmID, record.DoeID)
		if err != nil {
			return err
		}
		if doe.Status.Terminal() {
			return fmt.Errorf("%w: doe %s is %s", models.ErrInvalidTransition, doe.Tag, doe.Status)
		}

		var kitUnit models.HousingUnit
		if in.KitHousing != "" {
			if kitUnit, err = housing.FindUnit(ctx, tx, farmID, in.KitHousing); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		born, live := in.Born, in.Live
		record.Status = models.MatingDelivered
		record.DeliveryDate = &date
		record.LitterBorn = &born
		record.LitterLive = &live
		record.UpdatedAt = now
		if err := tx.PutMating(ctx, record); err != nil {
			return err
		}

		if doe.Status == models.StatusPregnant {
			doe.Status = models.StatusActive
			doe.StatusDate = &date
			doe.UpdatedAt = now
			if err := tx.PutAnimal(ctx, doe); err != nil {
				return err
			}
		}

		for i := 0; i < live; i++ {
			kit, err := herd.CreateAnimal(ctx, tx, farm, models.Animal{
				ID:        uuid.NewString(),
				FarmID:    farmID,
				Breed:     doe.Breed,
				Sex:       models.SexUnknown,
				BirthDate: date,
				Source:    models.SourceBorn,
				Status:    models.StatusActive,
				FatherTag: record.BuckTag,
				MotherTag: record.DoeTag,
				Notes:     fmt.Sprintf("litter of %s x %s", record.DoeTag, record.BuckTag),
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("register kit %d: %w", i+1, err)
			}
			if kitUnit.ID != "" {
				move, err := housing.Assign(ctx, tx, farm, kit, kitUnit.ID, models.PurposeHousing, "", now)
				if err != nil {
					return fmt.Errorf("house kit %s: %w", kit.Tag, err)
				}
				moves = append(moves, move)
				kit = move.Animal
				result.Warnings = appendWarnings(result.Warnings, move.Warnings...)
			}
			result.Kits = append(result.Kits, kit)
		}
		result.Record = record
		return nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}

	for _, m := range moves {
		s.housing.Observe(farmID, m)
	}
	s.logger.Info("delivery recorded",
		zap.String("farm_id", farmID),
		zap.String("doe", result.Record.DoeTag),
		zap.Int("born", in.Born),
		zap.Int("live", in.Live),
	)
	return result, nil
}

// Get returns one mating record.
func (s *Service) Get(ctx context.Context, actor, farmID, matingID string) (models.MatingRecord, error) {
	var record models.MatingRecord
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		var err error
		record, err = v.GetMating(ctx, farmID, matingID)
		return err
	})
	return record, err
}

// List returns the farm's mating records, optionally restricted to one status.
func (s *Service) List(ctx context.Context, actor, farmID string, status models.MatingStatus) ([]models.MatingRecord, error) {
	var records []models.MatingRecord
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		all, err := v.ListMatings(ctx, farmID)
		if err != nil {
			return err
		}
		for _, r := range all {
			if status == "" || r.Status == status {
				records = append(records, r)
			}
		}
		return nil
	})
	return records, err
}

// UpcomingEvents lists what is due within the next days, starting today in the farm's timezone.
func (s *Service) UpcomingEvents(ctx context.Context, actor, farmID string, days int) ([]models.UpcomingEvent, error) {
	if days < 0 {
		return nil, models.Validationf("window must not be negative")
	}
	var events []models.UpcomingEvent
	err := s.store.View(ctx, func(v repository.View) error {
		farm, err := farms.Authorize(ctx, v, actor, farmID)
		if err != nil {
			return err
		}
		events, err = LoadUpcoming(ctx, v, farm, s.now(), days)
		return err
	})
	return events, err
}

// LoadUpcoming reads what Upcoming needs from an open view.
func LoadUpcoming(ctx context.Context, v repository.View, farm models.Farm, now time.Time, days int) ([]models.UpcomingEvent, error) {
	matings, err := v.ListMatings(ctx, farm.ID)
	if err != nil {
		return nil, fmt.Errorf("list matings: %w", err)
	}
	animals, err := v.ListAnimals(ctx, farm.ID, repository.AnimalFilter{})
	if err != nil {
		return nil, fmt.Errorf("list animals: %w", err)
	}
	return Upcoming(farm, matings, animals, now.In(farm.Location()), days), nil
}

func openMatings(ctx context.Context, v repository.View, farmID, doeID string) ([]models.MatingRecord, error) {
	all, err := v.ListMatings(ctx, farmID)
	if err != nil {
		return nil, err
	}
	var open []models.MatingRecord
	for _, r := range all {
		if r.DoeID == doeID && !r.Status.Terminal() {
			open = append(open, r)
		}
	}
	return open, nil
}

// appendWarnings skips warnings whose message is already present.
func appendWarnings(dst []models.Warning, ws ...models.Warning) []models.Warning {
	for _, w := range ws {
		dup := false
		for _, d := range dst {
			if d == w {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, w)
		}
	}
	return dst
}
