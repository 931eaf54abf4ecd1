package housing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
)

// Move describes the effect of one ledger operation.
type Move struct {
	Animal   models.Animal              `json:"animal"`
	Opened   *models.HousingAssignment  `json:"opened,omitempty"`
	Closed   []models.HousingAssignment `json:"closed,omitempty"`
	Source   *models.HousingUnit        `json:"source,omitempty"`
	Target   *models.HousingUnit        `json:"target,omitempty"`
	Warnings []models.Warning           `json:"warnings,omitempty"`
	// Changed is false when the animal was already in the target unit.
	Changed bool `json:"changed"`
}

// Assign moves animal into targetID (empty = out of any housing) inside tx.
// It closes the open assignment, adjusts both occupancy counters and opens a new
// assignment. Moving to the unit the animal already occupies changes nothing.
func Assign(ctx context.Context, tx repository.Tx, farm models.Farm, animal models.Animal, targetID string, purpose models.AssignmentPurpose, notes string, at time.Time) (Move, error) {
	if purpose == "" {
		purpose = models.PurposeHousing
	}
	if !purpose.Valid() {
		return Move{}, models.Validationf("unknown assignment purpose %q", purpose)
	}

	if targetID == "" {
		return move(ctx, tx, animal, nil, purpose, notes, at)
	}

	if animal.Status.Terminal() {
		return Move{}, models.Validationf("animal %s is %s and cannot be housed", animal.Tag, animal.Status)
	}

	target, err := tx.GetHousing(ctx, farm.ID, targetID)
	if err != nil {
		return Move{}, err
	}

	if animal.CurrentHousing() == target.ID {
		open, err := openAssignments(ctx, tx, farm.ID, animal.ID)
		if err != nil {
			return Move{}, err
		}
		m := Move{Animal: animal, Target: &target}
		if len(open) > 0 {
			m.Opened = &open[len(open)-1]
		}
		return m, nil
	}

	var warnings []models.Warning
	if target.AtCapacity() {
		if farm.CapacityPolicy == models.CapacityHard {
			return Move{}, fmt.Errorf("%w: %s holds %d/%d", models.ErrCapacityExceeded, target.Label, target.Occupancy, target.Capacity)
		}
		warnings = append(warnings, models.Warning{
			Code:    models.WarningCapacity,
			Message: fmt.Sprintf("housing %s is over capacity: %d/%d occupants after move", target.Label, target.Occupancy+1, target.Capacity),
		})
	}

	m, err := move(ctx, tx, animal, &target, purpose, notes, at)
	if err != nil {
		return Move{}, err
	}
	m.Warnings = warnings
	return m, nil
}

// Release takes animal out of its housing as of releaseDate, which may lie in
// the past (date of death or sale). The closed record never ends before it started.
// Unlike a move, a release dated before the open stay is clamped rather than refused.
func Release(ctx context.Context, tx repository.Tx, animal models.Animal, releaseDate time.Time) (Move, error) {
	return move(ctx, tx, animal, nil, "", "", releaseDate)
}

func move(ctx context.Context, tx repository.Tx, animal models.Animal, target *models.HousingUnit, purpose models.AssignmentPurpose, notes string, at time.Time) (Move, error) {
	m := Move{Changed: true}

	open, err := openAssignments(ctx, tx, animal.FarmID, animal.ID)
	if err != nil {
		return Move{}, err
	}
	if target != nil {
		// A move may not reach back before the stay it ends. A same-day move
		// dated earlier than that stay's start time starts where it ended.
		for _, a := range open {
			if models.Day(at).Before(models.Day(a.Start)) {
				return Move{}, models.Validationf("move date %s is before the current assignment started on %s",
					at.Format(models.DateLayout), a.Start.Format(models.DateLayout))
			}
			if at.Before(a.Start) {
				at = a.Start
			}
		}
	}
	for _, a := range open {
		end := at
		if end.Before(a.Start) {
			end = a.Start
		}
		a.End = &end
		if err := tx.PutAssignment(ctx, a); err != nil {
			return Move{}, fmt.Errorf("close assignment %s: %w", a.ID, err)
		}
		m.Closed = append(m.Closed, a)
	}

	if sourceID := animal.CurrentHousing(); sourceID != "" {
		source, err := tx.GetHousing(ctx, animal.FarmID, sourceID)
		switch {
		case err == nil:
			if source.Occupancy > 0 {
				source.Occupancy--
			}
			source.UpdatedAt = at
			if err := tx.PutHousing(ctx, source); err != nil {
				return Move{}, fmt.Errorf("update source housing: %w", err)
			}
			m.Source = &source
		case !isNotFound(err):
			return Move{}, err
		}
	}

	if target != nil {
		target.Occupancy++
		target.UpdatedAt = at
		if err := tx.PutHousing(ctx, *target); err != nil {
			return Move{}, fmt.Errorf("update target housing: %w", err)
		}
		record := models.HousingAssignment{
			ID:        uuid.NewString(),
			FarmID:    animal.FarmID,
			AnimalID:  animal.ID,
			HousingID: target.ID,
			Start:     at,
			Purpose:   purpose,
			Notes:     notes,
		}
		if err := tx.PutAssignment(ctx, record); err != nil {
			return Move{}, fmt.Errorf("open assignment: %w", err)
		}
		m.Opened = &record
		m.Target = target

		id := target.ID
		animal.HousingID = &id
	} else {
		animal.HousingID = nil
	}

	animal.UpdatedAt = at
	if err := tx.PutAnimal(ctx, animal); err != nil {
		return Move{}, fmt.Errorf("update animal: %w", err)
	}
	m.Animal = animal
	return m, nil
}

func openAssignments(ctx context.Context, v repository.View, farmID, animalID string) ([]models.HousingAssignment, error) {
	history, err := v.ListAssignments(ctx, farmID, animalID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	var open []models.HousingAssignment
	for _, a := range history {
		if a.Open() {
			open = append(open, a)
		}
	}
	return open, nil
}

// Correction reports an occupancy counter fixed by Reconcile.
type Correction struct {
	HousingID string `json:"housing_id"`
	Label     string `json:"label"`
	Recorded  int    `json:"recorded"`
	Actual    int    `json:"actual"`
}

// Reconcile recomputes every unit's occupancy from the animals that reference it.
func Reconcile(ctx context.Context, tx repository.Tx, farmID string, at time.Time) ([]Correction, error) {
	animals, err := tx.ListAnimals(ctx, farmID, repository.AnimalFilter{})
	if err != nil {
		return nil, err
	}
	actual := make(map[string]int)
	for _, a := range animals {
		if a.Housed() {
			actual[a.CurrentHousing()]++
		}
	}

	units, err := tx.ListHousing(ctx, farmID)
	if err != nil {
		return nil, err
	}
	var corrections []Correction
	for _, u := range units {
		if u.Occupancy == actual[u.ID] {
			continue
		}
		corrections = append(corrections, Correction{HousingID: u.ID, Label: u.Label, Recorded: u.Occupancy, Actual: actual[u.ID]})
		u.Occupancy = actual[u.ID]
		u.UpdatedAt = at
		if err := tx.PutHousing(ctx, u); err != nil {
			return nil, err
		}
	}
	return corrections, nil
}
