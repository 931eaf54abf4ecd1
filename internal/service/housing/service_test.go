package housing

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/observability"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/memory"
	"github.com/mamadbah2/rabbitry/internal/repository/storetest"
)

const owner = "owner-1"

func newTestService(t *testing.T) (*Service, *memory.Store, models.Farm) {
	t.Helper()
	store := memory.New()
	farm := storetest.Seed(t, store, "farm-1", owner)
	svc := NewService(store, observability.NewMetrics(), nil)
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, store, farm
}

func putAnimals(t *testing.T, store repository.Store, farmID string, tags ...string) []models.Animal {
	t.Helper()
	var out []models.Animal
	require.NoError(t, store.RunInTransaction(context.Background(), func(tx repository.Tx) error {
		for _, tag := range tags {
			a := models.Animal{ID: "id-" + tag, FarmID: farmID, Tag: tag, Sex: models.SexFemale, Status: models.StatusActive}
			if err := tx.PutAnimal(context.Background(), a); err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	}))
	return out
}

func assertLedgerConsistent(t *testing.T, store repository.Store, farmID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.View(ctx, func(v repository.View) error {
		animals, err := v.ListAnimals(ctx, farmID, repository.AnimalFilter{})
		require.NoError(t, err)
		units, err := v.ListHousing(ctx, farmID)
		require.NoError(t, err)

		housed := map[string]int{}
		for _, a := range animals {
			history, err := v.ListAssignments(ctx, farmID, a.ID)
			require.NoError(t, err)
			var open []models.HousingAssignment
			for _, h := range history {
				if h.Open() {
					open = append(open, h)
				}
				if h.End != nil {
					assert.False(t, h.End.Before(h.Start), "assignment %s ends before it starts", h.ID)
				}
			}
			if a.Housed() {
				housed[a.CurrentHousing()]++
				require.Len(t, open, 1, "animal %s", a.Tag)
				assert.Equal(t, a.CurrentHousing(), open[0].HousingID)
			} else {
				assert.Empty(t, open, "animal %s", a.Tag)
			}
		}
		for _, u := range units {
			assert.Equal(t, housed[u.ID], u.Occupancy, "unit %s", u.Label)
			assert.GreaterOrEqual(t, u.Occupancy, 0)
		}
		return nil
	}))
}

func TestCreateUnitValidation(t *testing.T) {
	svc, _, farm := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 0})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: " ", Capacity: 2})
	assert.ErrorIs(t, err, models.ErrValidation)

	unit, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 2, Accessories: []string{"drinker"}})
	require.NoError(t, err)
	assert.Equal(t, 0, unit.Occupancy)

	_, err = svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "h1", Capacity: 2})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.CreateUnit(ctx, "stranger", farm.ID, UnitInput{Label: "H2", Capacity: 2})
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	units, err := svc.ListUnits(ctx, owner, farm.ID)
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestMoveBetweenUnits(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	h1, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 4})
	require.NoError(t, err)
	h2, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H2", Capacity: 4})
	require.NoError(t, err)
	r1 := putAnimals(t, store, farm.ID, "R1")[0]

	first, err := svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, 1, first.Target.Occupancy)

	second, err := svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: "H2", Purpose: models.PurposeMating})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Source.Occupancy)
	assert.Equal(t, 1, second.Target.Occupancy)
	assert.Equal(t, h2.ID, second.Animal.CurrentHousing())
	require.Len(t, second.Closed, 1)
	assert.Equal(t, h1.ID, second.Closed[0].HousingID)

	history, err := svc.History(ctx, owner, farm.ID, r1.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, h1.ID, history[0].HousingID)
	assert.NotNil(t, history[0].End)
	assert.Equal(t, h2.ID, history[1].HousingID)
	assert.Nil(t, history[1].End)
	assert.Equal(t, models.PurposeMating, history[1].Purpose)

	assertLedgerConsistent(t, store, farm.ID)
}

func TestAssignSameUnitIsNoop(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	h1, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 1})
	require.NoError(t, err)
	r1 := putAnimals(t, store, farm.ID, "R1")[0]

	_, err = svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)
	again, err := svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Empty(t, again.Warnings)

	history, err := svc.History(ctx, owner, farm.ID, r1.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	units, err := svc.ListUnits(ctx, owner, farm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, units[0].Occupancy)
}

func TestCapacityPolicy(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	h1, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 1})
	require.NoError(t, err)
	animals := putAnimals(t, store, farm.ID, "R1", "R2", "R3")

	_, err = svc.AssignAnimal(ctx, owner, farm.ID, animals[0].ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)

	soft, err := svc.AssignAnimal(ctx, owner, farm.ID, animals[1].ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)
	require.Len(t, soft.Warnings, 1)
	assert.Equal(t, models.WarningCapacity, soft.Warnings[0].Code)
	assert.Equal(t, 2, soft.Target.Occupancy)

	farm.CapacityPolicy = models.CapacityHard
	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error { return tx.PutFarm(ctx, farm) }))

	_, err = svc.AssignAnimal(ctx, owner, farm.ID, animals[2].ID, AssignInput{HousingID: h1.ID})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.ErrorIs(t, err, models.ErrValidation)

	assertLedgerConsistent(t, store, farm.ID)
}

func TestAssignUnknownUnit(t *testing.T) {
	svc, store, farm := newTestService(t)
	r1 := putAnimals(t, store, farm.ID, "R1")[0]

	_, err := svc.AssignAnimal(context.Background(), owner, farm.ID, r1.ID, AssignInput{HousingID: "nope"})
	assert.ErrorIs(t, err, models.ErrHousingNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReleaseClampsToStart(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	h1, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 2})
	require.NoError(t, err)
	r1 := putAnimals(t, store, farm.ID, "R1")[0]

	_, err = svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h1.ID, Date: "2024-02-10"})
	require.NoError(t, err)
	released, err := svc.ReleaseAnimal(ctx, owner, farm.ID, r1.ID, "2024-02-01")
	require.NoError(t, err)
	require.Len(t, released.Closed, 1)
	assert.Equal(t, released.Closed[0].Start, *released.Closed[0].End)
	assert.False(t, released.Animal.Housed())
	assert.Equal(t, 0, released.Source.Occupancy)

	assertLedgerConsistent(t, store, farm.ID)
}

func TestMoveCannotPrecedeCurrentStay(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	h1, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 2})
	require.NoError(t, err)
	h2, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H2", Capacity: 2})
	require.NoError(t, err)
	r1 := putAnimals(t, store, farm.ID, "R1")[0]

	first, err := svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)

	_, err = svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h2.ID, Date: "2024-02-01"})
	assert.ErrorIs(t, err, models.ErrValidation)

	// Same day as the open stay but dated at midnight: the new stay starts where the old one ended.
	moved, err := svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h2.ID, Date: "2024-03-01"})
	require.NoError(t, err)
	require.NotNil(t, moved.Opened)
	assert.Equal(t, first.Opened.Start, moved.Opened.Start)

	history, err := svc.History(ctx, owner, farm.ID, r1.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, h1.ID, history[0].HousingID)
	require.NotNil(t, history[0].End)
	assert.False(t, history[0].End.After(history[1].Start))
	assert.True(t, history[1].Open())

	assertLedgerConsistent(t, store, farm.ID)
}

func TestReconcileFixesDrift(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	h1, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: "H1", Capacity: 3})
	require.NoError(t, err)
	r1 := putAnimals(t, store, farm.ID, "R1")[0]
	_, err = svc.AssignAnimal(ctx, owner, farm.ID, r1.ID, AssignInput{HousingID: h1.ID})
	require.NoError(t, err)

	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		u, err := tx.GetHousing(ctx, farm.ID, h1.ID)
		if err != nil {
			return err
		}
		u.Occupancy = 3
		return tx.PutHousing(ctx, u)
	}))

	corrections, err := svc.Reconcile(ctx, owner, farm.ID)
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	assert.Equal(t, 3, corrections[0].Recorded)
	assert.Equal(t, 1, corrections[0].Actual)

	corrections, err = svc.Reconcile(ctx, owner, farm.ID)
	require.NoError(t, err)
	assert.Empty(t, corrections)
	assertLedgerConsistent(t, store, farm.ID)
}

func TestRandomMovesKeepLedgerConsistent(t *testing.T) {
	svc, store, farm := newTestService(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var unitIDs []string
	for i := 0; i < 4; i++ {
		u, err := svc.CreateUnit(ctx, owner, farm.ID, UnitInput{Label: fmt.Sprintf("H%d", i), Capacity: 1 + rng.Intn(3)})
		require.NoError(t, err)
		unitIDs = append(unitIDs, u.ID)
	}
	animals := putAnimals(t, store, farm.ID, "R1", "R2", "R3", "R4", "R5", "R6")

	for step := 0; step < 300; step++ {
		a := animals[rng.Intn(len(animals))]
		if rng.Intn(4) == 0 {
			_, err := svc.ReleaseAnimal(ctx, owner, farm.ID, a.ID, "")
			require.NoError(t, err)
			continue
		}
		_, err := svc.AssignAnimal(ctx, owner, farm.ID, a.ID, AssignInput{HousingID: unitIDs[rng.Intn(len(unitIDs))]})
		require.NoError(t, err)
	}
	assertLedgerConsistent(t, store, farm.ID)
}
