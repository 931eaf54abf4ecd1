// Package storetest holds the behaviour every repository.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) repository.Store

var errRollback = errors.New("rollback")

// Run exercises the store contract against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("commit and read back", func(t *testing.T) { testCommit(t, newStore(t)) })
	t.Run("rollback discards writes", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("farm scoping", func(t *testing.T) { testScoping(t, newStore(t)) })
	t.Run("sequences", func(t *testing.T) { testSequences(t, newStore(t)) })
	t.Run("filters and periods", func(t *testing.T) { testFilters(t, newStore(t)) })
}

// Seed writes a farm owned by owner and returns it.
func Seed(t *testing.T, store repository.Store, farmID, owner string) models.Farm {
	t.Helper()
	farm := models.Farm{
		ID: farmID, OwnerID: owner, Name: "Farm " + farmID, Currency: "USD", Timezone: "UTC",
		GestationDays: 31, PalpationDays: 14, WeaningDays: 42, CapacityPolicy: models.CapacitySoft,
		Breeds: []models.Breed{{Name: "New Zealand White", Code: "NZW"}},
	}
	require.NoError(t, store.RunInTransaction(context.Background(), func(tx repository.Tx) error {
		return tx.PutFarm(context.Background(), farm)
	}))
	return farm
}

func testCommit(t *testing.T, store repository.Store) {
	ctx := context.Background()
	Seed(t, store, "f1", "owner")
	hid := "h1"
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	err := store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.PutHousing(ctx, models.HousingUnit{ID: hid, FarmID: "f1", Label: "A1", Capacity: 2, Occupancy: 1, Accessories: []string{"feeder"}}); err != nil {
			return err
		}
		if err := tx.PutAnimal(ctx, models.Animal{ID: "a1", FarmID: "f1", Tag: "R1", Sex: models.SexFemale, Status: models.StatusActive, HousingID: &hid}); err != nil {
			return err
		}
		if err := tx.PutAssignment(ctx, models.HousingAssignment{ID: "as1", FarmID: "f1", AnimalID: "a1", HousingID: hid, Start: end.AddDate(0, 0, -2), End: &end, Purpose: models.PurposeHousing}); err != nil {
			return err
		}
		return tx.PutAssignment(ctx, models.HousingAssignment{ID: "as2", FarmID: "f1", AnimalID: "a1", HousingID: hid, Start: end, Purpose: models.PurposeHousing})
	})
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(v repository.View) error {
		a, err := v.FindAnimalByTag(ctx, "f1", "R1")
		require.NoError(t, err)
		assert.Equal(t, "a1", a.ID)
		assert.Equal(t, hid, a.CurrentHousing())

		h, err := v.GetHousing(ctx, "f1", hid)
		require.NoError(t, err)
		assert.Equal(t, 1, h.Occupancy)
		assert.Equal(t, []string{"feeder"}, h.Accessories)

		history, err := v.ListAssignments(ctx, "f1", "a1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "as1", history[0].ID)
		assert.False(t, history[0].Open())
		assert.True(t, history[1].Open())
		return nil
	}))
}

func testRollback(t *testing.T, store repository.Store) {
	ctx := context.Background()
	Seed(t, store, "f1", "owner")

	err := store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.PutAnimal(ctx, models.Animal{ID: "a1", FarmID: "f1", Tag: "R1", Status: models.StatusActive}); err != nil {
			return err
		}
		if _, err := tx.NextSequence(ctx, "f1", repository.SequenceAnimalTag); err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	require.NoError(t, store.View(ctx, func(v repository.View) error {
		_, err := v.GetAnimal(ctx, "f1", "a1")
		assert.ErrorIs(t, err, models.ErrNotFound)
		return nil
	}))

	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		seq, err := tx.NextSequence(ctx, "f1", repository.SequenceAnimalTag)
		require.NoError(t, err)
		assert.Equal(t, int64(1), seq)
		return nil
	}))
}

func testScoping(t *testing.T, store repository.Store) {
	ctx := context.Background()
	Seed(t, store, "f1", "owner")
	Seed(t, store, "f2", "other")

	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.PutAnimal(ctx, models.Animal{ID: "a1", FarmID: "f1", Tag: "R1", Status: models.StatusActive}); err != nil {
			return err
		}
		return tx.PutHousing(ctx, models.HousingUnit{ID: "h1", FarmID: "f1", Label: "A", Capacity: 1})
	}))

	require.NoError(t, store.View(ctx, func(v repository.View) error {
		_, err := v.GetAnimal(ctx, "f2", "a1")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = v.FindAnimalByTag(ctx, "f2", "R1")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = v.GetHousing(ctx, "f2", "h1")
		assert.ErrorIs(t, err, models.ErrHousingNotFound)

		farms, err := v.ListFarms(ctx)
		require.NoError(t, err)
		assert.Len(t, farms, 2)
		return nil
	}))
}

func testSequences(t *testing.T, store repository.Store) {
	ctx := context.Background()
	Seed(t, store, "f1", "owner")

	var got []int64
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
			seq, err := tx.NextSequence(ctx, "f1", repository.SequenceAnimalTag)
			got = append(got, seq)
			return err
		}))
	}
	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		seq, err := tx.NextSequence(ctx, "f2", repository.SequenceAnimalTag)
		got = append(got, seq)
		return err
	}))
	assert.Equal(t, []int64{1, 2, 3, 1}, got)
}

func testFilters(t *testing.T, store repository.Store) {
	ctx := context.Background()
	Seed(t, store, "f1", "owner")
	hid := "h1"
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		for _, a := range []models.Animal{
			{ID: "a1", FarmID: "f1", Tag: "R1", Status: models.StatusActive, HousingID: &hid},
			{ID: "a2", FarmID: "f1", Tag: "R2", Status: models.StatusSold},
			{ID: "a3", FarmID: "f1", Tag: "R3", Status: models.StatusPregnant},
		} {
			if err := tx.PutAnimal(ctx, a); err != nil {
				return err
			}
		}
		if err := tx.PutTransaction(ctx, models.Transaction{ID: "t1", FarmID: "f1", Type: models.TransactionIncome, Amount: 10, Date: jan}); err != nil {
			return err
		}
		return tx.PutTransaction(ctx, models.Transaction{ID: "t2", FarmID: "f1", Type: models.TransactionExpense, Amount: 4, Date: feb})
	}))

	require.NoError(t, store.View(ctx, func(v repository.View) error {
		live, err := v.ListAnimals(ctx, "f1", repository.AnimalFilter{LiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, live, 2)

		housed, err := v.ListAnimals(ctx, "f1", repository.AnimalFilter{HousingID: hid})
		require.NoError(t, err)
		require.Len(t, housed, 1)
		assert.Equal(t, "R1", housed[0].Tag)

		pregnant, err := v.ListAnimals(ctx, "f1", repository.AnimalFilter{Status: models.StatusPregnant})
		require.NoError(t, err)
		require.Len(t, pregnant, 1)

		txns, err := v.ListTransactions(ctx, "f1", repository.Period{From: jan.AddDate(0, 0, 1)})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "t2", txns[0].ID)
		return nil
	}))
}
