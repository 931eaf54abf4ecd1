package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/storetest"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), path, nil)
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		s := openStore(t, filepath.Join(t.TempDir(), "farm.db"))
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	})
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "farm.db")

	s := openStore(t, path)
	storetest.Seed(t, s, "f1", "owner")
	hid := "h1"
	require.NoError(t, s.RunInTransaction(ctx, func(tx repository.Tx) error {
		if _, err := tx.NextSequence(ctx, "f1", repository.SequenceAnimalTag); err != nil {
			return err
		}
		if err := tx.PutHousing(ctx, models.HousingUnit{ID: hid, FarmID: "f1", Label: "A", Capacity: 3, Occupancy: 1}); err != nil {
			return err
		}
		return tx.PutAnimal(ctx, models.Animal{ID: "a1", FarmID: "f1", Tag: "RB-NZW-0001", Status: models.StatusActive, HousingID: &hid})
	}))
	require.NoError(t, s.Close(ctx))

	reopened := openStore(t, path)
	defer func() { _ = reopened.Close(ctx) }()

	require.NoError(t, reopened.View(ctx, func(v repository.View) error {
		farm, err := v.GetFarm(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "owner", farm.OwnerID)

		a, err := v.FindAnimalByTag(ctx, "f1", "RB-NZW-0001")
		require.NoError(t, err)
		assert.Equal(t, hid, a.CurrentHousing())
		return nil
	}))

	require.NoError(t, reopened.RunInTransaction(ctx, func(tx repository.Tx) error {
		seq, err := tx.NextSequence(ctx, "f1", repository.SequenceAnimalTag)
		assert.Equal(t, int64(2), seq)
		return err
	}))
}
