package reporting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/memory"
	"github.com/mamadbah2/rabbitry/internal/repository/storetest"
)

const owner = "owner-1"

func seedFarm(t *testing.T) (*Service, *memory.Store, models.Farm) {
	t.Helper()
	store := memory.New()
	farm := storetest.Seed(t, store, "farm-1", owner)
	ctx := context.Background()
	h1 := "h1"
	died := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		puts := []error{
			tx.PutHousing(ctx, models.HousingUnit{ID: h1, FarmID: farm.ID, Label: "H1", Capacity: 1, Occupancy: 1}),
			tx.PutHousing(ctx, models.HousingUnit{ID: "h2", FarmID: farm.ID, Label: "H2", Capacity: 4}),
			tx.PutAnimal(ctx, models.Animal{ID: "a1", FarmID: farm.ID, Tag: "D1", Sex: models.SexFemale, Status: models.StatusPregnant, HousingID: &h1}),
			tx.PutAnimal(ctx, models.Animal{ID: "a2", FarmID: farm.ID, Tag: "S1", Sex: models.SexMale, Status: models.StatusActive}),
			tx.PutAnimal(ctx, models.Animal{ID: "a3", FarmID: farm.ID, Tag: "S2", Sex: models.SexMale, Status: models.StatusDeceasedNatural, StatusDate: &died}),
			tx.PutAssignment(ctx, models.HousingAssignment{ID: "as1", FarmID: farm.ID, AnimalID: "a1", HousingID: h1, Start: died}),
			tx.PutMating(ctx, models.MatingRecord{
				ID: "m1", FarmID: farm.ID, DoeID: "a1", DoeTag: "D1", BuckID: "a2", BuckTag: "S1", Status: models.MatingPregnant,
				MatingDate: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), ExpectedDeliveryDate: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
			}),
			tx.PutTransaction(ctx, models.Transaction{ID: "t1", FarmID: farm.ID, Type: models.TransactionIncome, Category: models.CategorySale, Amount: 80, Date: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)}),
			tx.PutTransaction(ctx, models.Transaction{ID: "t2", FarmID: farm.ID, Type: models.TransactionExpense, Category: "Feed", Amount: 30, Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}),
			tx.PutTransaction(ctx, models.Transaction{ID: "t3", FarmID: farm.ID, Type: models.TransactionExpense, Category: "Feed", Amount: 99, Date: time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)}),
			tx.PutMedicalRecord(ctx, models.MedicalRecord{ID: "med1", FarmID: farm.ID, AnimalID: "a1", AnimalTag: "D1", Kind: models.MedicalCheckup, Description: "ok"}),
		}
		for _, err := range puts {
			if err != nil {
				return err
			}
		}
		return nil
	}))

	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC) }
	return svc, store, farm
}

func TestSummary(t *testing.T) {
	svc, _, farm := seedFarm(t)

	summary, err := svc.Summary(context.Background(), owner, farm.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LiveAnimals)
	assert.Equal(t, 1, summary.HousedAnimals)
	assert.Equal(t, 1, summary.AnimalsByStatus[string(models.StatusPregnant)])
	assert.Equal(t, 5, summary.TotalCapacity)
	assert.Equal(t, 1, summary.TotalOccupancy)
	assert.Equal(t, []string{"H1"}, summary.FullUnits)
	assert.Equal(t, 1, summary.PregnantMatings)
	assert.Equal(t, 1, summary.RecentDeaths)
	assert.InDelta(t, 33.33, summary.MortalityRate, 1e-9)
	assert.InDelta(t, 80, summary.Finance.Income, 1e-9)
	assert.InDelta(t, 30, summary.Finance.Expense, 1e-9)
	require.Len(t, summary.Upcoming, 1)
	assert.Equal(t, models.NotifyDeliveryDue, summary.Upcoming[0].Kind)

	text := SummaryText(summary)
	assert.Contains(t, text, "2 live animals")
	assert.Contains(t, text, "Full: H1.")
	assert.Contains(t, text, "net 50.00 USD")
	assert.Contains(t, text, "2024-03-12")

	_, err = svc.Summary(context.Background(), "stranger", farm.ID)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestExport(t *testing.T) {
	svc, _, farm := seedFarm(t)

	export, err := svc.Export(context.Background(), owner, farm.ID)
	require.NoError(t, err)
	assert.Len(t, export.Animals, 3)
	assert.Len(t, export.HousingUnits, 2)
	assert.Len(t, export.HousingAssignments, 1)
	assert.Len(t, export.MatingRecords, 1)
	assert.Len(t, export.Transactions, 3)
	assert.Len(t, export.MedicalRecords, 1)

	raw, err := json.Marshal(export)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"farm", "animals", "housing_units", "housing_assignments", "mating_records", "transactions", "medical_records", "exported_at"} {
		assert.Contains(t, doc, key)
	}
}

func TestNotifications(t *testing.T) {
	svc, store, farm := seedFarm(t)
	ctx := context.Background()
	require.NoError(t, store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.PutNotification(ctx, models.Notification{ID: "n1", FarmID: farm.ID, Key: "k1", Kind: models.NotifyDeliveryDue}); err != nil {
			return err
		}
		return tx.PutNotification(ctx, models.Notification{ID: "n2", FarmID: farm.ID, Key: "k2", Kind: models.NotifyPalpationDue})
	}))

	read, err := svc.MarkNotificationRead(ctx, owner, farm.ID, "n1")
	require.NoError(t, err)
	assert.True(t, read.Read)

	unread, err := svc.ListNotifications(ctx, owner, farm.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n2", unread[0].ID)

	all, err := svc.ListNotifications(ctx, owner, farm.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.MarkNotificationRead(ctx, owner, farm.ID, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
