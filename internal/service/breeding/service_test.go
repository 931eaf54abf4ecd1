package breeding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/domain/rules"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/memory"
	"github.com/mamadbah2/rabbitry/internal/repository/storetest"
	"github.com/mamadbah2/rabbitry/internal/service/herd"
	"github.com/mamadbah2/rabbitry/internal/service/housing"
)

const owner = "owner-1"

type fixture struct {
	store    *memory.Store
	breeding *Service
	herd     *herd.Service
	housing  *housing.Service
	farm     models.Farm
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	farm := storetest.Seed(t, store, "farm-1", owner)
	housingSvc := housing.NewService(store, nil, nil)
	svc := NewService(store, housingSvc, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC) }
	return fixture{store: store, breeding: svc, herd: herd.NewService(store, housingSvc, nil, nil), housing: housingSvc, farm: farm}
}

func (f fixture) animal(t *testing.T, tag string, sex models.Sex, father, mother string) models.Animal {
	t.Helper()
	res, err := f.herd.Register(context.Background(), owner, f.farm.ID, herd.RegisterInput{
		Tag: tag, Breed: "NZW", Sex: sex, BirthDate: "2023-06-01", FatherTag: father, MotherTag: mother,
	})
	require.NoError(t, err)
	return res.Animal
}

func TestRecordMatingProjectsDates(t *testing.T) {
	f := newFixture(t)
	f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")

	res, err := f.breeding.RecordMating(context.Background(), owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-01-01"})
	require.NoError(t, err)

	assert.Equal(t, models.MatingPending, res.Record.Status)
	assert.Equal(t, "2024-01-15", res.Record.ExpectedPalpationDate.Format(models.DateLayout))
	assert.Equal(t, "2024-02-01", res.Record.ExpectedDeliveryDate.Format(models.DateLayout))
	assert.Equal(t, rules.NoRelationFound, res.Relation)
	assert.Empty(t, res.Warnings)
}

func TestRecordMatingWarnsOnRelatedPair(t *testing.T) {
	tests := []struct {
		name         string
		doeParents   [2]string
		buckParents  [2]string
		buckTag      string
		wantRelation rules.Relation
	}{
		{"full siblings", [2]string{"F1", "M1"}, [2]string{"F1", "M1"}, "S1", rules.FullSiblings},
		{"shared father", [2]string{"F1", "M1"}, [2]string{"F1", "M2"}, "S1", rules.SharedFather},
		{"shared mother", [2]string{"F1", "M1"}, [2]string{"F2", "M1"}, "S1", rules.SharedMother},
		{"sire of the doe", [2]string{"S1", "M1"}, [2]string{"", ""}, "S1", rules.ParentOffspring},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.animal(t, "D1", models.SexFemale, tt.doeParents[0], tt.doeParents[1])
			f.animal(t, tt.buckTag, models.SexMale, tt.buckParents[0], tt.buckParents[1])

			res, err := f.breeding.RecordMating(context.Background(), owner, f.farm.ID, MatingInput{Doe: "D1", Buck: tt.buckTag})
			require.NoError(t, err)
			assert.Equal(t, tt.wantRelation, res.Relation)
			assert.Equal(t, string(tt.wantRelation), res.Record.Relation)
			require.Len(t, res.Warnings, 1)
			assert.Equal(t, models.WarningInbreeding, res.Warnings[0].Code)
		})
	}
}

func TestRecordMatingRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "D2", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")
	dead := f.animal(t, "S2", models.SexMale, "", "")
	_, err := f.herd.RecordDeath(ctx, owner, f.farm.ID, dead.ID, herd.DeathInput{Cause: herd.CauseNatural})
	require.NoError(t, err)

	_, err = f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "S1", Buck: "D1"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "D2"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S2"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D9", Buck: "S1"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1"})
	require.NoError(t, err)
	_, err = f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestMatingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doe := f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")
	nest, err := f.housing.CreateUnit(ctx, owner, f.farm.ID, housing.UnitInput{Label: "NEST", Capacity: 3})
	require.NoError(t, err)

	mating, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-01-01"})
	require.NoError(t, err)
	id := mating.Record.ID

	_, err = f.breeding.RecordDelivery(ctx, owner, f.farm.ID, id, DeliveryInput{Born: 5, Live: 4})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	palpated, err := f.breeding.RecordPalpation(ctx, owner, f.farm.ID, id, PalpationInput{Positive: true, Date: "2024-01-15"})
	require.NoError(t, err)
	assert.Equal(t, models.MatingPregnant, palpated.Status)
	got, err := f.herd.Get(ctx, owner, f.farm.ID, doe.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPregnant, got.Status)

	_, err = f.breeding.RecordDelivery(ctx, owner, f.farm.ID, id, DeliveryInput{Born: 3, Live: 4})
	assert.ErrorIs(t, err, models.ErrValidation)

	delivered, err := f.breeding.RecordDelivery(ctx, owner, f.farm.ID, id, DeliveryInput{Date: "2024-02-01", Born: 5, Live: 4, KitHousing: "NEST"})
	require.NoError(t, err)
	assert.Equal(t, models.MatingDelivered, delivered.Record.Status)
	require.NotNil(t, delivered.Record.LitterLive)
	assert.Equal(t, 4, *delivered.Record.LitterLive)
	require.Len(t, delivered.Kits, 4)
	for i, kit := range delivered.Kits {
		assert.Equal(t, rules.GenerateTag("RB", "NZW", int64(i+1)), kit.Tag)
		assert.Equal(t, "D1", kit.MotherTag)
		assert.Equal(t, "S1", kit.FatherTag)
		assert.Equal(t, models.SexUnknown, kit.Sex)
		assert.Equal(t, nest.ID, kit.CurrentHousing())
		assert.Equal(t, "2024-02-01", kit.BirthDate.Format(models.DateLayout))
	}
	require.Len(t, delivered.Warnings, 1)
	assert.Equal(t, models.WarningCapacity, delivered.Warnings[0].Code)

	got, err = f.herd.Get(ctx, owner, f.farm.ID, doe.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	require.NoError(t, f.store.View(ctx, func(v repository.View) error {
		unit, err := v.GetHousing(ctx, f.farm.ID, nest.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, unit.Occupancy)
		return nil
	}))

	_, err = f.breeding.RecordPalpation(ctx, owner, f.farm.ID, id, PalpationInput{Positive: false})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestNegativePalpation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")
	mating, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-01-01"})
	require.NoError(t, err)

	failed, err := f.breeding.RecordPalpation(ctx, owner, f.farm.ID, mating.Record.ID, PalpationInput{Positive: false, Date: "2024-01-15"})
	require.NoError(t, err)
	assert.Equal(t, models.MatingFailed, failed.Status)

	pending, err := f.breeding.List(ctx, owner, f.farm.ID, models.MatingPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	again, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-01-16"})
	require.NoError(t, err)
	fetched, err := f.breeding.Get(ctx, owner, f.farm.ID, again.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, again.Record.ID, fetched.ID)
}

func TestUpcoming(t *testing.T) {
	farm := models.Farm{WeaningDays: 42}
	today := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)
	matings := []models.MatingRecord{
		{ID: "m1", DoeTag: "D1", BuckTag: "S1", Status: models.MatingPending, ExpectedPalpationDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{ID: "m2", DoeTag: "D2", BuckTag: "S1", Status: models.MatingPregnant, ExpectedDeliveryDate: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)},
		{ID: "m3", DoeTag: "D3", BuckTag: "S1", Status: models.MatingPending, ExpectedPalpationDate: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)},
		{ID: "m4", DoeTag: "D4", BuckTag: "S1", Status: models.MatingFailed, ExpectedPalpationDate: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)},
		{ID: "m5", DoeID: "d5", DoeTag: "D5", BuckTag: "S1", Status: models.MatingPending, ExpectedPalpationDate: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)},
	}
	animals := []models.Animal{
		{ID: "d5", Tag: "D5", Status: models.StatusSold, Source: models.SourceBorn, BirthDate: time.Date(2023, 12, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "k1", Tag: "K1", Status: models.StatusActive, Source: models.SourceBorn, BirthDate: time.Date(2023, 12, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "k2", Tag: "K2", Status: models.StatusActive, Source: models.SourcePurchased, BirthDate: time.Date(2023, 12, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "k3", Tag: "K3", Status: models.StatusWeaned, Source: models.SourceBorn, BirthDate: time.Date(2023, 12, 2, 0, 0, 0, 0, time.UTC)},
	}

	events := Upcoming(farm, matings, animals, today, 3)
	require.Len(t, events, 3)
	assert.Equal(t, models.NotifyDeliveryDue, events[0].Kind)
	assert.Equal(t, "m2", events[0].SubjectID)
	assert.Equal(t, models.NotifyWeaningDue, events[1].Kind)
	assert.Equal(t, "K1", events[1].SubjectTag)
	assert.Equal(t, models.NotifyPalpationDue, events[2].Kind)
	assert.Equal(t, "PalpationDue:m1:2024-01-15", events[2].Key())
}

func TestRecordPalpationRejectsFutureDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")
	_, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2099-01-01"})
	assert.ErrorIs(t, err, models.ErrValidation)

	mating, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-02-10"})
	require.NoError(t, err)

	_, err = f.breeding.RecordPalpation(ctx, owner, f.farm.ID, mating.Record.ID, PalpationInput{Positive: true, Date: "2024-03-02"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.breeding.RecordPalpation(ctx, owner, f.farm.ID, mating.Record.ID, PalpationInput{Positive: true, Date: "2024-03-01"})
	require.NoError(t, err)
	_, err = f.breeding.RecordDelivery(ctx, owner, f.farm.ID, mating.Record.ID, DeliveryInput{Date: "2024-04-01", Born: 2, Live: 2})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDeathClosesOpenMatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")
	mating, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-02-20"})
	require.NoError(t, err)

	events, err := f.breeding.UpcomingEvents(ctx, owner, f.farm.ID, 7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.NotifyPalpationDue, events[0].Kind)

	_, err = f.herd.RecordDeath(ctx, owner, f.farm.ID, "D1", herd.DeathInput{Cause: herd.CauseNatural, Date: "2024-02-25"})
	require.NoError(t, err)

	closed, err := f.breeding.Get(ctx, owner, f.farm.ID, mating.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatingFailed, closed.Status)
	assert.Contains(t, closed.Notes, string(models.StatusDeceasedNatural))

	_, err = f.breeding.RecordPalpation(ctx, owner, f.farm.ID, mating.Record.ID, PalpationInput{Positive: true, Date: "2024-02-28"})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	events, err = f.breeding.UpcomingEvents(ctx, owner, f.farm.ID, 7)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSaleClosesPregnancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.animal(t, "D1", models.SexFemale, "", "")
	f.animal(t, "S1", models.SexMale, "", "")
	mating, err := f.breeding.RecordMating(ctx, owner, f.farm.ID, MatingInput{Doe: "D1", Buck: "S1", Date: "2024-02-01"})
	require.NoError(t, err)
	_, err = f.breeding.RecordPalpation(ctx, owner, f.farm.ID, mating.Record.ID, PalpationInput{Positive: true, Date: "2024-02-15"})
	require.NoError(t, err)

	_, err = f.herd.SellAnimals(ctx, owner, f.farm.ID, herd.SaleInput{Animals: []string{"D1"}, Amount: 40, Buyer: "Market", Date: "2024-02-20"})
	require.NoError(t, err)

	pregnant, err := f.breeding.List(ctx, owner, f.farm.ID, models.MatingPregnant)
	require.NoError(t, err)
	assert.Empty(t, pregnant)

	_, err = f.breeding.RecordDelivery(ctx, owner, f.farm.ID, mating.Record.ID, DeliveryInput{Date: "2024-02-28", Born: 3, Live: 3})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestPalpationRejectsDepartedDoe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doe := f.animal(t, "D1", models.SexFemale, "", "")
	buck := f.animal(t, "S1", models.SexMale, "", "")

	// Records written before departing does had their matings closed.
	require.NoError(t, f.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		doe.Status = models.StatusSold
		if err := tx.PutAnimal(ctx, doe); err != nil {
			return err
		}
		return tx.PutMating(ctx, models.MatingRecord{
			ID: "m-open", FarmID: f.farm.ID, DoeID: doe.ID, DoeTag: doe.Tag, BuckID: buck.ID, BuckTag: buck.Tag,
			MatingDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Status: models.MatingPending,
		})
	}))

	_, err := f.breeding.RecordPalpation(ctx, owner, f.farm.ID, "m-open", PalpationInput{Positive: false, Date: "2024-02-15"})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
