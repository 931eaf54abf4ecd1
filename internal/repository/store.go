// Package repository defines the storage contract shared by the memory, sqlite
// and mongodb backends. Every multi-record mutation runs inside RunInTransaction.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

// SequenceAnimalTag names the per-farm counter used for generated tags.
const SequenceAnimalTag = "animal_tag"

// AnimalFilter narrows ListAnimals. Zero values match everything.
type AnimalFilter struct {
	Status    models.AnimalStatus
	HousingID string
	LiveOnly  bool
}

// Match reports whether a satisfies the filter.
func (f AnimalFilter) Match(a models.Animal) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.HousingID != "" && a.CurrentHousing() != f.HousingID {
		return false
	}
	if f.LiveOnly && a.Status.Terminal() {
		return false
	}
	return true
}

// Period bounds transaction queries. Zero times leave the side open.
type Period struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the period, bounds inclusive.
func (p Period) Contains(t time.Time) bool {
	if !p.From.IsZero() && t.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && t.After(p.To) {
		return false
	}
	return true
}

// SortAssignments orders an animal's history by start. At the same instant a
// closed record comes before the open one that replaced it.
func SortAssignments(list []models.HousingAssignment) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Open() != b.Open() {
			return !a.Open()
		}
		if !a.Open() && !a.End.Equal(*b.End) {
			return a.End.Before(*b.End)
		}
		return a.ID < b.ID
	})
}

// View is the read side of a store. Missing records return errors wrapping models.ErrNotFound.
type View interface {
	ListFarms(ctx context.Context) ([]models.Farm, error)
	GetFarm(ctx context.Context, farmID string) (models.Farm, error)

	GetAnimal(ctx context.Context, farmID, animalID string) (models.Animal, error)
	FindAnimalByTag(ctx context.Context, farmID, tag string) (models.Animal, error)
	ListAnimals(ctx context.Context, farmID string, filter AnimalFilter) ([]models.Animal, error)

	GetHousing(ctx context.Context, farmID, housingID string) (models.HousingUnit, error)
	ListHousing(ctx context.Context, farmID string) ([]models.HousingUnit, error)
	// ListAssignments returns the history of one animal, or of the whole farm when animalID is empty.
	ListAssignments(ctx context.Context, farmID, animalID string) ([]models.HousingAssignment, error)

	GetMating(ctx context.Context, farmID, matingID string) (models.MatingRecord, error)
	ListMatings(ctx context.Context, farmID string) ([]models.MatingRecord, error)

	ListTransactions(ctx context.Context, farmID string, period Period) ([]models.Transaction, error)
	ListMedicalRecords(ctx context.Context, farmID, animalID string) ([]models.MedicalRecord, error)
	ListNotifications(ctx context.Context, farmID string) ([]models.Notification, error)
}

// Tx is a unit of work. Writes are upserts keyed by record ID.
type Tx interface {
	View

	PutFarm(ctx context.Context, farm models.Farm) error
	PutAnimal(ctx context.Context, animal models.Animal) error
	PutHousing(ctx context.Context, unit models.HousingUnit) error
	PutAssignment(ctx context.Context, assignment models.HousingAssignment) error
	PutMating(ctx context.Context, record models.MatingRecord) error
	PutTransaction(ctx context.Context, txn models.Transaction) error
	PutMedicalRecord(ctx context.Context, record models.MedicalRecord) error
	PutNotification(ctx context.Context, n models.Notification) error

	// NextSequence atomically increments and returns the named per-farm counter, starting at 1.
	NextSequence(ctx context.Context, farmID, name string) (int64, error)
}

// Store is implemented by every backend.
type Store interface {
	View(ctx context.Context, fn func(View) error) error
	// RunInTransaction commits every write made by fn, or none of them when fn returns an error.
	RunInTransaction(ctx context.Context, fn func(Tx) error) error
	Close(ctx context.Context) error
}
