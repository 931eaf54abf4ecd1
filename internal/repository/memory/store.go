// Package memory provides an in-memory Store used for demo mode, tests and as
// the working set of the sqlite backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps all farms in process memory. Transactions run against a clone of
// the state which replaces the live state only when fn succeeds.
type Store struct {
	mu       sync.RWMutex
	state    state
	onCommit func(Snapshot) error
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// OnCommit registers a hook that receives the state about to be committed. A
// hook error aborts the commit.
func (s *Store) OnCommit(fn func(Snapshot) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// View runs fn against the live state under a read lock.
func (s *Store) View(_ context.Context, fn func(repository.View) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&reader{st: &s.state})
}

// RunInTransaction runs fn against a cloned state and swaps it in on success.
func (s *Store) RunInTransaction(_ context.Context, fn func(repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{reader: reader{st: &working}}); err != nil {
		return err
	}

	if s.onCommit != nil {
		if err := s.onCommit(snapshotOf(working)); err != nil {
			return fmt.Errorf("commit hook: %w", err)
		}
	}
	s.state = working
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// Export returns a copy of the whole state.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.state)
}

// Import replaces the whole state.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateOf(snap)
}

type reader struct {
	st *state
}

func (r *reader) ListFarms(context.Context) ([]models.Farm, error) {
	out := make([]models.Farm, 0, len(r.st.farms))
	for _, f := range r.st.farms {
		out = append(out, cloneFarm(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) GetFarm(_ context.Context, farmID string) (models.Farm, error) {
	f, ok := r.st.farms[farmID]
	if !ok {
		return models.Farm{}, fmt.Errorf("farm %s: %w", farmID, models.ErrNotFound)
	}
	return cloneFarm(f), nil
}

func (r *reader) GetAnimal(_ context.Context, farmID, animalID string) (models.Animal, error) {
	a, ok := r.st.animals[animalID]
	if !ok || a.FarmID != farmID {
		return models.Animal{}, fmt.Errorf("animal %s: %w", animalID, models.ErrNotFound)
	}
	return cloneAnimal(a), nil
}

func (r *reader) FindAnimalByTag(_ context.Context, farmID, tag string) (models.Animal, error) {
	tag = strings.TrimSpace(tag)
	for _, a := range r.st.animals {
		if a.FarmID == farmID && a.Tag == tag {
			return cloneAnimal(a), nil
		}
	}
	return models.Animal{}, fmt.Errorf("animal tag %s: %w", tag, models.ErrNotFound)
}

func (r *reader) ListAnimals(_ context.Context, farmID string, filter repository.AnimalFilter) ([]models.Animal, error) {
	var out []models.Animal
	for _, a := range r.st.animals {
		if a.FarmID == farmID && filter.Match(a) {
			out = append(out, cloneAnimal(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (r *reader) GetHousing(_ context.Context, farmID, housingID string) (models.HousingUnit, error) {
	h, ok := r.st.housing[housingID]
	if !ok || h.FarmID != farmID {
		return models.HousingUnit{}, fmt.Errorf("%s: %w", housingID, models.ErrHousingNotFound)
	}
	return cloneHousing(h), nil
}

func (r *reader) ListHousing(_ context.Context, farmID string) ([]models.HousingUnit, error) {
	var out []models.HousingUnit
	for _, h := range r.st.housing {
		if h.FarmID == farmID {
			out = append(out, cloneHousing(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r *reader) ListAssignments(_ context.Context, farmID, animalID string) ([]models.HousingAssignment, error) {
	var out []models.HousingAssignment
	for _, a := range r.st.assignments {
		if a.FarmID != farmID || (animalID != "" && a.AnimalID != animalID) {
			continue
		}
		out = append(out, cloneAssignment(a))
	}
	repository.SortAssignments(out)
	return out, nil
}

func (r *reader) GetMating(_ context.Context, farmID, matingID string) (models.MatingRecord, error) {
	m, ok := r.st.matings[matingID]
	if !ok || m.FarmID != farmID {
		return models.MatingRecord{}, fmt.Errorf("mating %s: %w", matingID, models.ErrNotFound)
	}
	return cloneMating(m), nil
}

func (r *reader) ListMatings(_ context.Context, farmID string) ([]models.MatingRecord, error) {
	var out []models.MatingRecord
	for _, m := range r.st.matings {
		if m.FarmID == farmID {
			out = append(out, cloneMating(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatingDate.Equal(out[j].MatingDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].MatingDate.Before(out[j].MatingDate)
	})
	return out, nil
}

func (r *reader) ListTransactions(_ context.Context, farmID string, period repository.Period) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range r.st.transactions {
		if t.FarmID == farmID && period.Contains(t.Date) {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (r *reader) ListMedicalRecords(_ context.Context, farmID, animalID string) ([]models.MedicalRecord, error) {
	var out []models.MedicalRecord
	for _, m := range r.st.medical {
		if m.FarmID == farmID && (animalID == "" || m.AnimalID == animalID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *reader) ListNotifications(_ context.Context, farmID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.st.notifications {
		if n.FarmID == farmID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].Key < out[j].Key
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

type tx struct {
	reader
}

func (t *tx) PutFarm(_ context.Context, farm models.Farm) error {
	if farm.ID == "" {
		return fmt.Errorf("put farm: empty id")
	}
	t.st.farms[farm.ID] = cloneFarm(farm)
	return nil
}

func (t *tx) PutAnimal(_ context.Context, animal models.Animal) error {
	if animal.ID == "" {
		return fmt.Errorf("put animal: empty id")
	}
	for id, other := range t.st.animals {
		if id != animal.ID && other.FarmID == animal.FarmID && other.Tag == animal.Tag {
			return fmt.Errorf("put animal %s: %w", animal.Tag, models.ErrDuplicateTag)
		}
	}
	t.st.animals[animal.ID] = cloneAnimal(animal)
	return nil
}

func (t *tx) PutHousing(_ context.Context, unit models.HousingUnit) error {
	if unit.ID == "" {
		return fmt.Errorf("put housing: empty id")
	}
	t.st.housing[unit.ID] = cloneHousing(unit)
	return nil
}

func (t *tx) PutAssignment(_ context.Context, assignment models.HousingAssignment) error {
	if assignment.ID == "" {
		return fmt.Errorf("put assignment: empty id")
	}
	t.st.assignments[assignment.ID] = cloneAssignment(assignment)
	return nil
}

func (t *tx) PutMating(_ context.Context, record models.MatingRecord) error {
	if record.ID == "" {
		return fmt.Errorf("put mating: empty id")
	}
	t.st.matings[record.ID] = cloneMating(record)
	return nil
}

func (t *tx) PutTransaction(_ context.Context, txn models.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("put transaction: empty id")
	}
	t.st.transactions[txn.ID] = cloneTransaction(txn)
	return nil
}

func (t *tx) PutMedicalRecord(_ context.Context, record models.MedicalRecord) error {
	if record.ID == "" {
		return fmt.Errorf("put medical record: empty id")
	}
	t.st.medical[record.ID] = record
	return nil
}

func (t *tx) PutNotification(_ context.Context, n models.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("put notification: empty id")
	}
	t.st.notifications[n.ID] = n
	return nil
}

func (t *tx) NextSequence(_ context.Context, farmID, name string) (int64, error) {
	key := farmID + "/" + name
	t.st.sequences[key]++
	return t.st.sequences[key], nil
}
