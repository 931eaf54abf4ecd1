package memory

import (
	"slices"
	"time"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

type state struct {
	farms         map[string]models.Farm
	animals       map[string]models.Animal
	housing       map[string]models.HousingUnit
	assignments   map[string]models.HousingAssignment
	matings       map[string]models.MatingRecord
	transactions  map[string]models.Transaction
	medical       map[string]models.MedicalRecord
	notifications map[string]models.Notification
	sequences     map[string]int64
}

// Snapshot is a serialisable copy of the store state.
type Snapshot struct {
	Farms         []models.Farm              `json:"farms"`
	Animals       []models.Animal            `json:"animals"`
	Housing       []models.HousingUnit       `json:"housing"`
	Assignments   []models.HousingAssignment `json:"assignments"`
	Matings       []models.MatingRecord      `json:"matings"`
	Transactions  []models.Transaction       `json:"transactions"`
	Medical       []models.MedicalRecord     `json:"medical"`
	Notifications []models.Notification      `json:"notifications"`
	Sequences     map[string]int64           `json:"sequences"`
}

func newState() state {
	return state{
		farms:         make(map[string]models.Farm),
		animals:       make(map[string]models.Animal),
		housing:       make(map[string]models.HousingUnit),
		assignments:   make(map[string]models.HousingAssignment),
		matings:       make(map[string]models.MatingRecord),
		transactions:  make(map[string]models.Transaction),
		medical:       make(map[string]models.MedicalRecord),
		notifications: make(map[string]models.Notification),
		sequences:     make(map[string]int64),
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.farms {
		out.farms[k] = cloneFarm(v)
	}
	for k, v := range s.animals {
		out.animals[k] = cloneAnimal(v)
	}
	for k, v := range s.housing {
		out.housing[k] = cloneHousing(v)
	}
	for k, v := range s.assignments {
		out.assignments[k] = cloneAssignment(v)
	}
	for k, v := range s.matings {
		out.matings[k] = cloneMating(v)
	}
	for k, v := range s.transactions {
		out.transactions[k] = cloneTransaction(v)
	}
	for k, v := range s.medical {
		out.medical[k] = v
	}
	for k, v := range s.notifications {
		out.notifications[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	return out
}

func snapshotOf(s state) Snapshot {
	snap := Snapshot{Sequences: make(map[string]int64, len(s.sequences))}
	for _, v := range s.farms {
		snap.Farms = append(snap.Farms, cloneFarm(v))
	}
	for _, v := range s.animals {
		snap.Animals = append(snap.Animals, cloneAnimal(v))
	}
	for _, v := range s.housing {
		snap.Housing = append(snap.Housing, cloneHousing(v))
	}
	for _, v := range s.assignments {
		snap.Assignments = append(snap.Assignments, cloneAssignment(v))
	}
	for _, v := range s.matings {
		snap.Matings = append(snap.Matings, cloneMating(v))
	}
	for _, v := range s.transactions {
		snap.Transactions = append(snap.Transactions, cloneTransaction(v))
	}
	for _, v := range s.medical {
		snap.Medical = append(snap.Medical, v)
	}
	for _, v := range s.notifications {
		snap.Notifications = append(snap.Notifications, v)
	}
	for k, v := range s.sequences {
		snap.Sequences[k] = v
	}
	return snap
}

func stateOf(snap Snapshot) state {
	st := newState()
	for _, v := range snap.Farms {
		st.farms[v.ID] = cloneFarm(v)
	}
	for _, v := range snap.Animals {
		st.animals[v.ID] = cloneAnimal(v)
	}
	for _, v := range snap.Housing {
		st.housing[v.ID] = cloneHousing(v)
	}
	for _, v := range snap.Assignments {
		st.assignments[v.ID] = cloneAssignment(v)
	}
	for _, v := range snap.Matings {
		st.matings[v.ID] = cloneMating(v)
	}
	for _, v := range snap.Transactions {
		st.transactions[v.ID] = cloneTransaction(v)
	}
	for _, v := range snap.Medical {
		st.medical[v.ID] = v
	}
	for _, v := range snap.Notifications {
		st.notifications[v.ID] = v
	}
	for k, v := range snap.Sequences {
		st.sequences[k] = v
	}
	return st
}

func cloneFarm(f models.Farm) models.Farm {
	f.Breeds = slices.Clone(f.Breeds)
	return f
}

func cloneAnimal(a models.Animal) models.Animal {
	a.AcquiredDate = cloneTime(a.AcquiredDate)
	a.StatusDate = cloneTime(a.StatusDate)
	if a.HousingID != nil {
		id := *a.HousingID
		a.HousingID = &id
	}
	return a
}

func cloneHousing(h models.HousingUnit) models.HousingUnit {
	h.Accessories = slices.Clone(h.Accessories)
	return h
}

func cloneAssignment(a models.HousingAssignment) models.HousingAssignment {
	a.End = cloneTime(a.End)
	return a
}

func cloneMating(m models.MatingRecord) models.MatingRecord {
	m.PalpationDate = cloneTime(m.PalpationDate)
	m.DeliveryDate = cloneTime(m.DeliveryDate)
	m.LitterBorn = cloneInt(m.LitterBorn)
	m.LitterLive = cloneInt(m.LitterLive)
	return m
}

func cloneTransaction(t models.Transaction) models.Transaction {
	t.ReferenceIDs = slices.Clone(t.ReferenceIDs)
	t.ReferenceTags = slices.Clone(t.ReferenceTags)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
