package models

import "time"

// Sex of an animal. Does are Female, bucks Male. Kits are Unknown until sexed.
type Sex string

const (
	SexMale    Sex = "Male"
	SexFemale  Sex = "Female"
	SexUnknown Sex = "Unknown"
)

// Valid reports whether s is a known value.
func (s Sex) Valid() bool { return s == SexMale || s == SexFemale || s == SexUnknown }

// AnimalSource records how the animal entered the farm.
type AnimalSource string

const (
	SourceBorn      AnimalSource = "Born"
	SourcePurchased AnimalSource = "Purchased"
)

// AnimalStatus is the lifecycle status of an animal.
type AnimalStatus string

const (
	StatusActive            AnimalStatus = "Active"
	StatusWeaned            AnimalStatus = "Weaned"
	StatusPregnant          AnimalStatus = "Pregnant"
	StatusSold              AnimalStatus = "Sold"
	StatusDeceasedNatural   AnimalStatus = "Deceased-Natural"
	StatusDeceasedProcessed AnimalStatus = "Deceased-Processed"
)

// Terminal reports whether the animal has left the farm.
func (s AnimalStatus) Terminal() bool {
	switch s {
	case StatusSold, StatusDeceasedNatural, StatusDeceasedProcessed:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s AnimalStatus) Valid() bool {
	switch s {
	case StatusActive, StatusWeaned, StatusPregnant, StatusSold, StatusDeceasedNatural, StatusDeceasedProcessed:
		return true
	}
	return false
}

// Animal is a single rabbit tracked by the farm. Animals are never deleted.
type Animal struct {
	ID           string       `bson:"_id" json:"id"`
	FarmID       string       `bson:"farm_id" json:"farm_id"`
	Tag          string       `bson:"tag" json:"tag"`
	Breed        string       `bson:"breed" json:"breed"`
	Sex          Sex          `bson:"sex" json:"sex"`
	BirthDate    time.Time    `bson:"birth_date" json:"birth_date"`
	AcquiredDate *time.Time   `bson:"acquired_date,omitempty" json:"acquired_date,omitempty"`
	Source       AnimalSource `bson:"source" json:"source"`
	Status       AnimalStatus `bson:"status" json:"status"`
	StatusDate   *time.Time   `bson:"status_date,omitempty" json:"status_date,omitempty"`
	StatusNote   string       `bson:"status_note,omitempty" json:"status_note,omitempty"`
	HousingID    *string      `bson:"housing_id,omitempty" json:"housing_id"`
	FatherTag    string       `bson:"father_tag,omitempty" json:"father_tag,omitempty"`
	MotherTag    string       `bson:"mother_tag,omitempty" json:"mother_tag,omitempty"`
	WeightKg     float64      `bson:"weight_kg,omitempty" json:"weight_kg,omitempty"`
	Notes        string       `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updated_at"`
}

// Housed reports whether the animal currently references a housing unit.
func (a Animal) Housed() bool { return a.HousingID != nil && *a.HousingID != "" }

// CurrentHousing returns the housing id or an empty string.
func (a Animal) CurrentHousing() string {
	if a.HousingID == nil {
		return ""
	}
	return *a.HousingID
}
