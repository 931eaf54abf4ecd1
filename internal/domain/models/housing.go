package models

import "time"

// AssignmentPurpose tags why an animal was placed in a housing unit.
type AssignmentPurpose string

const (
	PurposeHousing    AssignmentPurpose = "Housing"
	PurposeMating     AssignmentPurpose = "Mating"
	PurposeQuarantine AssignmentPurpose = "Quarantine"
	PurposeWeaning    AssignmentPurpose = "Weaning"
	PurposeRecovery   AssignmentPurpose = "Recovery"
)

// Valid reports whether p is a known purpose.
func (p AssignmentPurpose) Valid() bool {
	switch p {
	case PurposeHousing, PurposeMating, PurposeQuarantine, PurposeWeaning, PurposeRecovery:
		return true
	}
	return false
}

// HousingUnit is a hutch. Occupancy must equal the number of animals referencing it.
type HousingUnit struct {
	ID          string    `bson:"_id" json:"id"`
	FarmID      string    `bson:"farm_id" json:"farm_id"`
	Label       string    `bson:"label" json:"label"`
	Capacity    int       `bson:"capacity" json:"capacity"`
	Occupancy   int       `bson:"occupancy" json:"occupancy"`
	Accessories []string  `bson:"accessories" json:"accessories"`
	Notes       string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// AtCapacity reports whether adding one more animal would exceed capacity.
func (h HousingUnit) AtCapacity() bool {
	return h.Occupancy >= h.Capacity
}

// HousingAssignment is one entry of the animal-to-housing history. End is nil while open.
type HousingAssignment struct {
	ID        string            `bson:"_id" json:"id"`
	FarmID    string            `bson:"farm_id" json:"farm_id"`
	AnimalID  string            `bson:"animal_id" json:"animal_id"`
	HousingID string            `bson:"housing_id" json:"housing_id"`
	Start     time.Time         `bson:"start" json:"start"`
	End       *time.Time        `bson:"end,omitempty" json:"end"`
	Purpose   AssignmentPurpose `bson:"purpose" json:"purpose"`
	Notes     string            `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Open reports whether the assignment is still active.
func (a HousingAssignment) Open() bool { return a.End == nil }
