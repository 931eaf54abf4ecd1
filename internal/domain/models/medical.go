package models

import "time"

// MedicalKind classifies a medical event.
type MedicalKind string

const (
	MedicalVaccination MedicalKind = "Vaccination"
	MedicalTreatment   MedicalKind = "Treatment"
	MedicalCheckup     MedicalKind = "Checkup"
	MedicalSurgery     MedicalKind = "Surgery"
)

// Valid reports whether k is a known kind.
func (k MedicalKind) Valid() bool {
	switch k {
	case MedicalVaccination, MedicalTreatment, MedicalCheckup, MedicalSurgery:
		return true
	}
	return false
}

// MedicalRecord captures a health event for one animal.
type MedicalRecord struct {
	ID            string      `bson:"_id" json:"id"`
	FarmID        string      `bson:"farm_id" json:"farm_id"`
	AnimalID      string      `bson:"animal_id" json:"animal_id"`
	AnimalTag     string      `bson:"animal_tag" json:"animal_tag"`
	Date          time.Time   `bson:"date" json:"date"`
	Kind          MedicalKind `bson:"kind" json:"kind"`
	Description   string      `bson:"description" json:"description"`
	Medication    string      `bson:"medication,omitempty" json:"medication,omitempty"`
	Cost          float64     `bson:"cost,omitempty" json:"cost,omitempty"`
	TransactionID string      `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
}
