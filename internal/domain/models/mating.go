package models

import "time"

// MatingStatus follows Pending -> Pregnant|Failed -> Delivered.
type MatingStatus string

const (
	MatingPending   MatingStatus = "Pending"
	MatingPregnant  MatingStatus = "Pregnant"
	MatingFailed    MatingStatus = "Failed"
	MatingDelivered MatingStatus = "Delivered"
)

// Terminal reports whether the mating record can no longer change.
func (s MatingStatus) Terminal() bool { return s == MatingFailed || s == MatingDelivered }

// MatingRecord tracks one doe/buck pairing through to delivery.
type MatingRecord struct {
	ID                    string       `bson:"_id" json:"id"`
	FarmID                string       `bson:"farm_id" json:"farm_id"`
	DoeID                 string       `bson:"doe_id" json:"doe_id"`
	DoeTag                string       `bson:"doe_tag" json:"doe_tag"`
	BuckID                string       `bson:"buck_id" json:"buck_id"`
	BuckTag               string       `bson:"buck_tag" json:"buck_tag"`
	MatingDate            time.Time    `bson:"mating_date" json:"mating_date"`
	ExpectedPalpationDate time.Time    `bson:"expected_palpation_date" json:"expected_palpation_date"`
	ExpectedDeliveryDate  time.Time    `bson:"expected_delivery_date" json:"expected_delivery_date"`
	Status                MatingStatus `bson:"status" json:"status"`
	PalpationDate         *time.Time   `bson:"palpation_date,omitempty" json:"palpation_date,omitempty"`
	DeliveryDate          *time.Time   `bson:"delivery_date,omitempty" json:"delivery_date,omitempty"`
	LitterBorn            *int         `bson:"litter_born,omitempty" json:"litter_born,omitempty"`
	LitterLive            *int         `bson:"litter_live,omitempty" json:"litter_live,omitempty"`
	Relation              string       `bson:"relation" json:"relation"`
	Notes                 string       `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt             time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time    `bson:"updated_at" json:"updated_at"`
}
