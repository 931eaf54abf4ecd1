package models

import "time"

// FarmSummary is the aggregated farm state used by the advisor, commands and dashboards.
type FarmSummary struct {
	FarmID          string          `json:"farm_id"`
	FarmName        string          `json:"farm_name"`
	Currency        string          `json:"currency"`
	GeneratedAt     time.Time       `json:"generated_at"`
	AnimalsByStatus map[string]int  `json:"animals_by_status"`
	LiveAnimals     int             `json:"live_animals"`
	HousedAnimals   int             `json:"housed_animals"`
	HousingUnits    int             `json:"housing_units"`
	TotalCapacity   int             `json:"total_capacity"`
	TotalOccupancy  int             `json:"total_occupancy"`
	FullUnits       []string        `json:"full_units"`
	PendingMatings  int             `json:"pending_matings"`
	PregnantMatings int             `json:"pregnant_matings"`
	RecentDeaths    int             `json:"recent_deaths"`
	MortalityRate   float64         `json:"mortality_rate"`
	Finance         FinanceSummary  `json:"finance"`
	Upcoming        []UpcomingEvent `json:"upcoming"`
}

// FarmExport is the backup document containing every record of a farm.
type FarmExport struct {
	ExportedAt         time.Time           `json:"exported_at"`
	Farm               Farm                `json:"farm"`
	Animals            []Animal            `json:"animals"`
	HousingUnits       []HousingUnit       `json:"housing_units"`
	HousingAssignments []HousingAssignment `json:"housing_assignments"`
	MatingRecords      []MatingRecord      `json:"mating_records"`
	Transactions       []Transaction       `json:"transactions"`
	MedicalRecords     []MedicalRecord     `json:"medical_records"`
}
