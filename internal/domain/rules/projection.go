package rules

import (
	"time"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

// BreedingDates are the dates derived from a mating.
type BreedingDates struct {
	Palpation time.Time
	Delivery  time.Time
}

// ProjectBreedingDates adds the farm's palpation and gestation offsets to the mating date.
func ProjectBreedingDates(matingDate time.Time, palpationDays, gestationDays int) BreedingDates {
	return BreedingDates{
		Palpation: ProjectPalpationDate(matingDate, palpationDays),
		Delivery:  ProjectDeliveryDate(matingDate, gestationDays),
	}
}

// ProjectPalpationDate returns matingDate + palpationDays calendar days.
func ProjectPalpationDate(matingDate time.Time, palpationDays int) time.Time {
	return addDays(matingDate, palpationDays)
}

// ProjectDeliveryDate returns matingDate + gestationDays calendar days.
func ProjectDeliveryDate(matingDate time.Time, gestationDays int) time.Time {
	return addDays(matingDate, gestationDays)
}

// WeaningDate returns birthDate + weaningDays calendar days.
func WeaningDate(birthDate time.Time, weaningDays int) time.Time {
	return addDays(birthDate, weaningDays)
}

func addDays(d time.Time, n int) time.Time {
	return models.Day(d).AddDate(0, 0, n)
}
