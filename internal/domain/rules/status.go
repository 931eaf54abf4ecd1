package rules

import (
	"fmt"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

var transitions = map[models.AnimalStatus][]models.AnimalStatus{
	models.StatusActive:   {models.StatusPregnant, models.StatusWeaned, models.StatusSold, models.StatusDeceasedNatural, models.StatusDeceasedProcessed},
	models.StatusWeaned:   {models.StatusActive, models.StatusPregnant, models.StatusSold, models.StatusDeceasedNatural, models.StatusDeceasedProcessed},
	models.StatusPregnant: {models.StatusActive, models.StatusSold, models.StatusDeceasedNatural, models.StatusDeceasedProcessed},
}

// CanTransition reports whether an animal may move from one status to another.
// Terminal statuses have no outgoing transitions.
func CanTransition(from, to models.AnimalStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition returns ErrInvalidTransition when the change is not allowed.
func Transition(from, to models.AnimalStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	return nil
}
