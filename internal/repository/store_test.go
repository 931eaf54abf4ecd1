package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

func TestSortAssignmentsPutsClosedFirstOnTies(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	earlier := start.Add(-time.Hour)
	list := []models.HousingAssignment{
		{ID: "a", Start: start},
		{ID: "z", Start: start, End: &start},
		{ID: "m", Start: earlier, End: &start},
	}

	SortAssignments(list)

	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	assert.Equal(t, []string{"m", "z", "a"}, ids)
}

func TestAnimalFilterMatch(t *testing.T) {
	h1 := "h1"
	active := models.Animal{Status: models.StatusActive, HousingID: &h1}
	sold := models.Animal{Status: models.StatusSold}

	assert.True(t, AnimalFilter{}.Match(sold))
	assert.True(t, AnimalFilter{HousingID: "h1"}.Match(active))
	assert.False(t, AnimalFilter{HousingID: "h2"}.Match(active))
	assert.False(t, AnimalFilter{LiveOnly: true}.Match(sold))
	assert.False(t, AnimalFilter{Status: models.StatusWeaned}.Match(active))
}
