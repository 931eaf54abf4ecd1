package breeding

import (
	"fmt"
	"sort"
	"time"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/domain/rules"
)

// Upcoming lists palpations, deliveries and weanings falling in [today, today+days].
// Matings of a doe that is sold or dead yield no events.
func Upcoming(farm models.Farm, matings []models.MatingRecord, animals []models.Animal, today time.Time, days int) []models.UpcomingEvent {
	from := models.Day(today)
	to := from.AddDate(0, 0, days)
	within := func(d time.Time) bool {
		d = models.Day(d)
		return !d.Before(from) && !d.After(to)
	}

	gone := make(map[string]bool)
	for _, a := range animals {
		if a.Status.Terminal() {
			gone[a.ID] = true
		}
	}

	var events []models.UpcomingEvent
	for _, m := range matings {
		if gone[m.DoeID] {
			continue
		}
		switch m.Status {
		case models.MatingPending:
			if within(m.ExpectedPalpationDate) {
				events = append(events, models.UpcomingEvent{
					Kind:       models.NotifyPalpationDue,
					SubjectID:  m.ID,
					SubjectTag: m.DoeTag,
					DueDate:    models.Day(m.ExpectedPalpationDate),
					Message:    fmt.Sprintf("Palpate doe %s (mated with %s on %s)", m.DoeTag, m.BuckTag, m.MatingDate.Format(models.DateLayout)),
				})
			}
		case models.MatingPregnant:
			if within(m.ExpectedDeliveryDate) {
				events = append(events, models.UpcomingEvent{
					Kind:       models.NotifyDeliveryDue,
					SubjectID:  m.ID,
					SubjectTag: m.DoeTag,
					DueDate:    models.Day(m.ExpectedDeliveryDate),
					Message:    fmt.Sprintf("Doe %s is due to kindle; prepare the nest box", m.DoeTag),
				})
			}
		}
	}

	for _, a := range animals {
		if a.Status != models.StatusActive || a.Source != models.SourceBorn {
			continue
		}
		due := rules.WeaningDate(a.BirthDate, farm.WeaningDays)
		if within(due) {
			events = append(events, models.UpcomingEvent{
				Kind:       models.NotifyWeaningDue,
				SubjectID:  a.ID,
				SubjectTag: a.Tag,
				DueDate:    due,
				Message:    fmt.Sprintf("Kit %s reaches weaning age", a.Tag),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].DueDate.Equal(events[j].DueDate) {
			return events[i].DueDate.Before(events[j].DueDate)
		}
		return events[i].SubjectTag < events[j].SubjectTag
	})
	return events
}
