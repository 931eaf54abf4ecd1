package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/breeding"
	"github.com/mamadbah2/rabbitry/internal/service/farms"
	"github.com/mamadbah2/rabbitry/internal/service/finance"
)

const (
	summaryLookaheadDays = 7
	mortalityWindowDays  = 30
)

// Service builds farm summaries, exports and notification listings.
type Service struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(store repository.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Summary aggregates herd, housing, breeding and the current month's finances.
func (s *Service) Summary(ctx context.Context, actor, farmID string) (models.FarmSummary, error) {
	var summary models.FarmSummary
	err := s.store.View(ctx, func(v repository.View) error {
		farm, err := farms.Authorize(ctx, v, actor, farmID)
		if err != nil {
			return err
		}
		summary, err = Build(ctx, v, farm, s.now())
		return err
	})
	return summary, err
}

// Build computes a summary inside an open view.
func Build(ctx context.Context, v repository.View, farm models.Farm, now time.Time) (models.FarmSummary, error) {
	local := now.In(farm.Location())
	today := models.Day(local)
	summary := models.FarmSummary{
		FarmID:          farm.ID,
		FarmName:        farm.Name,
		Currency:        farm.Currency,
		GeneratedAt:     now.UTC(),
		AnimalsByStatus: map[string]int{},
	}

	animals, err := v.ListAnimals(ctx, farm.ID, repository.AnimalFilter{})
	if err != nil {
		return summary, fmt.Errorf("load animals: %w", err)
	}
	since := today.AddDate(0, 0, -mortalityWindowDays)
	for _, a := range animals {
		summary.AnimalsByStatus[string(a.Status)]++
		if !a.Status.Terminal() {
			summary.LiveAnimals++
		}
		if a.Housed() {
			summary.HousedAnimals++
		}
		if a.Status == models.StatusDeceasedNatural && a.StatusDate != nil && !a.StatusDate.Before(since) {
			summary.RecentDeaths++
		}
	}
	if population := summary.LiveAnimals + summary.RecentDeaths; population > 0 && summary.RecentDeaths > 0 {
		rate := float64(summary.RecentDeaths) / float64(population) * 100
		summary.MortalityRate = math.Round(rate*100) / 100
	}

	units, err := v.ListHousing(ctx, farm.ID)
	if err != nil {
		return summary, fmt.Errorf("load housing: %w", err)
	}
	summary.HousingUnits = len(units)
	for _, u := range units {
		summary.TotalCapacity += u.Capacity
		summary.TotalOccupancy += u.Occupancy
		if u.AtCapacity() {
			summary.FullUnits = append(summary.FullUnits, u.Label)
		}
	}

	matings, err := v.ListMatings(ctx, farm.ID)
	if err != nil {
		return summary, fmt.Errorf("load matings: %w", err)
	}
	for _, m := range matings {
		switch m.Status {
		case models.MatingPending:
			summary.PendingMatings++
		case models.MatingPregnant:
			summary.PregnantMatings++
		}
	}

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	summary.Finance, err = finance.Summarize(ctx, v, farm, repository.Period{From: monthStart, To: today})
	if err != nil {
		return summary, err
	}

	summary.Upcoming = breeding.Upcoming(farm, matings, animals, local, summaryLookaheadDays)
	return summary, nil
}

// SummaryText renders a summary as a short chat message.
func SummaryText(summary models.FarmSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d live animals", summary.FarmName, summary.LiveAnimals)
	if len(summary.AnimalsByStatus) > 0 {
		statuses := make([]string, 0, len(summary.AnimalsByStatus))
		for status := range summary.AnimalsByStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		parts := make([]string, 0, len(statuses))
		for _, status := range statuses {
			parts = append(parts, fmt.Sprintf("%s %d", status, summary.AnimalsByStatus[status]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString(".\n")

	fmt.Fprintf(&b, "Housing: %d/%d places used in %d units.", summary.TotalOccupancy, summary.TotalCapacity, summary.HousingUnits)
	if len(summary.FullUnits) > 0 {
		fmt.Fprintf(&b, " Full: %s.", strings.Join(summary.FullUnits, ", "))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Breeding: %d pending, %d pregnant.\n", summary.PendingMatings, summary.PregnantMatings)
	if summary.RecentDeaths > 0 {
		fmt.Fprintf(&b, "Mortality (%dd): %d deaths, %.2f%%.\n", mortalityWindowDays, summary.RecentDeaths, summary.MortalityRate)
	} else {
		fmt.Fprintf(&b, "Mortality (%dd): no incidents logged.\n", mortalityWindowDays)
	}

	f := summary.Finance
	fmt.Fprintf(&b, "Month to date: income %.2f, expense %.2f, net %.2f %s.", f.Income, f.Expense, f.Net, summary.Currency)

	if len(summary.Upcoming) > 0 {
		b.WriteString("\nUpcoming:")
		for _, e := range summary.Upcoming {
			fmt.Fprintf(&b, "\n- %s %s", e.DueDate.Format(models.DateLayout), e.Message)
		}
	}
	return b.String()
}

// Export returns every record of the farm as one document.
func (s *Service) Export(ctx context.Context, actor, farmID string) (models.FarmExport, error) {
	var export models.FarmExport
	err := s.store.View(ctx, func(v repository.View) error {
		farm, err := farms.Authorize(ctx, v, actor, farmID)
		if err != nil {
			return err
		}
		export = models.FarmExport{ExportedAt: s.now().UTC(), Farm: farm}
		if export.Animals, err = v.ListAnimals(ctx, farmID, repository.AnimalFilter{}); err != nil {
			return err
		}
		if export.HousingUnits, err = v.ListHousing(ctx, farmID); err != nil {
			return err
		}
		if export.HousingAssignments, err = v.ListAssignments(ctx, farmID, ""); err != nil {
			return err
		}
		if export.MatingRecords, err = v.ListMatings(ctx, farmID); err != nil {
			return err
		}
		if export.Transactions, err = v.ListTransactions(ctx, farmID, repository.Period{}); err != nil {
			return err
		}
		export.MedicalRecords, err = v.ListMedicalRecords(ctx, farmID, "")
		return err
	})
	if err != nil {
		return models.FarmExport{}, err
	}
	s.logger.Info("farm exported",
		zap.String("farm_id", farmID),
		zap.Int("animals", len(export.Animals)),
		zap.Int("transactions", len(export.Transactions)),
	)
	return export, nil
}

// ListNotifications returns stored reminders, unread ones only when unreadOnly is set.
func (s *Service) ListNotifications(ctx context.Context, actor, farmID string, unreadOnly bool) ([]models.Notification, error) {
	var out []models.Notification
	err := s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		all, err := v.ListNotifications(ctx, farmID)
		if err != nil {
			return err
		}
		for _, n := range all {
			if !unreadOnly || !n.Read {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

// MarkNotificationRead flags one reminder as read.
func (s *Service) MarkNotificationRead(ctx context.Context, actor, farmID, notificationID string) (models.Notification, error) {
	var found models.Notification
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		if _, err := farms.Authorize(ctx, tx, actor, farmID); err != nil {
			return err
		}
		all, err := tx.ListNotifications(ctx, farmID)
		if err != nil {
			return err
		}
		for _, n := range all {
			if n.ID == notificationID {
				n.Read = true
				found = n
				return tx.PutNotification(ctx, n)
			}
		}
		return fmt.Errorf("notification %s: %w", notificationID, models.ErrNotFound)
	})
	return found, err
}
