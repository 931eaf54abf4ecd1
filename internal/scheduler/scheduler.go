package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/config"
	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/observability"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/breeding"
)

// Scheduler runs the daily reminder scan. It only writes notifications; nothing is pushed.
type Scheduler struct {
	cron     *cron.Cron
	store    repository.Store
	cfg      config.ReminderConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
	schedule string
}

// NewScheduler creates a new scheduler instance. The cron schedule is evaluated in cfg.Timezone.
func NewScheduler(cfg config.ReminderConfig, store repository.Store, metrics *observability.Metrics, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.Timezone, err)
	}

	// Standard 5-field parser: min, hour, dom, month, dow.
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		store:    store,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		schedule: cfg.CronSchedule,
	}, nil
}

// Start registers the reminder scan and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runScan); err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	written, err := s.Scan(ctx)
	if err != nil {
		s.logger.Error("reminder scan failed", zap.Error(err))
		return
	}
	s.logger.Info("reminder scan finished", zap.Int("written", written))
}

// Scan writes a notification for every upcoming event not yet recorded, across all farms.
// One farm failing does not stop the others.
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	var farmList []models.Farm
	if err := s.store.View(ctx, func(v repository.View) error {
		var err error
		farmList, err = v.ListFarms(ctx)
		return err
	}); err != nil {
		return 0, fmt.Errorf("list farms: %w", err)
	}

	total := 0
	for _, farm := range farmList {
		n, err := s.scanFarm(ctx, farm)
		if err != nil {
			s.logger.Error("reminder scan failed for farm", zap.String("farm_id", farm.ID), zap.Error(err))
			continue
		}
		total += n
	}
	s.metrics.RemindersWritten(total)
	return total, nil
}

func (s *Scheduler) scanFarm(ctx context.Context, farm models.Farm) (int, error) {
	written := 0
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		written = 0
		events, err := breeding.LoadUpcoming(ctx, tx, farm, s.now(), s.cfg.LookaheadDays)
		if err != nil {
			return err
		}
		existing, err := tx.ListNotifications(ctx, farm.ID)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, n := range existing {
			seen[n.Key] = true
		}

		for _, e := range events {
			key := e.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			n := models.Notification{
				ID:         uuid.NewString(),
				FarmID:     farm.ID,
				Key:        key,
				Kind:       e.Kind,
				SubjectID:  e.SubjectID,
				SubjectTag: e.SubjectTag,
				DueDate:    e.DueDate,
				Message:    e.Message,
				CreatedAt:  s.now().UTC(),
			}
			if err := tx.PutNotification(ctx, n); err != nil {
				return fmt.Errorf("put notification %s: %w", key, err)
			}
			written++
		}
		return nil
	})
	return written, err
}
