// Package finance records income and expenses and summarizes them per period.
package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/observability"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/farms"
)

// Input is a manually entered transaction.
type Input struct {
	Type         models.TransactionType `json:"type"`
	Category     string                 `json:"category"`
	Amount       float64                `json:"amount"`
	Date         string                 `json:"date"`
	Note         string                 `json:"note"`
	Counterparty string                 `json:"counterparty"`
}

// Service owns the transaction ledger.
type Service struct {
	store   repository.Store
	mirror  Mirror
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the finance service. A nil mirror disables mirroring.
func NewService(store repository.Store, mirror Mirror, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mirror == nil {
		mirror = NopMirror{}
	}
	return &Service{store: store, mirror: mirror, metrics: metrics, logger: logger, now: time.Now}
}

// NewTransaction builds a ledger entry. Amounts must be positive.
func NewTransaction(farmID string, typ models.TransactionType, category string, amount float64, date time.Time, createdAt time.Time) (models.Transaction, error) {
	if !typ.Valid() {
		return models.Transaction{}, models.Validationf("transaction type must be Income or Expense, got %q", typ)
	}
	if amount <= 0 {
		return models.Transaction{}, models.Validationf("amount must be greater than zero, got %v", amount)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return models.Transaction{}, models.Validationf("category is required")
	}
	return models.Transaction{
		ID:            uuid.NewString(),
		FarmID:        farmID,
		Type:          typ,
		Category:      category,
		Amount:        amount,
		Date:          models.Day(date),
		ReferenceKind: models.ReferenceManual,
		CreatedAt:     createdAt,
	}, nil
}

// RecordTransaction stores a manual income or expense.
func (s *Service) RecordTransaction(ctx context.Context, actor, farmID string, in Input) (models.Transaction, error) {
	var (
		farm models.Farm
		txn  models.Transaction
	)
	err := s.store.RunInTransaction(ctx, func(tx repository.Tx) error {
		var err error
		farm, err = farms.Authorize(ctx, tx, actor, farmID)
		if err != nil {
			return err
		}
		date, err := models.ParseOptionalDay(in.Date, s.now().In(farm.Location()))
		if err != nil {
			return err
		}
		txn, err = NewTransaction(farmID, in.Type, in.Category, in.Amount, date, s.now().UTC())
		if err != nil {
			return err
		}
		txn.Note = in.Note
		txn.Counterparty = in.Counterparty
		return tx.PutTransaction(ctx, txn)
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.logger.Info("transaction recorded",
		zap.String("farm_id", farmID),
		zap.String("type", string(txn.Type)),
		zap.String("category", txn.Category),
		zap.Float64("amount", txn.Amount),
	)
	s.Publish(ctx, farm, txn)
	return txn, nil
}

// Publish mirrors committed transactions, logging failures instead of returning them.
func (s *Service) Publish(ctx context.Context, farm models.Farm, txns ...models.Transaction) {
	if s == nil {
		return
	}
	for _, t := range txns {
		if t.Type == models.TransactionIncome && t.Category == models.CategorySale {
			s.metrics.SaleRecorded(t.Amount)
		}
	}
	if len(txns) == 0 {
		return
	}
	if err := s.mirror.Publish(ctx, farm, txns...); err != nil {
		s.logger.Warn("transaction mirror failed", zap.String("farm_id", farm.ID), zap.Int("count", len(txns)), zap.Error(err))
	}
}

// ListTransactions returns transactions dated within [from, to]. Empty bounds are open.
func (s *Service) ListTransactions(ctx context.Context, actor, farmID, from, to string) ([]models.Transaction, error) {
	period, err := parsePeriod(from, to)
	if err != nil {
		return nil, err
	}
	var txns []models.Transaction
	err = s.store.View(ctx, func(v repository.View) error {
		if _, err := farms.Authorize(ctx, v, actor, farmID); err != nil {
			return err
		}
		var err error
		txns, err = v.ListTransactions(ctx, farmID, period)
		return err
	})
	return txns, err
}

// Summary totals income and expense for the period.
func (s *Service) Summary(ctx context.Context, actor, farmID, from, to string) (models.FinanceSummary, error) {
	period, err := parsePeriod(from, to)
	if err != nil {
		return models.FinanceSummary{}, err
	}
	var summary models.FinanceSummary
	err = s.store.View(ctx, func(v repository.View) error {
		farm, err := farms.Authorize(ctx, v, actor, farmID)
		if err != nil {
			return err
		}
		summary, err = Summarize(ctx, v, farm, period)
		return err
	})
	return summary, err
}

// Summarize aggregates a farm's transactions inside an open view.
func Summarize(ctx context.Context, v repository.View, farm models.Farm, period repository.Period) (models.FinanceSummary, error) {
	txns, err := v.ListTransactions(ctx, farm.ID, period)
	if err != nil {
		return models.FinanceSummary{}, fmt.Errorf("list transactions: %w", err)
	}
	summary := Aggregate(txns)
	summary.Currency = farm.Currency
	if !period.From.IsZero() {
		from := period.From
		summary.From = &from
	}
	if !period.To.IsZero() {
		to := period.To
		summary.To = &to
	}
	return summary, nil
}

// Aggregate totals transactions. Expense categories are reported as negative amounts.
func Aggregate(txns []models.Transaction) models.FinanceSummary {
	summary := models.FinanceSummary{ByCategory: map[string]float64{}}
	for _, t := range txns {
		switch t.Type {
		case models.TransactionIncome:
			summary.Income += t.Amount
			summary.ByCategory[t.Category] += t.Amount
		case models.TransactionExpense:
			summary.Expense += t.Amount
			summary.ByCategory[t.Category] -= t.Amount
		}
		summary.Count++
	}
	summary.Net = summary.Income - summary.Expense
	return summary
}

func parsePeriod(from, to string) (repository.Period, error) {
	var period repository.Period
	var err error
	if strings.TrimSpace(from) != "" {
		if period.From, err = models.ParseDay(from); err != nil {
			return period, err
		}
	}
	if strings.TrimSpace(to) != "" {
		if period.To, err = models.ParseDay(to); err != nil {
			return period, err
		}
	}
	if !period.From.IsZero() && !period.To.IsZero() && period.To.Before(period.From) {
		return period, models.Validationf("period ends before it starts")
	}
	return period, nil
}
