package finance

import (
	"context"
	"fmt"
	"strings"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository/sheets"
)

// TransactionsRange is the sheet range the mirror appends to.
const TransactionsRange = "Transactions!A:J"

// Mirror receives committed transactions. Failures never roll back the ledger.
type Mirror interface {
	Publish(ctx context.Context, farm models.Farm, txns ...models.Transaction) error
}

// NopMirror discards everything.
type NopMirror struct{}

// Publish implements Mirror.
func (NopMirror) Publish(context.Context, models.Farm, ...models.Transaction) error { return nil }

// SheetsMirror appends one row per transaction to a Google Sheet.
type SheetsMirror struct {
	repo sheets.Repository
}

// NewSheetsMirror wraps a sheets repository.
func NewSheetsMirror(repo sheets.Repository) *SheetsMirror {
	return &SheetsMirror{repo: repo}
}

// Publish implements Mirror.
func (m *SheetsMirror) Publish(ctx context.Context, farm models.Farm, txns ...models.Transaction) error {
	rows := make([][]interface{}, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, Row(farm, t))
	}
	if err := m.repo.AppendRows(ctx, TransactionsRange, rows); err != nil {
		return fmt.Errorf("%w: mirror transactions: %v", models.ErrProvider, err)
	}
	return nil
}

// Row renders a transaction as a sheet row.
func Row(farm models.Farm, t models.Transaction) []interface{} {
	return []interface{}{
		t.Date.Format(models.DateLayout),
		farm.Name,
		string(t.Type),
		t.Category,
		t.Amount,
		farm.Currency,
		t.Counterparty,
		strings.Join(t.ReferenceTags, ","),
		t.Note,
		t.ID,
	}
}
