package finance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository/memory"
	"github.com/mamadbah2/rabbitry/internal/repository/storetest"
)

type recordingMirror struct {
	mu   sync.Mutex
	txns []models.Transaction
	err  error
}

func (m *recordingMirror) Publish(_ context.Context, _ models.Farm, txns ...models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns = append(m.txns, txns...)
	return m.err
}

type stubSheets struct {
	sheetRange string
	rows       [][]interface{}
}

func (s *stubSheets) AppendRows(_ context.Context, sheetRange string, rows [][]interface{}) error {
	s.sheetRange = sheetRange
	s.rows = append(s.rows, rows...)
	return nil
}

func newTestService(t *testing.T, mirror Mirror) (*Service, models.Farm) {
	t.Helper()
	store := memory.New()
	farm := storetest.Seed(t, store, "farm-1", "owner")
	svc := NewService(store, mirror, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	return svc, farm
}

func TestRecordAndSummarize(t *testing.T) {
	mirror := &recordingMirror{}
	svc, farm := newTestService(t, mirror)
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, "owner", farm.ID, Input{Type: models.TransactionIncome, Category: "Sale", Amount: 120, Date: "2024-03-01"})
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, "owner", farm.ID, Input{Type: models.TransactionExpense, Category: "Feed", Amount: 45.5, Date: "2024-03-02"})
	require.NoError(t, err)
	feb, err := svc.RecordTransaction(ctx, "owner", farm.ID, Input{Type: models.TransactionExpense, Category: "Feed", Amount: 10, Date: "2024-02-10"})
	require.NoError(t, err)
	assert.Equal(t, models.ReferenceManual, feb.ReferenceKind)

	all, err := svc.Summary(ctx, "owner", farm.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)
	assert.InDelta(t, 120, all.Income, 1e-9)
	assert.InDelta(t, 55.5, all.Expense, 1e-9)
	assert.InDelta(t, 64.5, all.Net, 1e-9)
	assert.InDelta(t, -55.5, all.ByCategory["Feed"], 1e-9)
	assert.Equal(t, "USD", all.Currency)

	march, err := svc.Summary(ctx, "owner", farm.ID, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, 2, march.Count)
	require.NotNil(t, march.From)

	listed, err := svc.ListTransactions(ctx, "owner", farm.ID, "", "2024-02-28")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, feb.ID, listed[0].ID)

	assert.Len(t, mirror.txns, 3)
}

func TestRecordTransactionRejects(t *testing.T) {
	svc, farm := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"zero amount", Input{Type: models.TransactionIncome, Category: "Sale"}, models.ErrValidation},
		{"negative amount", Input{Type: models.TransactionExpense, Category: "Feed", Amount: -3}, models.ErrValidation},
		{"unknown type", Input{Type: "Gift", Category: "Feed", Amount: 3}, models.ErrValidation},
		{"missing category", Input{Type: models.TransactionExpense, Amount: 3}, models.ErrValidation},
		{"bad date", Input{Type: models.TransactionExpense, Category: "Feed", Amount: 3, Date: "03/05/2024"}, models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordTransaction(ctx, "owner", farm.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.RecordTransaction(ctx, "intruder", farm.ID, Input{Type: models.TransactionIncome, Category: "Sale", Amount: 1})
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	_, err = svc.Summary(ctx, "owner", farm.ID, "2024-03-10", "2024-03-01")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestMirrorFailureDoesNotFailRecording(t *testing.T) {
	mirror := &recordingMirror{err: errors.New("sheets down")}
	svc, farm := newTestService(t, mirror)

	txn, err := svc.RecordTransaction(context.Background(), "owner", farm.ID, Input{Type: models.TransactionIncome, Category: "Sale", Amount: 5})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), txn.Date)

	listed, err := svc.ListTransactions(context.Background(), "owner", farm.ID, "", "")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestSheetsMirrorRows(t *testing.T) {
	repo := &stubSheets{}
	mirror := NewSheetsMirror(repo)
	farm := models.Farm{Name: "Green Acres", Currency: "GNF"}
	txn := models.Transaction{
		ID: "t1", Type: models.TransactionIncome, Category: models.CategorySale, Amount: 50,
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Counterparty: "Acme", ReferenceTags: []string{"R1", "R2"},
	}

	require.NoError(t, mirror.Publish(context.Background(), farm, txn))
	assert.Equal(t, TransactionsRange, repo.sheetRange)
	require.Len(t, repo.rows, 1)
	assert.Equal(t, []interface{}{"2024-03-01", "Green Acres", "Income", "Sale", 50.0, "GNF", "Acme", "R1,R2", "", "t1"}, repo.rows[0])
}
