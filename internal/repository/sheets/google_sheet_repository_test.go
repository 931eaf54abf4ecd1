package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mamadbah2/rabbitry/internal/config"
)

func TestAppendRows(t *testing.T) {
	var gotPath string
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer srv.Close()

	repo, err := NewGoogleSheetRepository(context.Background(), config.SheetsConfig{SpreadsheetID: "sheet-1"}, nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = repo.AppendRows(context.Background(), "Transactions!A:J", [][]interface{}{{"2024-03-01", "Income", 50}})
	require.NoError(t, err)
	assert.True(t, strings.Contains(gotPath, "sheet-1"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	require.Len(t, body.Values, 1)
	assert.Equal(t, "Income", body.Values[0][1])
}

func TestAppendRowsRequiresRange(t *testing.T) {
	repo := &GoogleSheetRepository{}
	assert.Error(t, repo.AppendRows(context.Background(), "", [][]interface{}{{"x"}}))
	assert.NoError(t, (&GoogleSheetRepository{}).AppendRows(context.Background(), "A:B", nil))
}
