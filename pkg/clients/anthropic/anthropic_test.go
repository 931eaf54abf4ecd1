package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var got messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, messagesPath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":" Wean at 6 weeks. "}]}`))
	}))
	defer srv.Close()

	client := NewClient("secret", WithBaseURL(srv.URL))
	answer, err := client.Complete(context.Background(), "You advise rabbit farmers.", []Message{{Role: RoleUser, Content: "When to wean?"}})
	require.NoError(t, err)
	assert.Equal(t, "Wean at 6 weeks.", answer)
	assert.Equal(t, model, got.Model)
	assert.Equal(t, "You advise rabbit farmers.", got.System)
	require.Len(t, got.Messages, 1)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, "invalid x-api-key"},
		{"empty content", http.StatusOK, `{"content":[]}`, ErrEmptyResponse.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "hi"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
