package mongodb

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/storetest"
)

// Runs against a real replica set only when MONGODB_TEST_URI is set.
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	storetest.Run(t, func(t *testing.T) repository.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbName := "rabbitry_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		repo, err := NewMongoDBRepository(ctx, uri, dbName, nil)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = repo.db.Drop(context.Background())
			_ = repo.Close(context.Background())
		})
		return repo
	})
}

func TestNewRepositoryFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := NewMongoDBRepository(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200", "rabbitry_unreachable", nil)
	require.Error(t, err)
	assert.Nil(t, repo)
	assert.Contains(t, err.Error(), "ping")
}
