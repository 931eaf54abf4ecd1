// Package sqlite persists the in-memory store to a single SQLite file. The whole
// state is snapshotted, one JSON blob per bucket, inside the commit of every
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/memory"
)

var _ repository.Store = (*Store)(nil)

// Store is a memory.Store whose commits are written through to SQLite.
type Store struct {
	*memory.Store
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewStore opens (or creates) the database at path and loads its snapshot.
func NewStore(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = "rabbitry.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	s := &Store{Store: memory.New(), db: db, path: path, logger: logger}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.Store.OnCommit(s.persist)

	logger.Info("sqlite store ready", zap.String("path", path))
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap memory.Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		target := bucketTarget(&snap, bucket)
		if target == nil {
			s.logger.Warn("ignoring unknown bucket", zap.String("bucket", bucket))
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}

	if found {
		s.Store.Import(snap)
	}
	return nil
}

func (s *Store) persist(snap memory.Snapshot) (retErr error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, bucket := range buckets {
		data, err := json.Marshal(bucketTarget(&snap, bucket))
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket, payload) VALUES(?, ?)
			ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var buckets = []string{"farms", "animals", "housing", "assignments", "matings", "transactions", "medical", "notifications", "sequences"}

func bucketTarget(snap *memory.Snapshot, bucket string) any {
	switch bucket {
	case "farms":
		return &snap.Farms
	case "animals":
		return &snap.Animals
	case "housing":
		return &snap.Housing
	case "assignments":
		return &snap.Assignments
	case "matings":
		return &snap.Matings
	case "transactions":
		return &snap.Transactions
	case "medical":
		return &snap.Medical
	case "notifications":
		return &snap.Notifications
	case "sequences":
		return &snap.Sequences
	}
	return nil
}
