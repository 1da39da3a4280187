package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "u.db"), Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(ctx, db, []string{`CREATE TABLE t (name TEXT NOT NULL UNIQUE)`}))
	_, err = db.ExecContext(ctx, `INSERT INTO t (name) VALUES ('a')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO t (name) VALUES ('a')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", err)))

	_, err = db.ExecContext(ctx, `INSERT INTO t (name) VALUES (NULL)`)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err), "NOT NULL is a different constraint")
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
