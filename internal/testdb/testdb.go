// Package testdb opens throwaway SQLite databases with the full schema for
// package tests.
package testdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	bookentity "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/repo"
	reqrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/repo"
	userentity "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
)

var seq atomic.Int64

// Config returns a SQLite config pointing into t's temp dir.
func Config(t testing.TB) database.Config {
	t.Helper()
	return database.Config{
		Driver:  database.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "bookcrossing.db"),
		Timeout: 5 * time.Second,
	}
}

// Open connects to a fresh database and creates every table.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(Config(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, userrepo.NewUserRepo(db).EnsureTable(ctx))
	require.NoError(t, bookrepo.NewBookRepo(db).EnsureTable(ctx))
	require.NoError(t, reqrepo.NewRequestRepo(db).EnsureTable(ctx))
	return db
}

// GivenUser stores a user with the given quota and no password.
func GivenUser(t testing.TB, db *sqlx.DB, limit, points int) *userentity.User {
	t.Helper()
	u := &userentity.User{
		Username: fmt.Sprintf("user%d", seq.Add(1)),
		City:     "Almaty",
		Limit:    limit,
		Points:   points,
	}
	_, err := userrepo.NewUserRepo(db).Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

// GivenBook stores a visible book held by ownerID.
func GivenBook(t testing.TB, db *sqlx.DB, ownerID int64) *bookentity.Book {
	t.Helper()
	b := &bookentity.Book{
		Title:   fmt.Sprintf("Book %d", seq.Add(1)),
		Author:  "Abai Kunanbaiuly",
		OwnerID: ownerID,
		Visible: true,
	}
	_, err := bookrepo.NewBookRepo(db).Create(context.Background(), b)
	require.NoError(t, err)
	return b
}

// ReloadUser reads u back from the database.
func ReloadUser(t testing.TB, db *sqlx.DB, id int64) *userentity.User {
	t.Helper()
	u, err := userrepo.NewUserRepo(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// ReloadBook reads b back from the database.
func ReloadBook(t testing.TB, db *sqlx.DB, id int64) *bookentity.Book {
	t.Helper()
	b, err := bookrepo.NewBookRepo(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}
