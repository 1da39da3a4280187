package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

// WithTx returns a repo whose statements run inside tx.
func (r *UserRepo) WithTx(tx *sqlx.Tx) *UserRepo { return &UserRepo{db: tx} }

var postgresDDL = []string{`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  request_limit INT NOT NULL DEFAULT 2,
  points INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT users_points_range CHECK (points >= 0 AND points <= request_limit)
)`,
}

var sqliteDDL = []string{`
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  email TEXT UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  request_limit INTEGER NOT NULL DEFAULT 2,
  points INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  CHECK (points >= 0 AND points <= request_limit)
)`,
}

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	if database.IsSQLite(r.db) {
		return database.EnsureSchema(ctx, r.db, sqliteDDL)
	}
	return database.EnsureSchema(ctx, r.db, postgresDDL)
}

const selectColumns = `SELECT id, username, email, password_hash, first_name, last_name,
	city, phone, request_limit, points, created_at, updated_at FROM users`

// Create inserts a new user row and sets u.ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	q := r.db.Rebind(`INSERT INTO users (username, email, password_hash, first_name, last_name, city, phone, request_limit, points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := sqlx.GetContext(ctx, r.db, &u.ID, q,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.City, u.Phone,
		u.Limit, u.Points, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(selectColumns+` WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches by username or sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(selectColumns+` WHERE username = ?`), username); err != nil {
		return nil, err
	}
	return &u, nil
}
