// Package quota bounds how many borrow requests a user may hold open.
//
// A user's points count their open requests and never exceed their limit.
// Points are written only here; the request lifecycle engine is the only
// caller of Increment and Decrement.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/entity"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrLimitBelowPoints = errors.New("limit is below the user's open requests")
)

// CanRequest reports whether u may open another request.
func CanRequest(u *entity.User) bool {
	return u.Points < u.Limit
}

// Ledger keeps the points counters in the users table.
type Ledger struct {
	db  sqlx.ExtContext
	now func() time.Time
}

func NewLedger(db sqlx.ExtContext) *Ledger {
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a ledger whose writes join tx.
func (l *Ledger) WithTx(tx *sqlx.Tx) *Ledger {
	return &Ledger{db: tx, now: l.now}
}

type counters struct {
	Points int `db:"points"`
	Limit  int `db:"request_limit"`
}

// Increment takes one unit of u's quota. The check and the write are a
// single conditional UPDATE; when u is already at its limit nothing is
// written and Increment reports false. On success u is refreshed with the
// stored counters.
func (l *Ledger) Increment(ctx context.Context, u *entity.User) (bool, error) {
	q := l.db.Rebind(`UPDATE users SET points = points + 1, updated_at = ?
		WHERE id = ? AND points < request_limit RETURNING points, request_limit`)
	var c counters
	if err := sqlx.GetContext(ctx, l.db, &c, q, l.now(), u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	u.Points, u.Limit = c.Points, c.Limit
	return true, nil
}

// Decrement gives one unit back to u. Points never drop below zero.
func (l *Ledger) Decrement(ctx context.Context, u *entity.User) error {
	q := l.db.Rebind(`UPDATE users SET points = CASE WHEN points > 0 THEN points - 1 ELSE 0 END, updated_at = ?
		WHERE id = ? RETURNING points, request_limit`)
	var c counters
	if err := sqlx.GetContext(ctx, l.db, &c, q, l.now(), u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	u.Points, u.Limit = c.Points, c.Limit
	return nil
}

// SetLimit changes a user's limit. A limit below the user's current points
// is refused so 0 <= points <= limit keeps holding.
func (l *Ledger) SetLimit(ctx context.Context, userID int64, limit int) (*entity.User, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	q := l.db.Rebind(`UPDATE users SET request_limit = ?, updated_at = ?
		WHERE id = ? AND points <= ? RETURNING points, request_limit`)
	var c counters
	err := sqlx.GetContext(ctx, l.db, &c, q, limit, l.now(), userID, limit)
	if err == nil {
		return &entity.User{ID: userID, Points: c.Points, Limit: c.Limit}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var points int
	err = sqlx.GetContext(ctx, l.db, &points, l.db.Rebind(`SELECT points FROM users WHERE id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, ErrLimitBelowPoints
}
