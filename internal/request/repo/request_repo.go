package repo

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/entity"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RequestRepo provides data access for the requests table. A row lives
// only while its request is open.
type RequestRepo struct {
	db sqlx.ExtContext
}

func NewRequestRepo(db sqlx.ExtContext) *RequestRepo { return &RequestRepo{db: db} }

// WithTx returns a repo whose statements run inside tx.
func (r *RequestRepo) WithTx(tx *sqlx.Tx) *RequestRepo { return &RequestRepo{db: tx} }

// EnsureTable creates the requests table. The unique index on book_id keeps
// at most one open request per book.
func (r *RequestRepo) EnsureTable(ctx context.Context) error {
	idType, tsType := "BIGINT", "TIMESTAMPTZ"
	if database.IsSQLite(r.db) {
		idType, tsType = "INTEGER", "TIMESTAMP"
	}
	return database.EnsureSchema(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS requests (
			id ` + idType + ` PRIMARY KEY,
			book_id ` + idType + ` NOT NULL REFERENCES books(id),
			req_user_id ` + idType + ` NOT NULL REFERENCES users(id),
			owner_user_id ` + idType + ` NOT NULL REFERENCES users(id),
			created_at ` + tsType + ` NOT NULL,
			accept_date ` + tsType + `
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_requests_book_id ON requests (book_id)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_req_user_id ON requests (req_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_owner_user_id ON requests (owner_user_id)`,
	})
}

const columns = `id, book_id, req_user_id, owner_user_id, created_at, accept_date`

// Insert stores a new request. The caller assigns the id.
func (r *RequestRepo) Insert(ctx context.Context, req *entity.Request) error {
	q := r.db.Rebind(`INSERT INTO requests (` + columns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, req.ID, req.BookID, req.ReqUserID, req.OwnerUserID, req.CreatedAt, req.AcceptDate)
	return err
}

// GetByID fetches a request or sql.ErrNoRows.
func (r *RequestRepo) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	var req entity.Request
	q := r.db.Rebind(`SELECT ` + columns + ` FROM requests WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &req, q, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// SetAcceptDate writes accept_date and returns the stored row, or
// sql.ErrNoRows when the request no longer exists.
func (r *RequestRepo) SetAcceptDate(ctx context.Context, id int64, at *time.Time) (*entity.Request, error) {
	var req entity.Request
	q := r.db.Rebind(`UPDATE requests SET accept_date = ? WHERE id = ? RETURNING ` + columns)
	if err := sqlx.GetContext(ctx, r.db, &req, q, at, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// Delete removes the row and returns what it held, or sql.ErrNoRows.
// Two concurrent deletes of one id cannot both succeed.
func (r *RequestRepo) Delete(ctx context.Context, id int64) (*entity.Request, error) {
	var req entity.Request
	q := r.db.Rebind(`DELETE FROM requests WHERE id = ? RETURNING ` + columns)
	if err := sqlx.GetContext(ctx, r.db, &req, q, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns open requests matching f, newest first.
func (r *RequestRepo) List(ctx context.Context, f entity.Filter) ([]*entity.Request, error) {
	ds := goqu.Dialect(database.Dialect(r.db)).
		From("requests").
		Select("id", "book_id", "req_user_id", "owner_user_id", "created_at", "accept_date").
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc())

	ex := goqu.Ex{}
	if f.OwnerUserID != 0 {
		ex["owner_user_id"] = f.OwnerUserID
	}
	if f.ReqUserID != 0 {
		ex["req_user_id"] = f.ReqUserID
	}
	if f.BookID != 0 {
		ex["book_id"] = f.BookID
	}
	if len(ex) > 0 {
		ds = ds.Where(ex)
	}

	limit := f.Limit
	switch {
	case limit == 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	ds = ds.Limit(limit).Offset(f.Offset)

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	out := []*entity.Request{}
	if err := sqlx.SelectContext(ctx, r.db, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}
