package repo

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// BookRepo provides data access for the books table.
type BookRepo struct {
	db sqlx.ExtContext
}

func NewBookRepo(db sqlx.ExtContext) *BookRepo { return &BookRepo{db: db} }

// WithTx returns a repo whose statements run inside tx.
func (r *BookRepo) WithTx(tx *sqlx.Tx) *BookRepo { return &BookRepo{db: tx} }

// EnsureTable creates the books table and its owner index.
// Fields:
// - owner_id: current custodian, reassigned when a request resolves
// - visible: false while an open request holds the book
func (r *BookRepo) EnsureTable(ctx context.Context) error {
	if database.IsSQLite(r.db) {
		return database.EnsureSchema(ctx, r.db, []string{
			`CREATE TABLE IF NOT EXISTS books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				publisher TEXT NOT NULL DEFAULT '',
				owner_id INTEGER NOT NULL REFERENCES users(id),
				visible BOOLEAN NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_books_owner_id ON books (owner_id)`,
		})
	}
	return database.EnsureSchema(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			owner_id BIGINT NOT NULL REFERENCES users(id),
			visible BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_owner_id ON books (owner_id)`,
	})
}

const selectColumns = `SELECT id, title, author, publisher, owner_id, visible, created_at, updated_at FROM books`

// Create inserts a book and sets b.ID.
func (r *BookRepo) Create(ctx context.Context, b *entity.Book) (int64, error) {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	q := r.db.Rebind(`INSERT INTO books (title, author, publisher, owner_id, visible, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := sqlx.GetContext(ctx, r.db, &b.ID, q, b.Title, b.Author, b.Publisher, b.OwnerID, b.Visible, now, now); err != nil {
		return 0, err
	}
	return b.ID, nil
}

// GetByID fetches a book or sql.ErrNoRows.
func (r *BookRepo) GetByID(ctx context.Context, id int64) (*entity.Book, error) {
	var b entity.Book
	if err := sqlx.GetContext(ctx, r.db, &b, r.db.Rebind(selectColumns+` WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns books matching f ordered by id.
func (r *BookRepo) List(ctx context.Context, f entity.Filter) ([]*entity.Book, error) {
	ds := goqu.Dialect(database.Dialect(r.db)).
		From("books").
		Select("id", "title", "author", "publisher", "owner_id", "visible", "created_at", "updated_at").
		Order(goqu.I("id").Asc())
	if f.OwnerID != 0 {
		ds = ds.Where(goqu.C("owner_id").Eq(f.OwnerID))
	}
	if f.Visible != nil {
		ds = ds.Where(goqu.C("visible").Eq(*f.Visible))
	}
	ds = ds.Limit(pageSize(f.Limit)).Offset(f.Offset)

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	books := []*entity.Book{}
	if err := sqlx.SelectContext(ctx, r.db, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// SetVisible flips visibility only when the stored flag equals from.
// It reports whether a row changed.
func (r *BookRepo) SetVisible(ctx context.Context, id int64, from, to bool) (bool, error) {
	q := r.db.Rebind(`UPDATE books SET visible = ?, updated_at = ? WHERE id = ? AND visible = ?`)
	res, err := r.db.ExecContext(ctx, q, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetOwner reassigns the book's custodian. It reports whether the book exists.
func (r *BookRepo) SetOwner(ctx context.Context, id, ownerID int64) (bool, error) {
	q := r.db.Rebind(`UPDATE books SET owner_id = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, ownerID, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func pageSize(n uint) uint {
	switch {
	case n == 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}
