package book

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/repo"
)

// Registry tracks custody and availability of books. Its mutators are
// meant to run inside the request lifecycle's transaction (see WithTx).
type Registry struct {
	repo *bookrepo.BookRepo
}

func NewRegistry(r *bookrepo.BookRepo) *Registry {
	return &Registry{repo: r}
}

func (g *Registry) WithTx(tx *sqlx.Tx) *Registry {
	return &Registry{repo: g.repo.WithTx(tx)}
}

// Reserve hides b from further requests. It reports false, without
// writing, when b is already reserved.
func (g *Registry) Reserve(ctx context.Context, b *entity.Book) (bool, error) {
	ok, err := g.repo.SetVisible(ctx, b.ID, true, false)
	if err != nil || !ok {
		return false, err
	}
	b.Visible = false
	return true, nil
}

// Release makes b requestable again. Releasing a visible book is a no-op.
func (g *Registry) Release(ctx context.Context, b *entity.Book) error {
	ok, err := g.repo.SetVisible(ctx, b.ID, false, true)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := g.repo.GetByID(ctx, b.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
	}
	b.Visible = true
	return nil
}

// TransferOwnership hands custody of b to newOwnerID.
func (g *Registry) TransferOwnership(ctx context.Context, b *entity.Book, newOwnerID int64) error {
	ok, err := g.repo.SetOwner(ctx, b.ID, newOwnerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	b.OwnerID = newOwnerID
	return nil
}
