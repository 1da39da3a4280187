package book_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/repo"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/testdb"
)

func TestRegistry_Reserve(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	owner := testdb.GivenUser(t, db, 2, 0)
	b := testdb.GivenBook(t, db, owner.ID)
	reg := book.NewRegistry(bookrepo.NewBookRepo(db))

	ok, err := reg.Reserve(ctx, b)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, b.Visible)
	assert.False(t, testdb.ReloadBook(t, db, b.ID).Visible)

	ok, err = reg.Reserve(ctx, &entity.Book{ID: b.ID})
	require.NoError(t, err)
	assert.False(t, ok, "a reserved book cannot be reserved twice")
}

func TestRegistry_Release(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	owner := testdb.GivenUser(t, db, 2, 0)
	b := testdb.GivenBook(t, db, owner.ID)
	reg := book.NewRegistry(bookrepo.NewBookRepo(db))

	_, err := reg.Reserve(ctx, b)
	require.NoError(t, err)

	require.NoError(t, reg.Release(ctx, b))
	assert.True(t, b.Visible)
	assert.True(t, testdb.ReloadBook(t, db, b.ID).Visible)

	// releasing a visible book is a no-op
	require.NoError(t, reg.Release(ctx, b))
	assert.True(t, testdb.ReloadBook(t, db, b.ID).Visible)

	err = reg.Release(ctx, &entity.Book{ID: 777})
	assert.ErrorIs(t, err, book.ErrNotFound)
}

func TestRegistry_TransferOwnership(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	owner := testdb.GivenUser(t, db, 2, 0)
	next := testdb.GivenUser(t, db, 2, 0)
	b := testdb.GivenBook(t, db, owner.ID)
	reg := book.NewRegistry(bookrepo.NewBookRepo(db))

	require.NoError(t, reg.TransferOwnership(ctx, b, next.ID))
	assert.Equal(t, next.ID, b.OwnerID)
	assert.Equal(t, next.ID, testdb.ReloadBook(t, db, b.ID).OwnerID)

	err := reg.TransferOwnership(ctx, &entity.Book{ID: 777}, next.ID)
	assert.ErrorIs(t, err, book.ErrNotFound)
}

func TestService_RegisterAndList(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	alice := testdb.GivenUser(t, db, 2, 0)
	bob := testdb.GivenUser(t, db, 2, 0)
	svc := book.NewService(db)

	b1, err := svc.Register(ctx, alice.ID, "  Kobyz  ", "Author", "Press")
	require.NoError(t, err)
	assert.Equal(t, "Kobyz", b1.Title)
	assert.True(t, b1.Visible)

	b2, err := svc.Register(ctx, bob.ID, "Steppe", "", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, alice.ID, "   ", "", "")
	assert.ErrorIs(t, err, book.ErrTitleRequired)

	_, err = svc.Register(ctx, 9999, "Ghost", "", "")
	assert.ErrorIs(t, err, book.ErrOwnerNotFound)

	all, err := svc.List(ctx, entity.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b1.ID, all[0].ID)

	mine, err := svc.List(ctx, entity.Filter{OwnerID: bob.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b2.ID, mine[0].ID)

	_, err = book.NewRegistry(svc.Repo()).Reserve(ctx, b2)
	require.NoError(t, err)
	visible := true
	avail, err := svc.List(ctx, entity.Filter{Visible: &visible})
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, b1.ID, avail[0].ID)

	got, err := svc.Get(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kobyz", got.Title)

	_, err = svc.Get(ctx, 31337)
	assert.ErrorIs(t, err, book.ErrNotFound)
}
