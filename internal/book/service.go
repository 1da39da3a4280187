package book

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/repo"
)

// sentinel errors for common failure modes
var (
	ErrNotFound      = errors.New("book not found")
	ErrOwnerNotFound = errors.New("owner not found")
	ErrTitleRequired = errors.New("title is required")
)

// Service lists books and answers lookups. Visibility and custody changes
// go through Registry.
type Service struct {
	repo  *bookrepo.BookRepo
	users *userrepo.UserRepo
}

func NewService(db *sqlx.DB) *Service {
	return &Service{repo: bookrepo.NewBookRepo(db), users: userrepo.NewUserRepo(db)}
}

// Repo exposes the repository so the lifecycle engine can build a Registry
// on the same handle.
func (s *Service) Repo() *bookrepo.BookRepo { return s.repo }

// Register lists a new, visible book owned by ownerID.
func (s *Service) Register(ctx context.Context, ownerID int64, title, author, publisher string) (*entity.Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	b := &entity.Book{
		Title:     title,
		Author:    strings.TrimSpace(author),
		Publisher: strings.TrimSpace(publisher),
		OwnerID:   ownerID,
		Visible:   true,
	}
	if _, err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Get returns a book by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns books matching f.
func (s *Service) List(ctx context.Context, f entity.Filter) ([]*entity.Book, error) {
	return s.repo.List(ctx, f)
}
