package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrEmailTaken       = errors.New("email already registered")
	ErrUsernameRequired = errors.New("username required")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrInvalidQuota     = errors.New("points must be between 0 and limit")
)

const minPasswordLen = 8

// SignupInput carries the fields a new account is created from.
type SignupInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	City      string
	Phone     string
	// Limit overrides the default quota when positive.
	Limit int
	// Points seeds the open-request counter of an imported account.
	Points int
}

// UserService handles account creation, password authentication and lookups.
type UserService struct {
	repo         *userrepo.UserRepo
	hasher       PasswordHasher
	defaultLimit int
}

func NewUserService(db *sqlx.DB, hasher PasswordHasher, defaultLimit int) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if defaultLimit <= 0 {
		defaultLimit = entity.DefaultLimit
	}
	return &UserService{repo: userrepo.NewUserRepo(db), hasher: hasher, defaultLimit: defaultLimit}
}

// Repo exposes the repository so the lifecycle engine can share it.
func (s *UserService) Repo() *userrepo.UserRepo { return s.repo }

// Signup creates a user with password (hashing inside).
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*entity.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	limit := in.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if in.Points < 0 || in.Points > limit {
		return nil, ErrInvalidQuota
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	var email *string
	if e := strings.ToLower(strings.TrimSpace(in.Email)); e != "" {
		email = &e
	}
	u := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		City:         strings.TrimSpace(in.City),
		Phone:        strings.TrimSpace(in.Phone),
		Limit:        limit,
		Points:       in.Points,
	}
	if _, err := s.repo.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, s.conflict(ctx, username)
		}
		return nil, err
	}
	return u, nil
}

// conflict names which unique column a failed insert collided on. The
// username check before the insert does not stop a concurrent signup.
func (s *UserService) conflict(ctx context.Context, username string) error {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrBadCredentials
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		} // avoid user enumeration
		return nil, err
	}
	if u.PasswordHash == "" || !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
