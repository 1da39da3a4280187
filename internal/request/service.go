package request

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book"
	bookrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/repo"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/quota"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/entity"
	reqrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

// Service is the borrow request lifecycle engine. Every mutating call runs
// in one transaction that also carries its quota and book side effects.
type Service struct {
	db       *sqlx.DB
	repo     *reqrepo.RequestRepo
	users    *userrepo.UserRepo
	books    *bookrepo.BookRepo
	ledger   *quota.Ledger
	registry *book.Registry
	ids      *utilities.IDGenerator
	metrics  *metrics.Lifecycle
	logger   *zap.SugaredLogger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for created_at and Accept.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records every operation on m.
func WithMetrics(m *metrics.Lifecycle) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(db *sqlx.DB, ids *utilities.IDGenerator, logger *zap.SugaredLogger, opts ...Option) *Service {
	books := bookrepo.NewBookRepo(db)
	s := &Service{
		db:       db,
		repo:     reqrepo.NewRequestRepo(db),
		users:    userrepo.NewUserRepo(db),
		books:    books,
		ledger:   quota.NewLedger(db),
		registry: book.NewRegistry(books),
		ids:      ids,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamps are stored with microsecond precision by Postgres
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Create opens a borrow request for requesterID. When the requester has no
// quota left it returns (nil, nil) and writes nothing.
func (s *Service) Create(ctx context.Context, requesterID int64, p entity.CreatePayload) (*entity.Request, error) {
	start := time.Now()
	if p.ReqUserID == 0 {
		p.ReqUserID = requesterID
	}
	if requesterID <= 0 || p.BookID <= 0 {
		s.metrics.Observe("create", metrics.OutcomeInvalid, start)
		return nil, ErrInvalidPayload
	}
	if p.ReqUserID != requesterID {
		s.metrics.Observe("create", metrics.OutcomeInvalid, start)
		return nil, ErrRequesterMismatch
	}

	var created *entity.Request
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := s.users.WithTx(tx)
		requester, err := users.GetByID(ctx, requesterID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return storageErr("create", err)
		}
		if !quota.CanRequest(requester) {
			return errQuotaExhausted
		}

		b, err := s.books.WithTx(tx).GetByID(ctx, p.BookID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookNotFound
		}
		if err != nil {
			return storageErr("create", err)
		}
		if p.OwnerUserID == 0 {
			p.OwnerUserID = b.OwnerID
		}
		if p.OwnerUserID != b.OwnerID {
			return ErrOwnerMismatch
		}
		if b.OwnerID == requesterID {
			return ErrSelfRequest
		}

		ok, err := s.ledger.WithTx(tx).Increment(ctx, requester)
		if err != nil {
			return storageErr("create", err)
		}
		if !ok {
			return errQuotaExhausted
		}
		ok, err = s.registry.WithTx(tx).Reserve(ctx, b)
		if err != nil {
			return storageErr("create", err)
		}
		if !ok {
			return ErrBookUnavailable
		}

		req := &entity.Request{
			ID:          s.ids.Next(),
			BookID:      b.ID,
			ReqUserID:   requesterID,
			OwnerUserID: p.OwnerUserID,
			CreatedAt:   s.timestamp(),
		}
		if err := s.repo.WithTx(tx).Insert(ctx, req); err != nil {
			return storageErr("create", err)
		}
		created = req
		return nil
	})

	switch {
	case errors.Is(err, errQuotaExhausted):
		s.logger.Debugw("request rejected: quota exhausted", "requester_id", requesterID, "book_id", p.BookID)
		s.metrics.Observe("create", metrics.OutcomeRejected, start)
		return nil, nil
	case err != nil:
		err = classify("create", err)
		s.metrics.Observe("create", outcomeOf(err), start)
		return nil, err
	}
	s.logger.Infow("request created",
		"request_id", created.ID, "book_id", created.BookID,
		"requester_id", created.ReqUserID, "owner_id", created.OwnerUserID)
	s.metrics.Observe("create", metrics.OutcomeOK, start)
	return created, nil
}

// Update applies the non-nil fields of p. Setting AcceptDate moves the
// request from pending to accepted; the book stays reserved.
func (s *Service) Update(ctx context.Context, id int64, p entity.UpdatePayload) (*entity.Request, error) {
	start := time.Now()
	var updated *entity.Request
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		cur, err := repo.GetByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return storageErr("update", err)
		}
		if p.AcceptDate == nil {
			updated = cur
			return nil
		}
		at := p.AcceptDate.UTC().Truncate(time.Microsecond)
		updated, err = repo.SetAcceptDate(ctx, id, &at)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return storageErr("update", err)
		}
		return nil
	})
	if err != nil {
		err = classify("update", err)
		s.metrics.Observe("update", outcomeOf(err), start)
		return nil, err
	}
	s.logger.Infow("request updated", "request_id", id, "state", updated.State())
	s.metrics.Observe("update", metrics.OutcomeOK, start)
	return updated, nil
}

// Accept marks the request accepted now.
func (s *Service) Accept(ctx context.Context, id int64) (*entity.Request, error) {
	now := s.now()
	return s.Update(ctx, id, entity.UpdatePayload{AcceptDate: &now})
}

// Delete resolves the request: custody of the book passes to the
// requester, the book becomes visible again under them, and the owner's
// points go down by one (never below zero). The row is removed and its
// last value returned.
func (s *Service) Delete(ctx context.Context, id int64) (*entity.Request, error) {
	start := time.Now()
	var deleted *entity.Request
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		req, err := s.repo.WithTx(tx).Delete(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return storageErr("delete", err)
		}

		b, err := s.books.WithTx(tx).GetByID(ctx, req.BookID)
		if err != nil {
			return storageErr("delete", err)
		}
		registry := s.registry.WithTx(tx)
		if err := registry.TransferOwnership(ctx, b, req.ReqUserID); err != nil {
			return storageErr("delete", err)
		}
		if err := registry.Release(ctx, b); err != nil {
			return storageErr("delete", err)
		}

		owner, err := s.users.WithTx(tx).GetByID(ctx, req.OwnerUserID)
		if err != nil {
			return storageErr("delete", err)
		}
		if err := s.ledger.WithTx(tx).Decrement(ctx, owner); err != nil {
			return storageErr("delete", err)
		}
		deleted = req
		return nil
	})
	if err != nil {
		err = classify("delete", err)
		s.metrics.Observe("delete", outcomeOf(err), start)
		return nil, err
	}
	s.logger.Infow("request resolved",
		"request_id", deleted.ID, "book_id", deleted.BookID,
		"new_owner_id", deleted.ReqUserID, "previous_owner_id", deleted.OwnerUserID)
	s.metrics.Observe("delete", metrics.OutcomeOK, start)
	return deleted, nil
}

// Get returns an open request.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return req, nil
}

// List returns open requests matching f.
func (s *Service) List(ctx context.Context, f entity.Filter) ([]*entity.Request, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, storageErr("list", err)
	}
	return out, nil
}

var domainErrors = []error{
	ErrNotFound, ErrInvalidPayload, ErrUserNotFound, ErrBookNotFound,
	ErrBookUnavailable, ErrOwnerMismatch, ErrRequesterMismatch, ErrSelfRequest,
}

// classify passes domain errors through and wraps anything else, such as
// a failed commit, as a StorageError.
func classify(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return storageErr(op, err)
}

func outcomeOf(err error) string {
	var se *StorageError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.As(err, &se):
		return metrics.OutcomeError
	default:
		return metrics.OutcomeInvalid
	}
}
