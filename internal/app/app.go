// Package app wires services on top of one database handle. Both the HTTP
// server and the admin CLI build on it.
package app

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/auth"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/quota"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request"
	reqrepo "github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/repo"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/router"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

// App holds the wired services.
type App struct {
	DB       *sqlx.DB
	Logger   *zap.SugaredLogger
	Users    *user.UserService
	Books    *book.Service
	Requests *request.Service
	Ledger   *quota.Ledger
	Tokens   *auth.TokenService
	Registry *prometheus.Registry
}

// Options override what New would otherwise read from the environment.
type Options struct {
	Auth         auth.Config
	DefaultLimit int
	IDs          *utilities.IDGenerator
	Hasher       user.PasswordHasher
}

// OptionsFromEnv collects Options from the environment. defaultNode is the
// snowflake node used when SNOWFLAKE_NODE is unset.
func OptionsFromEnv(defaultNode int64) (Options, error) {
	ids, err := utilities.IDGeneratorFromEnv(defaultNode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Auth:         auth.ConfigFromEnv(),
		DefaultLimit: quota.DefaultLimitFromEnv(),
		IDs:          ids,
	}, nil
}

// New builds every service on db.
func New(db *sqlx.DB, logger *zap.SugaredLogger, opts Options) (*App, error) {
	ids := opts.IDs
	if ids == nil {
		var err error
		if ids, err = utilities.NewIDGenerator(utilities.NodeAPI); err != nil {
			return nil, err
		}
	}
	tokens, err := auth.NewTokenService(opts.Auth)
	if err != nil {
		return nil, err
	}
	if len(opts.Auth.Secret) == 0 {
		logger.Warn("AUTH_SECRET not set; access tokens will not survive a restart")
	}

	reg := metrics.NewRegistry()
	lifecycle := metrics.NewLifecycle(reg)

	return &App{
		DB:       db,
		Logger:   logger,
		Users:    user.NewUserService(db, opts.Hasher, opts.DefaultLimit),
		Books:    book.NewService(db),
		Requests: request.NewService(db, ids, logger, request.WithMetrics(lifecycle)),
		Ledger:   quota.NewLedger(db),
		Tokens:   tokens,
		Registry: reg,
	}, nil
}

// Migrate creates the tables in dependency order.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.Users.Repo().EnsureTable(ctx); err != nil {
		return err
	}
	if err := a.Books.Repo().EnsureTable(ctx); err != nil {
		return err
	}
	return reqrepo.NewRequestRepo(a.DB).EnsureTable(ctx)
}

// Handler returns the full HTTP handler.
func (a *App) Handler() http.Handler {
	return router.RegisterRoutes(a.Logger, router.Handlers{
		Users:    user.NewHandler(a.Users, a.Tokens, a.Logger),
		Books:    book.NewHandler(a.Books, a.Logger),
		Requests: request.NewHandler(a.Requests, a.Logger),
		Tokens:   a.Tokens,
		Metrics:  metrics.Handler(a.Registry),
	})
}
