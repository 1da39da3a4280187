// Package cli is the admin command line: schema setup, account and book
// seeding, and manual request handling against the configured database.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/app"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

// env builds the App for one command run and releases it afterwards.
type env struct {
	app    *app.App
	logger *zap.Logger
}

func (e *env) close() {
	_ = e.logger.Sync()
	_ = e.app.DB.Close()
}

// opener is swapped in tests to point commands at a temp database.
var opener = func() (*env, error) {
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		return nil, err
	}
	opts, err := app.OptionsFromEnv(utilities.NodeCLI)
	if err != nil {
		db.Close()
		return nil, err
	}
	a, err := app.New(db, lg.Sugar(), opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &env{app: a, logger: lg}, nil
}

// withApp opens the App, runs fn and closes it.
func withApp(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := opener()
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cmd, args, e.app)
	}
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookcrossing",
		Short:         "Administer the bookcrossing lending exchange",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newUserCommand(),
		newBookCommand(),
		newRequestCommand(),
	)
	return root
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes if missing",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}),
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
