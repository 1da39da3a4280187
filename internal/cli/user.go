package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/app"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/entity"
)

// readPassword masks input on a terminal and reads one line otherwise.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printUser(w io.Writer, u *entity.User) {
	fmt.Fprintf(w, "%-20s %-20s %-15s %-6s %-6s\n", "ID", "Username", "City", "Limit", "Points")
	fmt.Fprintf(w, "%-20d %-20s %-15s %-6d %-6d\n", u.ID, u.Username, u.City, u.Limit, u.Points)
}

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts and their request quota",
	}
	cmd.AddCommand(newUserCreateCommand(), newUserShowCommand(), newUserSetLimitCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var in user.SignupInput
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account, prompting for its password",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			in.Username = args[0]
			in.Password = pw
			u, err := a.Users.Signup(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.Logger.Infow("user created from cli", "user_id", u.ID, "username", u.Username)
			printUser(cmd.OutOrStdout(), u)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.City, "city", "", "city")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.IntVar(&in.Limit, "limit", 0, "open request limit (0 uses QUOTA_DEFAULT_LIMIT)")
	f.IntVar(&in.Points, "points", 0, "initial open request count")
	return cmd
}

func newUserShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print an account's quota state",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := a.Users.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		}),
	}
}

func newUserSetLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-limit <id> <limit>",
		Short: "Change how many open requests an account may hold",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			limit, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
			u, err := a.Ledger.SetLimit(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			a.Logger.Infow("request limit changed", "user_id", u.ID, "limit", u.Limit)
			if full, err := a.Users.Get(cmd.Context(), id); err == nil {
				u = full
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		}),
	}
}
