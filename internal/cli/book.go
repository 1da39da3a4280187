package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/app"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/book/entity"
)

func printBooks(w io.Writer, books ...*entity.Book) {
	fmt.Fprintf(w, "%-20s %-30s %-25s %-20s %-8s\n", "ID", "Title", "Author", "Owner", "Visible")
	for _, b := range books {
		fmt.Fprintf(w, "%-20d %-30s %-25s %-20d %-8t\n", b.ID, b.Title, b.Author, b.OwnerID, b.Visible)
	}
}

func newBookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Register and list books",
	}
	cmd.AddCommand(newBookAddCommand(), newBookListCommand())
	return cmd
}

func newBookAddCommand() *cobra.Command {
	var (
		owner             string
		author, publisher string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Register a book under an owner",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			ownerID, err := parseID(owner)
			if err != nil {
				return fmt.Errorf("--owner: %w", err)
			}
			b, err := a.Books.Register(cmd.Context(), ownerID, args[0], author, publisher)
			if err != nil {
				return err
			}
			a.Logger.Infow("book registered from cli", "book_id", b.ID, "owner_id", b.OwnerID)
			printBooks(cmd.OutOrStdout(), b)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&owner, "owner", "", "owner user id")
	f.StringVar(&author, "author", "", "author")
	f.StringVar(&publisher, "publisher", "", "publisher")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newBookListCommand() *cobra.Command {
	var (
		owner     int64
		available bool
		limit     uint
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			f := entity.Filter{OwnerID: owner, Limit: limit}
			if available {
				v := true
				f.Visible = &v
			}
			books, err := a.Books.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			printBooks(cmd.OutOrStdout(), books...)
			return nil
		}),
	}
	fl := cmd.Flags()
	fl.Int64Var(&owner, "owner", 0, "only books held by this user")
	fl.BoolVar(&available, "available", false, "only books not reserved by an open request")
	fl.UintVar(&limit, "limit", 0, "maximum rows")
	return cmd
}
