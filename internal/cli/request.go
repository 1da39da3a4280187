package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/app"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/request/entity"
)

func printRequests(w io.Writer, reqs ...*entity.Request) {
	fmt.Fprintf(w, "%-20s %-20s %-20s %-20s %-9s %s\n", "ID", "Book", "Requester", "Owner", "State", "Accepted")
	for _, r := range reqs {
		accepted := "-"
		if r.AcceptDate != nil {
			accepted = r.AcceptDate.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-20d %-20d %-20d %-20d %-9s %s\n",
			r.ID, r.BookID, r.ReqUserID, r.OwnerUserID, r.State(), accepted)
	}
}

func newRequestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Inspect and drive borrow requests",
	}
	cmd.AddCommand(
		newRequestCreateCommand(),
		newRequestGetCommand(),
		newRequestListCommand(),
		newRequestAcceptCommand(),
		newRequestResolveCommand(),
	)
	return cmd
}

func newRequestCreateCommand() *cobra.Command {
	var requester, book, owner int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a borrow request on behalf of a user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			r, err := a.Requests.Create(cmd.Context(), requester, entity.CreatePayload{
				BookID:      book,
				ReqUserID:   requester,
				OwnerUserID: owner,
			})
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("user %d has no request quota left", requester)
			}
			printRequests(cmd.OutOrStdout(), r)
			return nil
		}),
	}
	f := cmd.Flags()
	f.Int64Var(&requester, "requester", 0, "requesting user id")
	f.Int64Var(&book, "book", 0, "book id")
	f.Int64Var(&owner, "owner", 0, "expected owner id (defaults to the book's owner)")
	_ = cmd.MarkFlagRequired("requester")
	_ = cmd.MarkFlagRequired("book")
	return cmd
}

func newRequestGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one open request",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := a.Requests.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printRequests(cmd.OutOrStdout(), r)
			return nil
		}),
	}
}

func newRequestListCommand() *cobra.Command {
	var f entity.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open requests",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			reqs, err := a.Requests.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			printRequests(cmd.OutOrStdout(), reqs...)
			return nil
		}),
	}
	fl := cmd.Flags()
	fl.Int64Var(&f.OwnerUserID, "owner", 0, "only requests addressed to this owner")
	fl.Int64Var(&f.ReqUserID, "requester", 0, "only requests made by this user")
	fl.Int64Var(&f.BookID, "book", 0, "only requests for this book")
	fl.UintVar(&f.Limit, "limit", 0, "maximum rows")
	return cmd
}

func newRequestAcceptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id>",
		Short: "Stamp an open request with the current time as its accept date",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := a.Requests.Accept(cmd.Context(), id)
			if err != nil {
				return err
			}
			printRequests(cmd.OutOrStdout(), r)
			return nil
		}),
	}
}

func newRequestResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Close a request, handing the book to the requester",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := a.Requests.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %d resolved; book %d now held by user %d\n",
				r.ID, r.BookID, r.ReqUserID)
			return nil
		}),
	}
}
