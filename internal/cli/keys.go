package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchapi-console/internal/apikeys"
	"github.com/searchapi-console/internal/model"
)

var errNotLoggedIn = errors.New("not logged in; run `searchctl login` first")

// loggedIn opens the app and fails fast when there is no session.
func (o *options) loggedIn(cmd *cobra.Command) (*app, error) {
	a, err := o.open(cmd)
	if err != nil {
		return nil, err
	}
	if !a.session.IsLoggedIn() {
		a.Close()
		return nil, errNotLoggedIn
	}
	return a, nil
}

func newKeysCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newKeysListCmd(opts), newKeysCreateCmd(opts), newKeysDeleteCmd(opts))
	return cmd
}

type keyRow struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Token        string             `json:"token"`
	Status       model.APIKeyStatus `json:"status"`
	RequestsUsed int64              `json:"requests_used"`
	RequestLimit int64              `json:"request_limit"`
	Package      string             `json:"package"`
	CreatedAt    time.Time          `json:"created_at"`
}

type keysOutput struct {
	apikeys.View
	Items []keyRow      `json:"items"`
	Stats apikeys.Stats `json:"stats"`
}

func newKeysListCmd(opts *options) *cobra.Command {
	var (
		query  string
		status string
		page   int
		reveal []int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := apikeys.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			a, err := opts.loggedIn(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			reg := apikeys.New(a.client, a.session, a.cfg.PageSize)
			if err := reg.Refresh(cmd.Context()); err != nil {
				return err
			}
			reg.SetQuery(query)
			reg.SetStatusFilter(filter)
			reg.SetPage(page)
			for _, id := range reveal {
				reg.ToggleVisibility(id)
			}

			view := reg.View()
			out := keysOutput{View: view, Stats: reg.Stats(), Items: make([]keyRow, 0, len(view.Items))}
			for _, k := range view.Items {
				out.Items = append(out.Items, keyRow{
					ID:           k.ID,
					Name:         k.Name,
					Token:        reg.DisplayToken(k),
					Status:       k.Status(),
					RequestsUsed: k.RequestsUsed,
					RequestLimit: k.Package.RequestLimit,
					Package:      k.Package.Name,
					CreatedAt:    k.CreatedAt,
				})
			}

			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if out.Filtered == 0 {
				fmt.Fprintln(w, "No API keys found.")
			} else {
				tw := newTable(w)
				fmt.Fprintln(tw, "ID\tNAME\tTOKEN\tSTATUS\tREQUESTS\tPACKAGE\tCREATED")
				for _, r := range out.Items {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
						r.ID, r.Name, r.Token, r.Status, r.RequestsUsed, r.RequestLimit, r.Package, r.CreatedAt.Format(time.DateOnly))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(w, "\nPage %d of %d (%d of %d keys)\n", out.Page, out.TotalPages, out.Filtered, out.Total)
			}
			fmt.Fprintf(w, "Total keys: %d  Active: %d  Requests: %d\n", out.Stats.TotalKeys, out.Stats.ActiveKeys, out.Stats.TotalRequests)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by name or token")
	cmd.Flags().StringVar(&status, "status", "all", "filter by status: all, active or inactive")
	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	cmd.Flags().Int64SliceVar(&reveal, "reveal", nil, "show the full token for these key ids")
	return cmd
}

func newKeysCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an API key and print its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loggedIn(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			reg := apikeys.New(a.client, a.session, a.cfg.PageSize)
			key, err := reg.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), key)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Created key %d (%s)\n", key.ID, key.Name)
			fmt.Fprintf(w, "Token: %s\n", key.Token)
			fmt.Fprintln(w, "Store it now; it will be masked from here on.")
			return nil
		},
	}
}

func newKeysDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid key id %q", args[0])
			}
			a, err := opts.loggedIn(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			reg := apikeys.New(a.client, a.session, a.cfg.PageSize)
			if err := reg.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted key %d\n", id)
			return nil
		},
	}
}
