package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/dashboard"
	"github.com/searchapi-console/internal/model"
)

type usageOutput struct {
	Usage         *dashboard.Usage `json:"usage,omitempty"`
	UsageError    string           `json:"usage_error,omitempty"`
	Packages      []model.Package  `json:"packages,omitempty"`
	PackagesError string           `json:"packages_error,omitempty"`
}

func newUsageCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show request usage and subscribed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loggedIn(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := dashboard.New(a.client, a.session).Load(cmd.Context())
			if err != nil {
				return err
			}

			out := usageOutput{Usage: res.Usage, Packages: res.Packages}
			if res.UsageErr != nil {
				out.UsageError = client.Message(res.UsageErr)
			}
			if res.PackagesErr != nil {
				out.PackagesError = client.Message(res.PackagesErr)
			}

			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if out.Usage != nil {
				if len(out.Usage.Rows) == 0 {
					fmt.Fprintln(w, "No usage recorded yet.")
				} else {
					tw := newTable(w)
					fmt.Fprintln(tw, "KEY\tUSED\tLIMIT\tREMAINING\tUSED %\tSTATUS")
					for _, r := range out.Usage.Rows {
						name := r.Name
						if name == "" {
							name = fmt.Sprintf("#%d", r.TokenID)
						}
						fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f\t%s\n", name, r.RequestsUsed, r.RequestLimit, r.Remaining, r.Percentage, r.Level)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					s := out.Usage.Summary
					fmt.Fprintf(w, "\nTotal: %d of %d requests, average %.1f%% (%s)\n", s.TotalUsed, s.TotalLimit, s.AveragePercentage, s.Level)
				}
			}

			if res.PackagesErr == nil {
				fmt.Fprintln(w)
				if len(out.Packages) == 0 {
					fmt.Fprintln(w, "No packages.")
				} else {
					tw := newTable(w)
					fmt.Fprintln(tw, "PACKAGE\tREQUEST LIMIT\tEXPIRES")
					for _, p := range out.Packages {
						expires := "-"
						if p.ExpiresAt != nil {
							expires = p.ExpiresAt.Format("2006-01-02")
						}
						fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name, p.RequestLimit, expires)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
				}
			}

			// One half failing still shows the other.
			if res.UsageErr != nil {
				log.Error().Err(res.UsageErr).Msg("usage stats unavailable")
				fmt.Fprintln(cmd.ErrOrStderr(), "usage stats unavailable:", out.UsageError)
			}
			if res.PackagesErr != nil {
				log.Error().Err(res.PackagesErr).Msg("packages unavailable")
				fmt.Fprintln(cmd.ErrOrStderr(), "packages unavailable:", out.PackagesError)
			}
			if res.UsageErr != nil && res.PackagesErr != nil {
				return res.UsageErr
			}
			return nil
		},
	}
}
