package cli

import (
	"github.com/spf13/cobra"

	"github.com/searchapi-console/internal/apikeys"
	"github.com/searchapi-console/internal/dashboard"
	"github.com/searchapi-console/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard JSON API locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.ListenAddr = addr
			}

			ctx := cmd.Context()
			sub, cancel := a.session.Subscribe()
			defer cancel()
			go server.Watch(ctx, sub)

			router := server.NewRouter(server.Deps{
				Config:    a.cfg,
				Session:   a.session,
				API:       a.client,
				Keys:      apikeys.New(a.client, a.session, a.cfg.PageSize),
				Dashboard: dashboard.New(a.client, a.session),
				Gatherer:  a.registry,
				Version:   Version,
			})
			return server.New(a.cfg, router).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to LISTEN_ADDR)")
	return cmd
}
