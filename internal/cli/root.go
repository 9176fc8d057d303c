package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/config"
	"github.com/searchapi-console/internal/session"
	"github.com/searchapi-console/internal/store"
)

var Version = "dev"

type options struct {
	envFile string
	jsonOut bool
	verbose bool
}

// app is the wired set of components a command works with.
type app struct {
	cfg      *config.Config
	creds    store.CredentialStore
	client   *client.Client
	session  *session.Controller
	registry *prometheus.Registry
}

func (a *app) Close() {
	if err := a.creds.Close(); err != nil {
		log.Warn().Err(err).Msg("closing credential store")
	}
}

// open loads configuration and builds the app. The session is resolved
// from the persisted token before returning.
func (o *options) open(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := config.LoadFrom(ctx, o.envFile, envconfig.OsLookuper())
	if err != nil {
		return nil, err
	}
	setupLogging(cmd.ErrOrStderr(), cfg, o.verbose)

	creds, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cl := client.New(cfg.APIURL, creds,
		client.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		client.WithRateLimit(cfg.ClientRPS, cfg.ClientBurst),
		client.WithMetrics(client.NewMetrics(reg)),
		client.WithUserAgent("searchctl/"+Version),
	)

	sess := session.New(cl, creds)
	if err := sess.Init(ctx); err != nil {
		creds.Close()
		return nil, err
	}

	return &app{cfg: cfg, creds: creds, client: cl, session: sess, registry: reg}, nil
}

func setupLogging(w io.Writer, cfg *config.Config, verbose bool) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "searchctl",
		Short: "Manage a search API account from the terminal",
		Long: "searchctl logs in to the search API marketplace, manages API keys, " +
			"shows usage against your plan and runs searches. `searchctl serve` exposes " +
			"the same operations as a local JSON API for a dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before the environment")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of tables")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newRegisterCmd(opts),
		newWhoamiCmd(opts),
		newStatusCmd(opts),
		newKeysCmd(opts),
		newUsageCmd(opts),
		newSearchCmd(opts),
		newServeCmd(opts),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("searchctl %s\n", Version))

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		stop()
		os.Exit(1)
	}
}

// errorText prefers the user-facing message of client errors.
func errorText(err error) string {
	var ce *client.Error
	if errors.As(err, &ce) {
		return client.Message(ce)
	}
	return strings.TrimSpace(err.Error())
}
