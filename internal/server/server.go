package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/apikeys"
	"github.com/searchapi-console/internal/config"
	"github.com/searchapi-console/internal/dashboard"
	"github.com/searchapi-console/internal/handler"
	"github.com/searchapi-console/internal/middleware"
	"github.com/searchapi-console/internal/model"
)

const shutdownTimeout = 10 * time.Second

// Login attempt limits for the local API.
const (
	maxLoginFailures   = 5
	loginFailureWindow = 5 * time.Minute
	loginBlockDuration = 15 * time.Minute
)

// Session is what the router needs from the session controller.
type Session interface {
	handler.Session
	IsLoggedIn() bool
}

// API is what the router needs from the API client.
type API interface {
	handler.Registrar
	handler.Searcher
}

// Deps are the components the local dashboard API is built from.
type Deps struct {
	Config    *config.Config
	Session   Session
	API       API
	Keys      *apikeys.Registry
	Dashboard *dashboard.Loader
	Gatherer  prometheus.Gatherer
	Version   string
}

// NewRouter builds the local dashboard API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	if len(d.Config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Config.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Method(http.MethodGet, "/healthz", handler.NewHealthHandler(d.Session, d.Config.APIURL, d.Version))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	loginLimiter := middleware.NewAuthAttemptLimiter(maxLoginFailures, loginFailureWindow, loginBlockDuration)
	searchKeyLimiter := middleware.NewAuthAttemptLimiter(maxLoginFailures, loginFailureWindow, loginBlockDuration)
	searchLimiter := middleware.NewRateLimiter(d.Config.SearchRateLimit, d.Config.SearchRateWindow)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		r.Method(http.MethodGet, "/session", handler.NewGetSessionHandler(d.Session))
		r.With(middleware.LoginAttempts(loginLimiter)).
			Method(http.MethodPost, "/session/login", handler.NewLoginHandler(d.Session))
		r.Method(http.MethodPost, "/session/logout", handler.NewLogoutHandler(d.Session))
		r.Method(http.MethodPost, "/register", handler.NewRegisterHandler(d.API))

		r.With(middleware.SearchKeyAuth(searchKeyLimiter), middleware.RateLimitMiddleware(searchLimiter)).
			Method(http.MethodPost, "/search", handler.NewSearchHandler(d.API))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(d.Session))

			r.Method(http.MethodGet, "/keys", handler.NewListKeysHandler(d.Keys))
			r.Method(http.MethodPost, "/keys", handler.NewCreateKeyHandler(d.Keys))
			r.Method(http.MethodDelete, "/keys/{id}", handler.NewDeleteKeyHandler(d.Keys))
			r.Method(http.MethodPost, "/keys/{id}/visibility", handler.NewToggleVisibilityHandler(d.Keys))
			r.Method(http.MethodGet, "/dashboard", handler.NewDashboardHandler(d.Dashboard))
		})
	})

	return r
}

// Server is the local dashboard HTTP server.
type Server struct {
	http *http.Server
}

func New(cfg *config.Config, h http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("dashboard API listening")
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down dashboard API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Watch logs session transitions until ctx is cancelled.
func Watch(ctx context.Context, sub <-chan model.SessionState) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sub:
			if !ok {
				return
			}
			log.Info().Str("status", string(s.Status)).Uint64("generation", s.Generation).Msg("session state changed")
		}
	}
}
