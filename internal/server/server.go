package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hongminglow/todo-api/internal/apierr"
	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/credentials"
	"github.com/hongminglow/todo-api/internal/http/handlers"
	"github.com/hongminglow/todo-api/internal/http/respond"
	"github.com/hongminglow/todo-api/internal/middleware"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/telemetry"
	"github.com/hongminglow/todo-api/internal/upload"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, uploader upload.Uploader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := telemetry.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	creds := credentials.NewService(store, cfg.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Tokens)
	requireUser := middleware.Authenticate(tokens, creds, metrics)

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.Logging(logger),
		chimw.Recoverer,
		middleware.Tracing,
		middleware.Metrics(metrics),
		middleware.CORS(cfg.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, apierr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, apierr.New(http.StatusMethodNotAllowed, "method not allowed"))
	})

	handlers.NewHealthHandler(time.Now()).Register(r)
	r.Method(http.MethodGet, "/metrics", metricsHandler(registry))

	r.Route("/api/v1/user", func(r chi.Router) {
		handlers.NewAuthHandler(creds, tokens, uploader, cfg, metrics).Register(r, requireUser)
		handlers.NewTodoHandler(store, store, uploader, cfg.Upload).Register(r, requireUser)
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Addr is the address Start listens on.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
