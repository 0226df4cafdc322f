// Package http serves the SafeSea pages, the map API and the operational endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/flow"
	"github.com/couchcryptid/safesea/internal/mapview"
)

// App is the flow service as seen by the handlers.
type App interface {
	View(ctx context.Context, id string) (*flow.View, error)
	Session(ctx context.Context, id string) (*domain.Session, error)
	Handle(ctx context.Context, sess *domain.Session, form flow.Form, clientIP string) error
	SetZoom(ctx context.Context, sess *domain.Session, c domain.Coordinate) error
	Reset(ctx context.Context, id string) (*domain.Session, error)
	MapView(ctx context.Context, sess *domain.Session) (mapview.Model, error)
	Save(ctx context.Context, sess *domain.Session) error
	CheckReadiness(ctx context.Context) error
}

// Options configure the server.
type Options struct {
	SessionTTL time.Duration // session cookie lifetime
	CSRFKey    string        // 32 bytes; empty disables CSRF protection
	CSRFSecure bool          // require HTTPS for cookies and CSRF origin checks
}

// Server exposes the pages plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	app        App
	pages      *pages
	sessionTTL time.Duration
	secure     bool
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the page, API and operational routes.
func NewServer(addr string, app App, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		app:        app,
		pages:      mustParsePages(),
		sessionTTL: opts.SessionTTL,
		secure:     opts.CSRFSecure,
		logger:     logger,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("POST /{$}", s.handleEvent)
	mux.HandleFunc("POST /session/reset", s.handleReset)
	mux.HandleFunc("GET /api/map", s.handleMapJSON)
	mux.HandleFunc("GET /checkins/{id}/qr.png", s.handleQR)
	mux.Handle("GET /static/", staticHandler())

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(app))
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if opts.CSRFKey != "" {
		handler = csrfProtect(handler, opts)
	}
	s.httpServer.Handler = accessLog(handler, logger)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func csrfProtect(next http.Handler, opts Options) http.Handler {
	protect := csrf.Protect([]byte(opts.CSRFKey),
		csrf.Secure(opts.CSRFSecure),
		csrf.Path("/"),
		csrf.FieldName(csrfField),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)(next)
	if opts.CSRFSecure {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
