// Package server exposes the schema and submission gateways over HTTP and
// serves a server-rendered version of the active form.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goliatone/go-theme"

	"github.com/goliatone/go-dynform/internal/config"
	"github.com/goliatone/go-dynform/internal/events"
	"github.com/goliatone/go-dynform/internal/metrics"
	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/renderers/html"
)

const uploadPath = "/api/upload/schema"

// uploadSlack is the multipart envelope allowed on top of the file ceiling.
const uploadSlack = 64 << 10

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPConfig applies listen, body and rate limit settings.
func WithHTTPConfig(cfg config.HTTPConfig) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithMetrics records request and domain counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithEvents announces publishes and submissions.
func WithEvents(p events.Publisher) Option {
	return func(s *Server) {
		if p != nil {
			s.events = p
		}
	}
}

// WithRenderer replaces the HTML form renderer.
func WithRenderer(r render.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithTheme styles the HTML form.
func WithTheme(selection *theme.Selection) Option {
	return func(s *Server) {
		s.theme = render.ThemeConfig(selection)
	}
}

// WithVersion sets the version reported by /healthz and the OpenAPI export.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// Server serves the dynform API.
type Server struct {
	schemas     gateway.SchemaGateway
	submissions gateway.SubmissionGateway

	cfg      config.HTTPConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	events   events.Publisher
	renderer render.Renderer
	theme    *theme.RendererConfig
	version  string

	limiter *limiter
	forms   *formSessions
	handler http.Handler
}

// New wires the routes. The HTML renderer defaults to the embedded templates.
func New(schemas gateway.SchemaGateway, submissions gateway.SubmissionGateway, opts ...Option) (*Server, error) {
	if schemas == nil || submissions == nil {
		return nil, errors.New("server: schema and submission gateways are required")
	}
	s := &Server{
		schemas:     schemas,
		submissions: submissions,
		cfg:         config.Default().HTTP,
		logger:      slog.Default(),
		events:      events.Nop{},
		version:     "dev",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.renderer == nil {
		r, err := html.New()
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = 1 << 20
	}
	if s.cfg.MaxUploadBytes <= 0 {
		s.cfg.MaxUploadBytes = gateway.MaxSchemaFileBytes
	}
	if rl := s.cfg.RateLimit; rl.Requests > 0 && rl.Window > 0 {
		s.limiter = newLimiter(rl.Requests, rl.Window, rl.Burst)
	}
	s.forms = newFormSessions(30*time.Minute, time.Now)
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/schemas/active", s.handleActiveSchema)
	mux.HandleFunc("GET /api/schemas/active/openapi", s.handleActiveOpenAPI)
	mux.HandleFunc("GET /api/schemas/meta", s.handleMetaSchema)
	mux.HandleFunc("GET /api/schemas", s.handleListSchemas)
	mux.HandleFunc("POST /api/schemas", s.handlePublishSchema)
	mux.HandleFunc("PUT /api/schemas/{id}/activate", s.handleActivateSchema)
	mux.HandleFunc("POST "+uploadPath, s.handleUploadSchema)

	mux.HandleFunc("GET /api/submissions", s.handleListSubmissions)
	mux.HandleFunc("POST /api/submissions", s.handleCreateSubmission)
	mux.HandleFunc("GET /api/submissions/{id}", s.handleGetSubmission)

	mux.HandleFunc("GET /form", s.handleFormPage)
	mux.HandleFunc("POST /form", s.handleFormPost)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServerFS(html.AssetsFS())))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = s.withBodyLimit(h)
	h = s.withRateLimit(h)
	h = s.withRecovery(h)
	h = s.withAccessLog(h)
	h = s.withRequestID(h)
	return h
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.logger.Info("server: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.close()
	}
	s.events.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}
