// Package server exposes the assessment pipeline over HTTP. Thin by
// intent: identity extraction, request decoding, and domain-error to
// status mapping live here; every policy decision stays in the pipeline.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aivet-io/aivet/internal/audit"
	aivetotel "github.com/aivet-io/aivet/internal/otel"
	"github.com/aivet-io/aivet/internal/requestctx"
	"github.com/aivet-io/aivet/internal/run"
	"github.com/aivet-io/aivet/internal/session"
)

const defaultTimeout = 15 * time.Second

// IdentityHeader names the caller. Requests without it fall back to the
// remote address, so anonymous callers still share one concurrency slot
// per source.
const IdentityHeader = "X-Aivet-Identity"

// Server holds the HTTP layer's dependencies.
type Server struct {
	router      *chi.Mux
	coordinator *run.Coordinator
	budgets     *session.Store
	audit       *audit.Store // nil when the trail is disabled
	version     string
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithAudit enables the audit read endpoints.
func WithAudit(store *audit.Store) Option {
	return func(s *Server) { s.audit = store }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds a Server.
func NewServer(coordinator *run.Coordinator, budgets *session.Store, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		coordinator: coordinator,
		budgets:     budgets,
		version:     "dev",
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured handler. The assessment route carries no
// request timeout; the session deadline inside the pipeline bounds it.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(aivetotel.Middleware())
	r.Use(identityMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Post("/v1/assessments", s.handleAssess)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultTimeout))
		r.Get("/v1/sessions/{id}/budget", s.handleBudget)
		r.Get("/v1/runs", s.handleRunsList)
		r.Get("/v1/runs/{id}/verdicts", s.handleVerdictsList)
	})

	return r
}

// identityMiddleware places the caller identity in the request context.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := r.Header.Get(IdentityHeader)
		if identity == "" {
			identity = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(requestctx.SetIdentity(r.Context(), identity)))
	})
}
