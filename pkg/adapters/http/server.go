// Package http exposes the derivation engine over REST. Sessions are
// addressed by ID in the path; each mutating request briefly binds the
// session, so two clients fighting over one session see 409s instead of
// interleaved ledgers.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/derivekit/derivekit/internal/logging"
	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/session"
)

// Server routes REST requests onto the session manager.
type Server struct {
	mgr    *session.Manager
	logger *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler builds the router. When gatherer is non-nil a /metrics
// endpoint exposes it.
func NewHandler(mgr *session.Manager, gatherer prometheus.Gatherer, opts ...Option) http.Handler {
	s := &Server{
		mgr:    mgr,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/formulas", s.loadFormula)
			r.Post("/operations", s.applyOperation)
			r.Post("/manual", s.recordManual)
			r.Post("/notes", s.addNote)
			r.Get("/steps", s.listSteps)
			r.Get("/steps/{stepNumber}", s.getStep)
			r.Patch("/steps/{stepNumber}", s.updateStep)
			r.Delete("/steps/{stepNumber}", s.deleteStep)
			r.Post("/rollback", s.rollback)
			r.Post("/complete", s.complete)
			r.Post("/abort", s.abort)
			r.Get("/handoff", s.exportHandoff)
			r.Post("/handoff", s.importHandoff)
		})
	})

	r.Route("/results", func(r chi.Router) {
		r.Get("/", s.listResults)
		r.Get("/stats", s.resultStats)
		r.Get("/{resultID}", s.getResult)
		r.Patch("/{resultID}", s.updateResult)
		r.Delete("/{resultID}", s.deleteResult)
	})

	return r
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := ""

	var se *domain.StateError
	var pe *expr.ParseError
	var ce *domain.ComputationError
	var perr *domain.PersistenceError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrResultNotFound):
		status = http.StatusNotFound
	case errors.As(err, &se):
		kind = string(se.Kind)
		switch se.Kind {
		case domain.KindNotFound:
			status = http.StatusNotFound
		case domain.KindAlreadyActive, domain.KindAlreadyBound,
			domain.KindNotActive, domain.KindNotLastStep, domain.KindNothingToComplete:
			status = http.StatusConflict
		case domain.KindInvalidTarget, domain.KindInvalidPosition, domain.KindImmutableField:
			status = http.StatusUnprocessableEntity
		}
	case errors.As(err, &pe):
		status = http.StatusBadRequest
		kind = string(pe.Kind)
	case errors.As(err, &ce):
		status = http.StatusUnprocessableEntity
		kind = "computation_failed"
	case errors.As(err, &perr):
		status = http.StatusInternalServerError
		kind = "persistence_failed"
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return &expr.ParseError{
			Kind:     expr.KindMalformedSyntax,
			Message:  "invalid JSON body: " + err.Error(),
			Position: -1,
		}
	}
	return nil
}

// withBinding reserves the session for the duration of one request, so a
// concurrent holder is answered with AlreadyBound rather than queued.
func (s *Server) withBinding(w http.ResponseWriter, r *http.Request, fn func(sessionID string)) {
	id := chi.URLParam(r, "sessionID")
	scope := s.mgr.NewScope()
	if _, err := scope.Resume(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	defer scope.Detach()
	fn(id)
}
