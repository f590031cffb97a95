package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/codeintel/internal/config"
	"github.com/dshills/codeintel/internal/metrics"
	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/internal/status"
	"github.com/dshills/codeintel/pkg/types"
)

// Searcher runs retrieval queries; *retrieval.Holder satisfies it
type Searcher interface {
	Search(ctx context.Context, q retrieval.Query) (*retrieval.Response, error)
}

// StatusReporter produces status snapshots
type StatusReporter interface {
	Report(ctx context.Context) (*status.Report, error)
}

// errorHandler tries to handle an error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server is the REST front end of the retrieval engine
type Server struct {
	search        Searcher
	status        StatusReporter
	logger        *log.Logger
	metrics       *metrics.Metrics
	metricsPath   string
	metricsH      http.Handler
	errorHandlers []errorHandler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics instruments requests and serves handler at path
func WithMetrics(m *metrics.Metrics, path string, handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
		s.metricsH = handler
	}
}

// NewServer creates a REST server
func NewServer(search Searcher, status StatusReporter, opts ...Option) *Server {
	s := &Server{
		search: search,
		status: status,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandlers = []errorHandler{
		messageHandler(types.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(types.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, CodeEmbeddingUnavailable),
	}
	return s
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.jsonRecoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLogger)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
	})
	if s.metricsH != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsH)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down within ShutdownTimeout
func (s *Server) Run(ctx context.Context, cfg config.HTTPConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// handleSearch handles GET /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSearchResponse(resp))
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := s.status.Report(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filterKeys are the query parameters passed through as filters
var filterKeys = []string{
	types.FilterPath,
	types.FilterSymbolKind,
	types.FilterPackage,
	types.FilterMemoryType,
	types.FilterTags,
	types.FilterSessionID,
	types.FilterStatus,
	types.FilterSince,
	types.FilterUntil,
}

func parseSearchQuery(r *http.Request) (retrieval.Query, error) {
	values := r.URL.Query()
	q := retrieval.Query{Text: values.Get("q")}

	for _, v := range values["doc_types"] {
		q.DocTypes = append(q.DocTypes, strings.Split(v, ",")...)
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return retrieval.Query{}, types.NewInvalidQueryError("limit must be an integer, got %q", raw)
		}
		q.Limit = limit
	}

	for _, key := range filterKeys {
		if v := values.Get(key); v != "" {
			if q.Filters == nil {
				q.Filters = make(types.Filters)
			}
			q.Filters[key] = v
		}
	}
	return q, nil
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Debug("Request rejected", "error", err)
			return
		}
	}
	s.logger.Error("Internal error", "error", err)
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// messageHandler reports the error text, which is safe for caller errors
func messageHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// sentinelHandler reports only the sentinel text
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// jsonRecoverer returns JSON instead of a plain text stacktrace
func (s *Server) jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("Panic recovered", "panic", rvr, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chiMiddleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency", time.Since(start),
			"response_bytes", ww.BytesWritten())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
