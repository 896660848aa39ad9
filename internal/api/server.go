package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"beatshop/internal/catalog"
	"beatshop/internal/config"
	"beatshop/internal/ingest"
	"beatshop/internal/logging"
	"beatshop/internal/notifications"
	"beatshop/internal/preflight"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

// RequestIDHeader carries the correlation ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// UploadCodeHeader may carry the upload code instead of the "code" form field.
const UploadCodeHeader = "X-Upload-Code"

// multipartOverhead is allowed on top of the upload ceiling for form
// boundaries and the code field.
const multipartOverhead = 1 << 20

// Options wires the services the API exposes.
type Options struct {
	Config   *config.Config
	Catalog  *catalog.Service
	Ingest   *ingest.Service
	Backend  storage.Backend
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Server implements the HTTP API.
type Server struct {
	cfg      *config.Config
	catalog  *catalog.Service
	ingest   *ingest.Service
	backend  storage.Backend
	notifier notifications.Service
	logger   *slog.Logger
	handler  http.Handler
}

// NewServer builds the route table.
func NewServer(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		catalog:  opts.Catalog,
		ingest:   opts.Ingest,
		backend:  opts.Backend,
		notifier: opts.Notifier,
		logger:   logging.NewComponentLogger(opts.Logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/categories/{category}/beats", s.handleListBeats)
	mux.HandleFunc("POST /api/categories/{category}/beats", s.handleUpload)
	mux.HandleFunc("GET /api/categories/{category}/beats/{name}", s.handleDownload)
	mux.HandleFunc("GET /api/categories/{category}/beats/{name}/preview", s.handlePreview)
	s.handler = s.withRequestID(mux)
	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "http request",
			logging.String(logging.FieldRequestID, id),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Int64("bytes", rec.bytes),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err to a status code and body. Server-side failures are
// also reported to the operator.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := services.HTTPStatus(err)
	resp := ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
	if rejection, ok := asRejection(err); ok {
		resp.Reason = string(rejection.Reason)
		resp.Error = rejection.Message
		status = rejectionStatus(rejection.Reason)
	}
	ctx := r.Context()
	if id, ok := services.RequestIDFromContext(ctx); ok {
		resp.RequestID = id
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "request failed", "request_failed",
			logging.String(logging.FieldOperation, operation),
			logging.String(logging.FieldErrorHint, resp.Kind),
			logging.Error(err),
		)
		s.reportError(ctx, operation, err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) reportError(ctx context.Context, operation string, err error) {
	if s.notifier == nil {
		return
	}
	// Detached so a client disconnect does not cancel the alert.
	notifyCtx := context.WithoutCancel(ctx)
	if nerr := s.notifier.Publish(notifyCtx, notifications.EventError, notifications.Payload{
		"context": operation,
		"error":   err,
	}); nerr != nil {
		s.logger.Warn("error notification failed", logging.Error(nerr))
	}
}

func rejectionStatus(reason ingest.Reason) int {
	switch reason {
	case ingest.ReasonBadCode:
		return http.StatusForbidden
	case ingest.ReasonTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) runPreflight(ctx context.Context) StatusResponse {
	resp := StatusResponse{
		Categories:   []string{},
		Dependencies: FromDependencyStatuses(preflight.CheckSystemDeps(ctx, s.cfg)),
		Checks:       FromPreflight(preflight.RunAll(ctx, s.cfg, s.backend)),
	}
	if s.backend != nil {
		resp.StorageBackend = s.backend.Name()
	}
	if s.catalog != nil {
		for _, c := range s.catalog.Categories().All() {
			resp.Categories = append(resp.Categories, string(c))
		}
	}
	return resp
}
