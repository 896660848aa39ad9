package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"beatshop/internal/catalog"
	"beatshop/internal/config"
	"beatshop/internal/logging"
	"beatshop/internal/notifications"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const component = "ingest"

// Reason classifies an ingestion outcome.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonBadExtension Reason = "bad_extension"
	ReasonTooLarge     Reason = "too_large"
	ReasonBadCode      Reason = "bad_code"
	ReasonBadName      Reason = "bad_name"
	ReasonBadCategory  Reason = "bad_category"
)

// Request is one upload attempt.
type Request struct {
	Filename string
	// DeclaredSize is client metadata and only logged; the ceiling applies to
	// bytes actually read.
	DeclaredSize int64
	Category     string
	SuppliedCode string
	Payload      io.Reader
}

// Decision is the outcome of Ingest.
type Decision struct {
	Reason Reason           `json:"reason"`
	Ref    storage.AssetRef `json:"beat,omitzero"`
}

// Accepted reports whether the upload was stored.
func (d Decision) Accepted() bool { return d.Reason == ReasonOK }

// Rejection is returned for uploads that fail validation. It matches
// services.ErrValidation under errors.Is.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("upload rejected (%s): %s", r.Reason, r.Message)
}

// Unwrap exposes the validation marker.
func (r *Rejection) Unwrap() error { return services.ErrValidation }

// Options configures a Service.
type Options struct {
	Categories        catalog.Set
	AllowedExtensions []string
	MaxUploadMB       int
	SecretCode        string
	Backend           storage.Backend
	Notifier          notifications.Service
	Logger            *slog.Logger
}

// Service validates uploads and stores accepted ones.
type Service struct {
	categories catalog.Set
	allow      AllowList
	maxMB      int
	gate       SecretGate
	backend    storage.Backend
	notifier   notifications.Service
	logger     *slog.Logger
}

// New returns a Service.
func New(opts Options) *Service {
	exts := opts.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	maxMB := opts.MaxUploadMB
	if maxMB <= 0 {
		maxMB = DefaultMaxUploadMB
	}
	return &Service{
		categories: opts.Categories,
		allow:      NewAllowList(exts),
		maxMB:      maxMB,
		gate:       NewSecretGate(opts.SecretCode),
		backend:    opts.Backend,
		notifier:   opts.Notifier,
		logger:     logging.NewComponentLogger(opts.Logger, component),
	}
}

// NewFromConfig builds a Service from the ingest section.
func NewFromConfig(cfg *config.Config, categories catalog.Set, backend storage.Backend, notifier notifications.Service, logger *slog.Logger) *Service {
	return New(Options{
		Categories:        categories,
		AllowedExtensions: cfg.Ingest.AllowedExtensions,
		MaxUploadMB:       cfg.Ingest.MaxUploadMB,
		SecretCode:        cfg.Ingest.SecretCode,
		Backend:           backend,
		Notifier:          notifier,
		Logger:            logger,
	})
}

// MaxUploadBytes is the effective ceiling.
func (s *Service) MaxUploadBytes() int64 { return int64(s.maxMB) * 1024 * 1024 }

// Ingest validates req and stores it. Rejections return a Decision with the
// reason alongside a *Rejection error; storage failures return the backend's
// error unchanged.
func (s *Service) Ingest(ctx context.Context, req Request) (Decision, error) {
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()

	name := NormalizeName(req.Filename)
	if name == "" {
		return s.reject(logger, req, ReasonBadName, "filename is empty or hidden")
	}
	if !s.allow.Allows(name) {
		return s.reject(logger, req, ReasonBadExtension, fmt.Sprintf("extension of %q is not allowed", name))
	}
	category, ok := s.categories.Resolve(req.Category)
	if !ok {
		return s.reject(logger, req, ReasonBadCategory, fmt.Sprintf("unknown category %q", req.Category))
	}

	limit := s.MaxUploadBytes()
	var payload []byte
	if req.Payload != nil {
		data, err := io.ReadAll(io.LimitReader(req.Payload, limit+1))
		if err != nil {
			return Decision{}, services.Wrap(services.ErrValidation, component, "read", "could not read upload body", err)
		}
		payload = data
	}
	if !CheckSize(int64(len(payload)), s.maxMB) {
		return s.reject(logger, req, ReasonTooLarge, fmt.Sprintf("upload exceeds %d MB", s.maxMB))
	}
	if !s.gate.Admits(req.SuppliedCode) {
		return s.reject(logger, req, ReasonBadCode, "upload code does not match")
	}

	ref, err := s.backend.Put(ctx, string(category), name, bytes.NewReader(payload))
	if err != nil {
		logger.Warn("upload store failed",
			logging.String(logging.FieldCategory, string(category)),
			logging.String("beat", name),
			logging.String(logging.FieldEventType, "upload_store_failed"),
			logging.String(logging.FieldErrorHint, services.Kind(err)),
			logging.Error(err),
		)
		return Decision{}, err
	}

	logger.Info("beat uploaded",
		logging.String(logging.FieldCategory, ref.Category),
		logging.String("beat", ref.Name),
		logging.Int64("size_bytes", ref.Size),
		logging.Int64("declared_size", req.DeclaredSize),
		logging.String(logging.FieldEventType, "upload_accepted"),
		logging.Duration("elapsed", time.Since(start)),
	)
	s.notify(ctx, logger, ref)
	return Decision{Reason: ReasonOK, Ref: ref}, nil
}

func (s *Service) reject(logger *slog.Logger, req Request, reason Reason, message string) (Decision, error) {
	logger.Info("upload rejected",
		logging.String("reason", string(reason)),
		logging.String("filename", req.Filename),
		logging.String(logging.FieldCategory, req.Category),
		logging.String(logging.FieldEventType, "upload_rejected"),
	)
	return Decision{Reason: reason}, &Rejection{Reason: reason, Message: message}
}

func (s *Service) notify(ctx context.Context, logger *slog.Logger, ref storage.AssetRef) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Publish(ctx, notifications.EventBeatUploaded, notifications.Payload{
		"category": ref.Category,
		"name":     ref.Name,
		"size":     ref.Size,
	})
	if err != nil {
		logging.WarnWithContext(logger, "upload notification failed", "notification_failed",
			logging.String(logging.FieldImpact, "operator was not told about the upload"),
			logging.Error(err),
		)
	}
}
