package serverrun

import (
	"context"
	"fmt"
	"log/slog"

	"beatshop/internal/catalog"
	"beatshop/internal/config"
	"beatshop/internal/ingest"
	"beatshop/internal/notifications"
	"beatshop/internal/preview"
	"beatshop/internal/storage"
	"beatshop/internal/storageaccess"
)

// Runtime holds the services shared by the HTTP server and the CLI.
type Runtime struct {
	Config    *config.Config
	Backend   storage.Backend
	Catalog   *catalog.Service
	Ingest    *ingest.Service
	Extractor *preview.Extractor
	Notifier  notifications.Service

	closeBackend storageaccess.CloseFunc
}

// Assemble opens storage and wires the services for cfg.
func Assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	set, err := catalog.NewSet(cfg.Catalog.Categories)
	if err != nil {
		return nil, err
	}
	backend, closeBackend, err := storageaccess.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	notifier := notifications.NewService(cfg)
	extractor := preview.NewFromConfig(cfg, nil, logger)
	return &Runtime{
		Config:       cfg,
		Backend:      backend,
		Catalog:      catalog.NewService(set, backend, extractor, logger),
		Ingest:       ingest.NewFromConfig(cfg, set, backend, notifier, logger),
		Extractor:    extractor,
		Notifier:     notifier,
		closeBackend: closeBackend,
	}, nil
}

// Close releases the storage backend.
func (r *Runtime) Close() error {
	if r == nil || r.closeBackend == nil {
		return nil
	}
	return r.closeBackend()
}
