package preflight

import (
	"context"
	"path/filepath"

	"beatshop/internal/config"
	"beatshop/internal/storage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// backend may be nil when storage could not be opened.
func RunAll(ctx context.Context, cfg *config.Config, backend storage.Backend) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	switch cfg.Storage.Backend {
	case config.BackendLocal:
		results = append(results, CheckDirectoryAccess("Beat library", cfg.Storage.Local.Root))
	case config.BackendSQLite:
		results = append(results, CheckDirectoryAccess("Beat database directory", filepath.Dir(cfg.Storage.SQLite.Path)))
	}

	if backend != nil && len(cfg.Catalog.Categories) > 0 {
		results = append(results, CheckStorage(ctx, backend, cfg.Catalog.Categories[0]))
	}

	results = append(results, CheckNotifications(cfg))
	return results
}
