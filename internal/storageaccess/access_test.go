package storageaccess_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"beatshop/internal/config"
	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storageaccess"
)

func TestOpenOnDiskAndMemory(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Storage.Local.Root = filepath.Join(base, "beats")
	cfg.Storage.SQLite.Path = filepath.Join(base, "beats.db")

	for _, backend := range []string{config.BackendLocal, config.BackendSQLite, config.BackendMemory} {
		cfg.Storage.Backend = backend
		b, closeFn, err := storageaccess.Open(context.Background(), &cfg, logging.NewNop())
		if err != nil {
			t.Fatalf("Open(%s): %v", backend, err)
		}
		if b.Name() != backend {
			t.Fatalf("expected %s backend, got %s", backend, b.Name())
		}
		if err := closeFn(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "ftp"
	_, closeFn, err := storageaccess.Open(context.Background(), &cfg, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if closeFn == nil {
		t.Fatal("expected non-nil close func")
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	p := storageaccess.RetryPolicy(&cfg)
	if p.MaxAttempts != 4 || p.InitialInterval != 200*time.Millisecond || p.MaxInterval != 2*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
}
