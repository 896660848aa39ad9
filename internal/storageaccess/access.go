// Package storageaccess selects and constructs the configured storage backend.
package storageaccess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"beatshop/internal/config"
	"beatshop/internal/services"
	"beatshop/internal/storage"
	"beatshop/internal/storage/drive"
	"beatshop/internal/storage/gcs"
	"beatshop/internal/storage/local"
	"beatshop/internal/storage/memory"
	"beatshop/internal/storage/s3"
	"beatshop/internal/storage/sqlite"
)

// CloseFunc releases backend resources. It is never nil.
type CloseFunc func() error

func noopClose() error { return nil }

// Open builds the backend named by cfg.Storage.Backend. Remote bindings are
// wrapped with storage.WithRetry using the configured policy.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backend, CloseFunc, error) {
	if cfg == nil {
		return nil, noopClose, services.Wrap(services.ErrConfiguration, "storageaccess", "open", "config is nil", nil)
	}
	st := cfg.Storage
	switch st.Backend {
	case config.BackendLocal:
		b, err := local.New(st.Local.Root, logger)
		if err != nil {
			return nil, noopClose, err
		}
		return b, noopClose, nil
	case config.BackendMemory:
		return memory.New(), noopClose, nil
	case config.BackendSQLite:
		b, err := sqlite.Open(ctx, st.SQLite.Path, logger)
		if err != nil {
			return nil, noopClose, err
		}
		return b, b.Close, nil
	case config.BackendGCS:
		b, err := gcs.New(ctx, gcs.Options{
			Bucket:          st.GCS.Bucket,
			Prefix:          st.GCS.Prefix,
			CredentialsFile: st.GCS.CredentialsFile,
			Endpoint:        st.GCS.Endpoint,
		}, logger)
		if err != nil {
			return nil, noopClose, err
		}
		return storage.WithRetry(b, RetryPolicy(cfg), logger), b.Close, nil
	case config.BackendS3:
		b, err := s3.New(ctx, s3.Options{
			Bucket:          st.S3.Bucket,
			Prefix:          st.S3.Prefix,
			Region:          st.S3.Region,
			Endpoint:        st.S3.Endpoint,
			AccessKeyID:     st.S3.AccessKeyID,
			SecretAccessKey: st.S3.SecretAccessKey,
			UsePathStyle:    st.S3.UsePathStyle,
		}, logger)
		if err != nil {
			return nil, noopClose, err
		}
		return storage.WithRetry(b, RetryPolicy(cfg), logger), noopClose, nil
	case config.BackendDrive:
		b, err := drive.New(ctx, drive.Options{
			CredentialsFile: st.Drive.CredentialsFile,
			RootFolder:      st.Drive.RootFolder,
			RootFolderID:    st.Drive.RootFolderID,
		}, logger)
		if err != nil {
			return nil, noopClose, err
		}
		return storage.WithRetry(b, RetryPolicy(cfg), logger), noopClose, nil
	default:
		return nil, noopClose, services.Wrap(services.ErrConfiguration, "storageaccess", "open", fmt.Sprintf("unsupported backend %q", st.Backend), nil)
	}
}

// RetryPolicy converts the storage.retry section into a storage.RetryPolicy.
func RetryPolicy(cfg *config.Config) storage.RetryPolicy {
	r := cfg.Storage.Retry
	return storage.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: time.Duration(r.InitialIntervalMillis) * time.Millisecond,
		MaxInterval:     time.Duration(r.MaxIntervalMillis) * time.Millisecond,
	}
}
