package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"beatshop/internal/logging"
	"beatshop/internal/services"
)

// RetryPolicy bounds the exponential backoff applied to remote calls.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type retryBackend struct {
	inner  Backend
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps backend so operations failing with services.ErrUnavailable
// are retried with exponential backoff. Other failures return immediately.
// Put is retried only when the payload can be replayed, so the reader is
// buffered first.
func WithRetry(backend Backend, policy RetryPolicy, logger *slog.Logger) Backend {
	if policy.MaxAttempts <= 1 {
		return backend
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 200 * time.Millisecond
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	return &retryBackend{
		inner:  backend,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "storage-retry"),
	}
}

func (r *retryBackend) Name() string { return r.inner.Name() }

func (r *retryBackend) EnsureCategory(ctx context.Context, category string) (CategoryHandle, error) {
	return retry(ctx, r, "ensure_category", func() (CategoryHandle, error) {
		return r.inner.EnsureCategory(ctx, category)
	})
}

func (r *retryBackend) Put(ctx context.Context, category, name string, payload io.Reader) (AssetRef, error) {
	data, err := ReadAll(payload)
	if err != nil {
		return AssetRef{}, services.Wrap(services.ErrValidation, r.inner.Name(), "put", "read payload", err)
	}
	attempt := 0
	return retry(ctx, r, "put", func() (AssetRef, error) {
		attempt++
		ref, err := r.inner.Put(ctx, category, name, bytes.NewReader(data))
		// A retried Put may find the object its previous attempt created
		// before the connection dropped.
		if attempt > 1 && errors.Is(err, services.ErrAlreadyExists) {
			r.logger.Warn("put reported existing asset after retry",
				logging.String(logging.FieldCategory, category),
				logging.String("name", name),
			)
		}
		return ref, err
	})
}

func (r *retryBackend) List(ctx context.Context, category string) ([]AssetRef, error) {
	return retry(ctx, r, "list", func() ([]AssetRef, error) {
		return r.inner.List(ctx, category)
	})
}

func (r *retryBackend) Get(ctx context.Context, ref AssetRef) ([]byte, error) {
	return retry(ctx, r, "get", func() ([]byte, error) {
		return r.inner.Get(ctx, ref)
	})
}

func retry[T any](ctx context.Context, r *retryBackend, op string, fn func() (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.policy.InitialInterval
	expo.MaxInterval = r.policy.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		value, err := fn()
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, services.ErrUnavailable) {
			return value, backoff.Permanent(err)
		}
		r.logger.Debug("storage call unavailable, retrying",
			logging.String(logging.FieldOperation, op),
			logging.String("backend", r.inner.Name()),
			logging.Error(err),
		)
		return value, err
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
}
