// Package storage defines the Backend contract shared by every place beats can
// live: a local directory tree, Google Cloud Storage, S3-compatible buckets,
// Google Drive, or memory.
//
// Backends organize assets by category. Categories are provisioned lazily and
// idempotently, names are unique within a category, and assets are immutable
// once stored. Implementations classify failures with the services markers
// (ErrNotFound, ErrAlreadyExists, ErrUnavailable) so callers and WithRetry can
// react without knowing which binding is active.
package storage
