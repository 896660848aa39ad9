// Package gcs stores beats in a Google Cloud Storage bucket.
//
// A category is the object prefix <prefix>/<category>/ and is materialized as a
// zero-byte marker object with that exact name so empty categories survive.
// Markers and assets are both written with a DoesNotExist precondition, which
// makes creation atomic across processes without any local locking.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"beatshop/internal/logging"
	"beatshop/internal/services"
	beatstorage "beatshop/internal/storage"
)

const (
	component         = "storage-gcs"
	markerContentType = "application/x-directory"
)

// Options configures the GCS binding.
type Options struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	// Endpoint overrides the API endpoint, e.g. for fake-gcs-server.
	Endpoint string
}

// Backend is a GCS storage backend.
type Backend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
	logger *slog.Logger
}

// New creates a client for opts.Bucket.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Backend, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "bucket is required", nil)
	}
	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
		if opts.CredentialsFile == "" {
			clientOpts = append(clientOpts, option.WithoutAuthentication())
		}
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "create storage client", err)
	}
	return &Backend{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		logger: logging.NewComponentLogger(logger, component),
	}, nil
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "gcs" }

// EnsureCategory implements storage.Backend.
func (b *Backend) EnsureCategory(ctx context.Context, category string) (beatstorage.CategoryHandle, error) {
	if err := beatstorage.ValidateKey(component, category, ""); err != nil {
		return beatstorage.CategoryHandle{}, err
	}
	marker := categoryPrefix(b.prefix, category)
	w := b.bucket.Object(marker).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = markerContentType
	err := w.Close()
	switch {
	case err == nil:
		b.logger.Info("category provisioned",
			logging.String(logging.FieldCategory, category),
			logging.String("object", marker),
		)
	case isPreconditionFailed(err):
		// Marker already present.
	default:
		return beatstorage.CategoryHandle{}, classify("ensure_category", "create category marker", err)
	}
	return beatstorage.CategoryHandle{Category: category, ID: fmt.Sprintf("gs://%s/%s", b.name, marker)}, nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, category, name string, payload io.Reader) (beatstorage.AssetRef, error) {
	if err := beatstorage.ValidateKey(component, category, name); err != nil {
		return beatstorage.AssetRef{}, err
	}
	if name == "" {
		return beatstorage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "asset name is empty", nil)
	}
	if _, err := b.EnsureCategory(ctx, category); err != nil {
		return beatstorage.AssetRef{}, err
	}

	key := objectKey(b.prefix, category, name)
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := b.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	w.ContentType = beatstorage.ContentTypeFor(name)
	if _, err := io.Copy(w, payload); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = w.Close()
		return beatstorage.AssetRef{}, classify("put", "upload object", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return beatstorage.AssetRef{}, services.Wrap(services.ErrAlreadyExists, component, "put", fmt.Sprintf("%s/%s already stored", category, name), nil)
		}
		return beatstorage.AssetRef{}, classify("put", "finalize object", err)
	}
	return refFromAttrs(category, w.Attrs()), nil
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, category string) ([]beatstorage.AssetRef, error) {
	if err := beatstorage.ValidateKey(component, category, ""); err != nil {
		return nil, err
	}
	dir := categoryPrefix(b.prefix, category)
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: dir, Delimiter: "/"})
	refs := make([]beatstorage.AssetRef, 0)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify("list", "list objects", err)
		}
		if attrs.Prefix != "" || attrs.Name == dir {
			continue
		}
		ref := refFromAttrs(category, attrs)
		if ref.Name == "" || strings.HasPrefix(ref.Name, ".") {
			continue
		}
		refs = append(refs, ref)
	}
	return beatstorage.SortRefs(refs), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, ref beatstorage.AssetRef) ([]byte, error) {
	if err := beatstorage.ValidateKey(component, ref.Category, ref.Name); err != nil {
		return nil, err
	}
	key := objectKey(b.prefix, ref.Category, ref.Name)
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, classify("get", fmt.Sprintf("open %s", key), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify("get", fmt.Sprintf("read %s", key), err)
	}
	return data, nil
}

func categoryPrefix(prefix, category string) string {
	if prefix == "" {
		return category + "/"
	}
	return path.Join(prefix, category) + "/"
}

func objectKey(prefix, category, name string) string {
	return categoryPrefix(prefix, category) + name
}

func refFromAttrs(category string, attrs *storage.ObjectAttrs) beatstorage.AssetRef {
	if attrs == nil {
		return beatstorage.AssetRef{Category: category}
	}
	return beatstorage.AssetRef{
		Category:    category,
		Name:        path.Base(attrs.Name),
		ID:          attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		CreatedAt:   attrs.Created.UTC(),
	}
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 412
}

func classify(operation, message string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return services.Wrap(services.ErrNotFound, component, operation, message, err)
	}
	if marker := beatstorage.MarkerForContext(err); marker != nil {
		return services.Wrap(marker, component, operation, message, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return services.Wrap(beatstorage.MarkerForStatus(apiErr.Code), component, operation, message, err)
	}
	return services.Wrap(services.ErrUnavailable, component, operation, message, err)
}
