package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"beatshop/internal/services"
)

// CategoryHandle identifies the provisioned location of a category.
type CategoryHandle struct {
	Category string
	// ID is the backend identifier: a directory path, an object prefix or a
	// Drive folder ID.
	ID string
}

// AssetRef describes a stored beat.
type AssetRef struct {
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	ID          string    `json:"id,omitempty"`
	Size        int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// Backend stores beat payloads grouped by category.
type Backend interface {
	// Name reports the binding identifier (local, gcs, s3, drive, memory).
	Name() string
	// EnsureCategory provisions the category location if needed. Repeated
	// calls return equal handles and never create duplicates.
	EnsureCategory(ctx context.Context, category string) (CategoryHandle, error)
	// Put stores payload under name. It fails with services.ErrAlreadyExists
	// when the name is taken and provisions the category implicitly.
	Put(ctx context.Context, category, name string, payload io.Reader) (AssetRef, error)
	// List returns the assets of a category sorted by name. A category that
	// was never provisioned yields an empty slice.
	List(ctx context.Context, category string) ([]AssetRef, error)
	// Get returns the full contents of ref, or services.ErrNotFound.
	Get(ctx context.Context, ref AssetRef) ([]byte, error)
}

// ContentTypeFor guesses a MIME type from the filename extension.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".zip":
		return "application/zip"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ValidateKey rejects category or asset names that could escape their
// location or collide with backend bookkeeping.
func ValidateKey(component, category, name string) error {
	if strings.TrimSpace(category) == "" || strings.ContainsAny(category, `/\`) || strings.HasPrefix(category, ".") {
		return services.Wrap(services.ErrValidation, component, "validate", fmt.Sprintf("invalid category %q", category), nil)
	}
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return services.Wrap(services.ErrValidation, component, "validate", fmt.Sprintf("invalid asset name %q", name), nil)
	}
	return nil
}

// SortRefs orders refs by name in place and returns them.
func SortRefs(refs []AssetRef) []AssetRef {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

// ReadAll buffers payload fully. A nil payload yields no bytes.
func ReadAll(payload io.Reader) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return io.ReadAll(payload)
}
