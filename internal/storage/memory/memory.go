// Package memory implements an in-process storage.Backend used by tests and
// the "memory" backend setting.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const component = "storage-memory"

// Backend keeps every asset in a map guarded by a single mutex.
type Backend struct {
	mu         sync.Mutex
	categories map[string]map[string]entry
	now        func() time.Time
}

type entry struct {
	ref  storage.AssetRef
	data []byte
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{
		categories: make(map[string]map[string]entry),
		now:        time.Now,
	}
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "memory" }

// EnsureCategory implements storage.Backend.
func (b *Backend) EnsureCategory(_ context.Context, category string) (storage.CategoryHandle, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return storage.CategoryHandle{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureLocked(category)
	return storage.CategoryHandle{Category: category, ID: "mem:" + category}, nil
}

func (b *Backend) ensureLocked(category string) map[string]entry {
	assets, ok := b.categories[category]
	if !ok {
		assets = make(map[string]entry)
		b.categories[category] = assets
	}
	return assets
}

// Put implements storage.Backend.
func (b *Backend) Put(_ context.Context, category, name string, payload io.Reader) (storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, name); err != nil {
		return storage.AssetRef{}, err
	}
	if name == "" {
		return storage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "asset name is empty", nil)
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return storage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "read payload", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	assets := b.ensureLocked(category)
	if _, exists := assets[name]; exists {
		return storage.AssetRef{}, services.Wrap(services.ErrAlreadyExists, component, "put", fmt.Sprintf("%s/%s already stored", category, name), nil)
	}
	ref := storage.AssetRef{
		Category:    category,
		Name:        name,
		ID:          category + "/" + name,
		Size:        int64(len(data)),
		ContentType: storage.ContentTypeFor(name),
		CreatedAt:   b.now().UTC(),
	}
	assets[name] = entry{ref: ref, data: data}
	return ref, nil
}

// List implements storage.Backend.
func (b *Backend) List(_ context.Context, category string) ([]storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	assets := b.categories[category]
	refs := make([]storage.AssetRef, 0, len(assets))
	for _, e := range assets {
		refs = append(refs, e.ref)
	}
	return storage.SortRefs(refs), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(_ context.Context, ref storage.AssetRef) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.categories[ref.Category][ref.Name]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, component, "get", fmt.Sprintf("%s/%s not found", ref.Category, ref.Name), nil)
	}
	return append([]byte(nil), e.data...), nil
}

// Categories returns the number of provisioned categories.
func (b *Backend) Categories() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.categories)
}
