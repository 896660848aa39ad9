// Package local stores beats in a directory tree: <root>/<category>/<name>.
//
// Writes to a category are serialized by an in-process mutex and a flock lock
// file under <root>/.locks, so several processes sharing one root still create
// each category directory once and never publish two files under one name.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"beatshop/internal/fileutil"
	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const (
	component   = "storage-local"
	lockDirName = ".locks"
	lockRetry   = 25 * time.Millisecond
	dirMode     = 0o755
	fileMode    = 0o644
)

// Backend is a filesystem storage.Backend.
type Backend struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a backend rooted at root, creating the directory if needed.
func New(root string, logger *slog.Logger) (*Backend, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "storage root is empty", nil)
	}
	if err := os.MkdirAll(filepath.Join(root, lockDirName), dirMode); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "create storage root", err)
	}
	return &Backend{
		root:   root,
		logger: logging.NewComponentLogger(logger, component),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "local" }

// Root returns the storage directory.
func (b *Backend) Root() string { return b.root }

// EnsureCategory implements storage.Backend.
func (b *Backend) EnsureCategory(ctx context.Context, category string) (storage.CategoryHandle, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return storage.CategoryHandle{}, err
	}
	var handle storage.CategoryHandle
	err := b.withCategoryLock(ctx, category, func() error {
		var err error
		handle, err = b.ensureLocked(category)
		return err
	})
	return handle, err
}

func (b *Backend) ensureLocked(category string) (storage.CategoryHandle, error) {
	dir := b.categoryDir(category)
	if err := os.Mkdir(dir, dirMode); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return storage.CategoryHandle{}, services.Wrap(services.ErrUnavailable, component, "ensure_category", "create category directory", err)
		}
		info, statErr := os.Stat(dir)
		if statErr != nil {
			return storage.CategoryHandle{}, services.Wrap(services.ErrUnavailable, component, "ensure_category", "stat category directory", statErr)
		}
		if !info.IsDir() {
			return storage.CategoryHandle{}, services.Wrap(services.ErrConfiguration, component, "ensure_category", fmt.Sprintf("%s exists and is not a directory", dir), nil)
		}
	} else {
		b.logger.Info("category provisioned",
			logging.String(logging.FieldCategory, category),
			logging.String("path", dir),
		)
	}
	return storage.CategoryHandle{Category: category, ID: dir}, nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, category, name string, payload io.Reader) (storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, name); err != nil {
		return storage.AssetRef{}, err
	}
	if name == "" {
		return storage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "asset name is empty", nil)
	}
	var ref storage.AssetRef
	err := b.withCategoryLock(ctx, category, func() error {
		handle, err := b.ensureLocked(category)
		if err != nil {
			return err
		}
		dst := filepath.Join(handle.ID, name)
		pub, err := fileutil.WriteExclusive(dst, payload, fileMode)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return services.Wrap(services.ErrAlreadyExists, component, "put", fmt.Sprintf("%s/%s already stored", category, name), nil)
			}
			return services.Wrap(services.ErrUnavailable, component, "put", "write asset", err)
		}
		ref = storage.AssetRef{
			Category:    category,
			Name:        name,
			ID:          pub.Path,
			Size:        pub.Size,
			ContentType: storage.ContentTypeFor(name),
			CreatedAt:   time.Now().UTC(),
		}
		return nil
	})
	return ref, err
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, category string) ([]storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := b.categoryDir(category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []storage.AssetRef{}, nil
		}
		return nil, services.Wrap(services.ErrUnavailable, component, "list", "read category directory", err)
	}
	refs := make([]storage.AssetRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Entry vanished between ReadDir and Info.
			continue
		}
		refs = append(refs, storage.AssetRef{
			Category:    category,
			Name:        entry.Name(),
			ID:          filepath.Join(dir, entry.Name()),
			Size:        info.Size(),
			ContentType: storage.ContentTypeFor(entry.Name()),
			CreatedAt:   info.ModTime().UTC(),
		})
	}
	return storage.SortRefs(refs), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, ref storage.AssetRef) ([]byte, error) {
	if err := storage.ValidateKey(component, ref.Category, ref.Name); err != nil {
		return nil, err
	}
	if ref.Name == "" {
		return nil, services.Wrap(services.ErrNotFound, component, "get", "asset name is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(b.categoryDir(ref.Category), ref.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, component, "get", fmt.Sprintf("%s/%s not found", ref.Category, ref.Name), nil)
		}
		return nil, services.Wrap(services.ErrUnavailable, component, "get", "read asset", err)
	}
	return data, nil
}

func (b *Backend) categoryDir(category string) string {
	return filepath.Join(b.root, category)
}

func (b *Backend) categoryMutex(category string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.locks[category]
	if !ok {
		m = &sync.Mutex{}
		b.locks[category] = m
	}
	return m
}

func (b *Backend) withCategoryLock(ctx context.Context, category string, fn func() error) error {
	m := b.categoryMutex(category)
	m.Lock()
	defer m.Unlock()

	lock := flock.New(filepath.Join(b.root, lockDirName, category+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrTimeout, component, "lock", "waiting for category lock", ctxErr)
		}
		return services.Wrap(services.ErrUnavailable, component, "lock", "acquire category lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrUnavailable, component, "lock", "category lock not acquired", nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			b.logger.Warn("release category lock failed",
				logging.String(logging.FieldCategory, category),
				logging.Error(err),
			)
		}
	}()
	return fn()
}
