// Package sqlite stores beats as BLOBs in a single SQLite database file.
//
// The primary key on (category, name) is the only arbiter of uniqueness, so
// several processes sharing one file never publish two assets under one
// name. Connections run in WAL mode with a busy timeout.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const component = "storage-sqlite"

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// Backend is a database-backed storage.Backend.
type Backend struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Backend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "create database directory", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	pragmas := []string{
		"journal_mode(WAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}
	params := make(url.Values)
	for _, pragma := range pragmas {
		params.Add("_pragma", pragma)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "open sqlite db", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "connect sqlite db", err)
	}

	b := &Backend{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, component),
		now:    time.Now,
	}
	if err := b.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Path returns the database file location.
func (b *Backend) Path() string { return b.path }

func (b *Backend) initSchema(ctx context.Context) error {
	var tableExists int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, "schema", "check schema_version table", err)
	}
	if tableExists == 0 {
		return b.createSchema(ctx)
	}

	var version int
	if err := b.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return services.Wrap(services.ErrConfiguration, component, "schema", "read schema version", err)
	}
	if version != schemaVersion {
		return services.Wrap(services.ErrConfiguration, component, "schema",
			fmt.Sprintf("database has schema version %d, expected %d", version, schemaVersion), nil)
	}
	return nil
}

func (b *Backend) createSchema(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, "schema", "begin schema tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrConfiguration, component, "schema", "create schema", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return services.Wrap(services.ErrConfiguration, component, "schema", "record schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrConfiguration, component, "schema", "commit schema", err)
	}
	return nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "sqlite" }

// EnsureCategory implements storage.Backend.
func (b *Backend) EnsureCategory(ctx context.Context, category string) (storage.CategoryHandle, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return storage.CategoryHandle{}, err
	}
	if err := b.ensureCategory(ctx, b.db, category); err != nil {
		return storage.CategoryHandle{}, err
	}
	return storage.CategoryHandle{Category: category, ID: "sqlite:" + category}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (b *Backend) ensureCategory(ctx context.Context, db execer, category string) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO categories (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		category, b.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return classify("ensure_category", fmt.Sprintf("provision %s", category), err)
	}
	return nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, category, name string, payload io.Reader) (storage.AssetRef, error) {
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
	if data == nil {
		data = []byte{}
	}

	ref := storage.AssetRef{
		Category:    category,
		Name:        name,
		ID:          category + "/" + name,
		Size:        int64(len(data)),
		ContentType: storage.ContentTypeFor(name),
		CreatedAt:   b.now().UTC(),
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.AssetRef{}, classify("put", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := b.ensureCategory(ctx, tx, category); err != nil {
		return storage.AssetRef{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO assets (category, name, size_bytes, content_type, created_at, data)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(category, name) DO NOTHING`,
		category, name, ref.Size, ref.ContentType, ref.CreatedAt.Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return storage.AssetRef{}, classify("put", fmt.Sprintf("insert %s/%s", category, name), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.AssetRef{}, classify("put", "rows affected", err)
	}
	if affected == 0 {
		return storage.AssetRef{}, services.Wrap(services.ErrAlreadyExists, component, "put", fmt.Sprintf("%s/%s already stored", category, name), nil)
	}
	if err := tx.Commit(); err != nil {
		return storage.AssetRef{}, classify("put", "commit", err)
	}
	b.logger.Debug("asset stored",
		logging.String(logging.FieldCategory, category),
		logging.String("name", name),
		logging.Int64("size_bytes", ref.Size),
	)
	return ref, nil
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, category string) ([]storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT name, size_bytes, content_type, created_at
        FROM assets WHERE category = ? ORDER BY name`,
		category,
	)
	if err != nil {
		return nil, classify("list", fmt.Sprintf("query %s", category), err)
	}
	defer rows.Close()

	refs := make([]storage.AssetRef, 0)
	for rows.Next() {
		var (
			ref       storage.AssetRef
			createdAt string
		)
		if err := rows.Scan(&ref.Name, &ref.Size, &ref.ContentType, &createdAt); err != nil {
			return nil, classify("list", "scan asset", err)
		}
		ref.Category = category
		ref.ID = category + "/" + ref.Name
		ref.CreatedAt = parseTime(createdAt)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list", "iterate assets", err)
	}
	// ORDER BY uses the database collation; keep byte order consistent with
	// the other bindings.
	return storage.SortRefs(refs), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, ref storage.AssetRef) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT data FROM assets WHERE category = ? AND name = ?",
		ref.Category, ref.Name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, component, "get", fmt.Sprintf("%s/%s not found", ref.Category, ref.Name), nil)
	}
	if err != nil {
		return nil, classify("get", fmt.Sprintf("read %s/%s", ref.Category, ref.Name), err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func classify(operation, message string, err error) error {
	if marker := storage.MarkerForContext(err); marker != nil {
		return services.Wrap(marker, component, operation, message, err)
	}
	return services.Wrap(services.ErrUnavailable, component, operation, message, err)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
