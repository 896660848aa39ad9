// Package drive stores beats in Google Drive: one folder per category under a
// root folder (default "beats").
//
// Drive has no conditional create, so folder provisioning and uploads are
// serialized per category inside the process, folder IDs are cached, and when
// duplicate folders already exist the oldest one is used.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const (
	component      = "storage-drive"
	folderMimeType = "application/vnd.google-apps.folder"
	fileFields     = "id, name, size, mimeType, createdTime"
	listFields     = "nextPageToken, files(" + fileFields + ")"
)

// Options configures the Drive binding.
type Options struct {
	CredentialsFile string
	RootFolder      string
	RootFolderID    string
	// ClientOptions are appended after the credentials option; tests use
	// them to point the client at a fake server.
	ClientOptions []option.ClientOption
}

// Backend is a Google Drive storage backend.
type Backend struct {
	files      *drive.FilesService
	rootName   string
	logger     *slog.Logger
	rootMu     sync.Mutex
	rootID     string
	mu         sync.Mutex
	folders    map[string]string
	categoryMu map[string]*sync.Mutex
}

// New creates a Drive client authenticated with a service account key.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Backend, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts.ClientOptions)+2)
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(drive.DriveFileScope),
		)
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)
	if len(clientOpts) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "credentials file is required", nil)
	}
	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "open", "create drive service", err)
	}
	rootName := strings.TrimSpace(opts.RootFolder)
	if rootName == "" {
		rootName = "beats"
	}
	return &Backend{
		files:      svc.Files,
		rootName:   rootName,
		rootID:     strings.TrimSpace(opts.RootFolderID),
		logger:     logging.NewComponentLogger(logger, component),
		folders:    make(map[string]string),
		categoryMu: make(map[string]*sync.Mutex),
	}, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "drive" }

// EnsureCategory implements storage.Backend.
func (b *Backend) EnsureCategory(ctx context.Context, category string) (storage.CategoryHandle, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return storage.CategoryHandle{}, err
	}
	m := b.lockFor(category)
	m.Lock()
	defer m.Unlock()
	id, err := b.ensureFolderLocked(ctx, category)
	if err != nil {
		return storage.CategoryHandle{}, err
	}
	return storage.CategoryHandle{Category: category, ID: id}, nil
}

func (b *Backend) ensureFolderLocked(ctx context.Context, category string) (string, error) {
	if id, ok := b.cachedFolder(category); ok {
		return id, nil
	}
	rootID, err := b.root(ctx)
	if err != nil {
		return "", err
	}
	id, err := b.findOrCreateFolder(ctx, category, rootID)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	b.folders[category] = id
	b.mu.Unlock()
	return id, nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, category, name string, payload io.Reader) (storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, name); err != nil {
		return storage.AssetRef{}, err
	}
	if name == "" {
		return storage.AssetRef{}, services.Wrap(services.ErrValidation, component, "put", "asset name is empty", nil)
	}
	m := b.lockFor(category)
	m.Lock()
	defer m.Unlock()

	folderID, err := b.ensureFolderLocked(ctx, category)
	if err != nil {
		return storage.AssetRef{}, err
	}
	existing, err := b.query(ctx, fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQuery(name), escapeQuery(folderID)))
	if err != nil {
		return storage.AssetRef{}, classify("put", "check existing asset", err)
	}
	if len(existing) > 0 {
		return storage.AssetRef{}, services.Wrap(services.ErrAlreadyExists, component, "put", fmt.Sprintf("%s/%s already stored", category, name), nil)
	}

	contentType := storage.ContentTypeFor(name)
	created, err := b.files.Create(&drive.File{Name: name, Parents: []string{folderID}}).
		Media(payload, googleapi.ContentType(contentType)).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return storage.AssetRef{}, classify("put", "upload file", err)
	}
	ref := refFromFile(category, created)
	if ref.ContentType == "" {
		ref.ContentType = contentType
	}
	return ref, nil
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, category string) ([]storage.AssetRef, error) {
	if err := storage.ValidateKey(component, category, ""); err != nil {
		return nil, err
	}
	folderID, ok, err := b.lookupFolder(ctx, category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []storage.AssetRef{}, nil
	}
	files, err := b.query(ctx, fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", escapeQuery(folderID), folderMimeType))
	if err != nil {
		return nil, classify("list", "list files", err)
	}
	refs := make([]storage.AssetRef, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f.Name, ".") {
			continue
		}
		refs = append(refs, refFromFile(category, f))
	}
	return storage.SortRefs(refs), nil
}

// Get implements storage.Backend. Refs from List carry the Drive file ID;
// refs built by name are resolved inside the category folder.
func (b *Backend) Get(ctx context.Context, ref storage.AssetRef) ([]byte, error) {
	if err := storage.ValidateKey(component, ref.Category, ref.Name); err != nil {
		return nil, err
	}
	id := ref.ID
	if id == "" {
		resolved, err := b.resolveFileID(ctx, ref)
		if err != nil {
			return nil, err
		}
		id = resolved
	}
	resp, err := b.files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, classify("get", fmt.Sprintf("download %s", ref.Name), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify("get", fmt.Sprintf("read %s", ref.Name), err)
	}
	return data, nil
}

func (b *Backend) resolveFileID(ctx context.Context, ref storage.AssetRef) (string, error) {
	notFound := services.Wrap(services.ErrNotFound, component, "get", fmt.Sprintf("%s/%s not found", ref.Category, ref.Name), nil)
	folderID, ok, err := b.lookupFolder(ctx, ref.Category)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound
	}
	files, err := b.query(ctx, fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQuery(ref.Name), escapeQuery(folderID)))
	if err != nil {
		return "", classify("get", "resolve file", err)
	}
	if len(files) == 0 {
		return "", notFound
	}
	return files[0].Id, nil
}

// lookupFolder finds a category folder without creating it.
func (b *Backend) lookupFolder(ctx context.Context, category string) (string, bool, error) {
	if id, ok := b.cachedFolder(category); ok {
		return id, true, nil
	}
	rootID, err := b.root(ctx)
	if err != nil {
		return "", false, err
	}
	folders, err := b.query(ctx, folderQuery(category, rootID))
	if err != nil {
		return "", false, classify("lookup_folder", "find category folder", err)
	}
	if len(folders) == 0 {
		return "", false, nil
	}
	b.mu.Lock()
	b.folders[category] = folders[0].Id
	b.mu.Unlock()
	return folders[0].Id, true, nil
}

func (b *Backend) root(ctx context.Context) (string, error) {
	b.rootMu.Lock()
	defer b.rootMu.Unlock()
	if b.rootID != "" {
		return b.rootID, nil
	}
	id, err := b.findOrCreateFolder(ctx, b.rootName, "")
	if err != nil {
		return "", err
	}
	b.rootID = id
	return id, nil
}

func (b *Backend) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	folders, err := b.query(ctx, folderQuery(name, parentID))
	if err != nil {
		return "", classify("ensure_folder", fmt.Sprintf("find folder %q", name), err)
	}
	if len(folders) > 0 {
		if len(folders) > 1 {
			b.logger.Warn("duplicate drive folders, using oldest",
				logging.String("folder", name),
				logging.String("folder_id", folders[0].Id),
				logging.Int("duplicates", len(folders)-1),
			)
		}
		return folders[0].Id, nil
	}
	meta := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := b.files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", classify("ensure_folder", fmt.Sprintf("create folder %q", name), err)
	}
	b.logger.Info("drive folder created",
		logging.String("folder", name),
		logging.String("folder_id", created.Id),
	)
	return created.Id, nil
}

// query returns every file matching q, oldest first.
func (b *Backend) query(ctx context.Context, q string) ([]*drive.File, error) {
	var out []*drive.File
	err := b.files.List().
		Q(q).
		Fields(listFields).
		OrderBy("createdTime").
		PageSize(200).
		Pages(ctx, func(page *drive.FileList) error {
			out = append(out, page.Files...)
			return nil
		})
	return out, err
}

func (b *Backend) cachedFolder(category string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.folders[category]
	return id, ok
}

func (b *Backend) lockFor(category string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.categoryMu[category]
	if !ok {
		m = &sync.Mutex{}
		b.categoryMu[category] = m
	}
	return m
}

func folderQuery(name, parentID string) string {
	q := fmt.Sprintf("mimeType = '%s' and trashed = false and name = '%s'", folderMimeType, escapeQuery(name))
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}
	return q
}

// escapeQuery quotes a value for a Drive query string literal.
func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}

func refFromFile(category string, f *drive.File) storage.AssetRef {
	ref := storage.AssetRef{
		Category:    category,
		Name:        f.Name,
		ID:          f.Id,
		Size:        f.Size,
		ContentType: f.MimeType,
	}
	if created, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		ref.CreatedAt = created.UTC()
	}
	return ref
}

func classify(operation, message string, err error) error {
	if marker := storage.MarkerForContext(err); marker != nil {
		return services.Wrap(marker, component, operation, message, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return services.Wrap(storage.MarkerForStatus(apiErr.Code), component, operation, message, err)
	}
	return services.Wrap(services.ErrUnavailable, component, operation, message, err)
}
