package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"beatshop/internal/logging"
	"beatshop/internal/preview"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

// Previewer cuts a clip from a stored payload.
type Previewer interface {
	Extract(ctx context.Context, payload []byte, durationSec int) (preview.Clip, error)
}

// Summary describes one category for listings.
type Summary struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Beats int    `json:"beats"`
}

// Service is the read side of the shop: listings, downloads and previews.
type Service struct {
	set     Set
	backend storage.Backend
	preview Previewer
	logger  *slog.Logger
}

// NewService wires the category set to a storage backend and an extractor.
func NewService(set Set, backend storage.Backend, previewer Previewer, logger *slog.Logger) *Service {
	return &Service{
		set:     set,
		backend: backend,
		preview: previewer,
		logger:  logging.NewComponentLogger(logger, "catalog"),
	}
}

// Categories returns the configured set.
func (s *Service) Categories() Set { return s.set }

// Summaries lists every category with its beat count.
func (s *Service) Summaries(ctx context.Context) ([]Summary, error) {
	out := make([]Summary, 0, s.set.Len())
	for _, c := range s.set.All() {
		refs, err := s.backend.List(ctx, string(c))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", c, err)
		}
		out = append(out, Summary{Name: string(c), Label: c.Label(), Beats: len(refs)})
	}
	return out, nil
}

// List returns the beats of one category sorted by name.
func (s *Service) List(ctx context.Context, category string) ([]storage.AssetRef, error) {
	c, err := s.resolve(category, "list")
	if err != nil {
		return nil, err
	}
	refs, err := s.backend.List(ctx, string(c))
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []storage.AssetRef{}
	}
	return refs, nil
}

// Lookup finds the ref for name within category.
func (s *Service) Lookup(ctx context.Context, category, name string) (storage.AssetRef, error) {
	refs, err := s.List(ctx, category)
	if err != nil {
		return storage.AssetRef{}, err
	}
	for _, ref := range refs {
		if ref.Name == name {
			return ref, nil
		}
	}
	return storage.AssetRef{}, services.Wrap(services.ErrNotFound, "catalog", "lookup",
		fmt.Sprintf("beat %q not found in %s", name, category), nil)
}

// Fetch returns a beat and its full contents.
func (s *Service) Fetch(ctx context.Context, category, name string) (storage.AssetRef, []byte, error) {
	ref, err := s.Lookup(ctx, category, name)
	if err != nil {
		return storage.AssetRef{}, nil, err
	}
	data, err := s.backend.Get(ctx, ref)
	if err != nil {
		return storage.AssetRef{}, nil, err
	}
	return ref, data, nil
}

// Preview returns a clip of the first durationSec seconds of a beat. Zero
// selects the configured default.
func (s *Service) Preview(ctx context.Context, category, name string, durationSec int) (preview.Clip, storage.AssetRef, error) {
	if s.preview == nil {
		return preview.Clip{}, storage.AssetRef{}, services.Wrap(services.ErrConfiguration, "catalog", "preview", "preview extractor not configured", nil)
	}
	ref, data, err := s.Fetch(ctx, category, name)
	if err != nil {
		return preview.Clip{}, storage.AssetRef{}, err
	}
	clip, err := s.preview.Extract(ctx, data, durationSec)
	if err != nil {
		s.logger.Warn("preview failed",
			logging.String(logging.FieldCategory, ref.Category),
			logging.String("beat", ref.Name),
			logging.String(logging.FieldEventType, "preview_failed"),
			logging.String(logging.FieldErrorHint, services.Kind(err)),
			logging.Error(err),
		)
		return preview.Clip{}, ref, err
	}
	return clip, ref, nil
}

func (s *Service) resolve(category, operation string) (Category, error) {
	c, ok := s.set.Resolve(category)
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "catalog", operation, fmt.Sprintf("unknown category %q", category), nil)
	}
	return c, nil
}
