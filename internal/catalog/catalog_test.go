package catalog_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"beatshop/internal/catalog"
	"beatshop/internal/preview"
	"beatshop/internal/services"
	"beatshop/internal/storage/memory"
)

type stubPreviewer struct {
	gotPayload  []byte
	gotDuration int
	err         error
}

func (s *stubPreviewer) Extract(_ context.Context, payload []byte, durationSec int) (preview.Clip, error) {
	s.gotPayload = payload
	s.gotDuration = durationSec
	if s.err != nil {
		return preview.Clip{}, s.err
	}
	return preview.Clip{Data: []byte("clip"), ContentType: preview.ContentType}, nil
}

func mustSet(t *testing.T, names ...string) catalog.Set {
	t.Helper()
	set, err := catalog.NewSet(names)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestNewSet(t *testing.T) {
	set := mustSet(t, "rap", " Afro ", "rap", "lo_fi")
	if set.Len() != 3 {
		t.Fatalf("expected 3 categories, got %d", set.Len())
	}
	all := set.All()
	if all[0] != "rap" || all[1] != "afro" || all[2] != "lo_fi" {
		t.Fatalf("unexpected order: %v", all)
	}
	if got := all[2].Label(); got != "Lo Fi" {
		t.Fatalf("label = %q", got)
	}
	if c, ok := set.Resolve("AFRO"); !ok || c != "afro" {
		t.Fatalf("Resolve(AFRO) = %q, %v", c, ok)
	}
	if _, ok := set.Resolve("jazz"); ok {
		t.Fatal("expected jazz to be unknown")
	}

	for _, bad := range [][]string{nil, {"bad/name"}, {""}} {
		if _, err := catalog.NewSet(bad); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("NewSet(%v): expected configuration error, got %v", bad, err)
		}
	}
}

func TestServiceListFetchPreview(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	payload := []byte("beat bytes")
	if _, err := backend.Put(ctx, "afro", "demo.mp3", bytes.NewReader(payload)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	previewer := &stubPreviewer{}
	svc := catalog.NewService(mustSet(t, "rap", "afro"), backend, previewer, nil)

	refs, err := svc.List(ctx, "Afro")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "demo.mp3" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
	empty, err := svc.List(ctx, "rap")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v, %v", empty, err)
	}

	_, data, err := svc.Fetch(ctx, "afro", "demo.mp3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("fetched %q", data)
	}

	clip, _, err := svc.Preview(ctx, "afro", "demo.mp3", 12)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if string(clip.Data) != "clip" || previewer.gotDuration != 12 || !bytes.Equal(previewer.gotPayload, payload) {
		t.Fatalf("unexpected preview call: clip=%q duration=%d", clip.Data, previewer.gotDuration)
	}

	summaries, err := svc.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(summaries) != 2 || summaries[1].Beats != 1 || summaries[1].Label != "Afro" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}

func TestServiceNotFound(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(mustSet(t, "rap"), memory.New(), &stubPreviewer{}, nil)

	if _, err := svc.List(ctx, "jazz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown category: expected not found, got %v", err)
	}
	if _, _, err := svc.Fetch(ctx, "rap", "missing.mp3"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing beat: expected not found, got %v", err)
	}
	if _, _, err := svc.Preview(ctx, "rap", "missing.mp3", 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing preview: expected not found, got %v", err)
	}
}

func TestServicePreviewPropagatesUnsupported(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	if _, err := backend.Put(ctx, "rap", "broken.mp3", bytes.NewReader([]byte("junk"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	unsupported := services.Wrap(services.ErrUnsupportedAudio, "preview", "decode", "bad", nil)
	svc := catalog.NewService(mustSet(t, "rap"), backend, &stubPreviewer{err: unsupported}, nil)

	_, ref, err := svc.Preview(ctx, "rap", "broken.mp3", 0)
	if !errors.Is(err, services.ErrUnsupportedAudio) {
		t.Fatalf("expected unsupported audio, got %v", err)
	}
	if ref.Name != "broken.mp3" {
		t.Fatalf("expected ref on failure, got %+v", ref)
	}
}
