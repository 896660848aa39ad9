package sqlite_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storage"
	"beatshop/internal/storage/sqlite"
)

func openBackend(t *testing.T, path string) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.Open(context.Background(), path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPutListGet(t *testing.T) {
	b := openBackend(t, filepath.Join(t.TempDir(), "beats.db"))
	ctx := context.Background()

	for _, name := range []string{"zulu.mp3", "alpha.wav"} {
		if _, err := b.Put(ctx, "rap", name, strings.NewReader(name)); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}

	refs, err := b.List(ctx, "rap")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 2 || refs[0].Name != "alpha.wav" || refs[1].Name != "zulu.mp3" {
		t.Fatalf("unexpected listing: %+v", refs)
	}
	if refs[0].ContentType != "audio/wav" || refs[0].Size != int64(len("alpha.wav")) {
		t.Fatalf("unexpected ref: %+v", refs[0])
	}
	if refs[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to round-trip")
	}

	data, err := b.Get(ctx, refs[1])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(data, []byte("zulu.mp3")) {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestPutLogsCategoryField(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	b, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "beats.db"), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if _, err := b.Put(context.Background(), "afro", "demo.mp3", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	found := false
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if rec["msg"] != "asset stored" {
			continue
		}
		found = true
		if rec[logging.FieldCategory] != "afro" {
			t.Fatalf("expected %s=afro, got %v", logging.FieldCategory, rec)
		}
	}
	if !found {
		t.Fatalf("asset stored record missing from %s", buf.String())
	}
}

func TestListUnknownCategoryIsEmpty(t *testing.T) {
	b := openBackend(t, filepath.Join(t.TempDir(), "beats.db"))
	refs, err := b.List(context.Background(), "afro")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if refs == nil || len(refs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", refs)
	}
}

func TestPutDuplicateFails(t *testing.T) {
	b := openBackend(t, filepath.Join(t.TempDir(), "beats.db"))
	ctx := context.Background()
	if _, err := b.Put(ctx, "rap", "beat.mp3", strings.NewReader("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err := b.Put(ctx, "rap", "beat.mp3", strings.NewReader("two"))
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	data, err := b.Get(ctx, storage.AssetRef{Category: "rap", Name: "beat.mp3"})
	if err != nil || string(data) != "one" {
		t.Fatalf("original asset changed: %q, %v", data, err)
	}
}

func TestGetMissing(t *testing.T) {
	b := openBackend(t, filepath.Join(t.TempDir(), "beats.db"))
	_, err := b.Get(context.Background(), storage.AssetRef{Category: "rap", Name: "nope.mp3"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureCategoryIsIdempotent(t *testing.T) {
	b := openBackend(t, filepath.Join(t.TempDir(), "beats.db"))
	ctx := context.Background()
	first, err := b.EnsureCategory(ctx, "rnb")
	if err != nil {
		t.Fatalf("EnsureCategory: %v", err)
	}
	second, err := b.EnsureCategory(ctx, "rnb")
	if err != nil {
		t.Fatalf("EnsureCategory again: %v", err)
	}
	if first != second {
		t.Fatalf("handles differ: %+v vs %+v", first, second)
	}
	if _, err := b.EnsureCategory(ctx, "../etc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReopenKeepsAssets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "beats.db")
	ctx := context.Background()

	first, err := sqlite.Open(ctx, path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := first.Put(ctx, "afro", "groove.flac", strings.NewReader("flac")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openBackend(t, path)
	refs, err := second.List(ctx, "afro")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "groove.flac" {
		t.Fatalf("unexpected listing after reopen: %+v", refs)
	}
}

func TestConcurrentPutsOfOneNameStoreOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beats.db")
	ctx := context.Background()

	// Two handles on one file stand in for two processes.
	backends := []*sqlite.Backend{openBackend(t, path), openBackend(t, path)}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		stored   int
		conflict int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(b *sqlite.Backend) {
			defer wg.Done()
			_, err := b.Put(ctx, "rap", "same.mp3", strings.NewReader("x"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stored++
			case errors.Is(err, services.ErrAlreadyExists):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(backends[i%2])
	}
	wg.Wait()

	if stored != 1 || conflict != 7 {
		t.Fatalf("expected one store and seven conflicts, got %d/%d", stored, conflict)
	}
}
