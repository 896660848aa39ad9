package local_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"beatshop/internal/logging"
	"beatshop/internal/services"
	"beatshop/internal/storage"
	"beatshop/internal/storage/local"
)

func newBackend(t *testing.T) (*local.Backend, string) {
	t.Helper()
	root := t.TempDir()
	b, err := local.New(root, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, root
}

func TestEnsureCategoryIsIdempotent(t *testing.T) {
	b, root := newBackend(t)
	ctx := context.Background()

	first, err := b.EnsureCategory(ctx, "rap")
	if err != nil {
		t.Fatalf("EnsureCategory: %v", err)
	}
	second, err := b.EnsureCategory(ctx, "rap")
	if err != nil {
		t.Fatalf("EnsureCategory again: %v", err)
	}
	if first != second {
		t.Fatalf("handles differ: %+v vs %+v", first, second)
	}
	if first.ID != filepath.Join(root, "rap") {
		t.Fatalf("unexpected handle id %q", first.ID)
	}
	info, err := os.Stat(first.ID)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected category directory: %v", err)
	}
}

func TestEnsureCategoryConcurrentCallsShareOneDirectory(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	// Two backends on one root stand in for two processes.
	backends := make([]*local.Backend, 2)
	for i := range backends {
		b, err := local.New(root, logging.NewNop())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		backends[i] = b
	}

	var wg sync.WaitGroup
	handles := make([]storage.CategoryHandle, 16)
	errs := make([]error, len(handles))
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = backends[i%2].EnsureCategory(ctx, "afro")
		}(i)
	}
	wg.Wait()

	for i := range handles {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("handle %d differs: %+v", i, handles[i])
		}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 1 || dirs[0] != "afro" {
		t.Fatalf("expected exactly one category directory, got %v", dirs)
	}
}

func TestPutListGetRoundTrip(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("beat"), 5*1024*1024/4)
	ref, err := b.Put(ctx, "afro", "demo.mp3", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", ref.Size)
	}

	refs, err := b.List(ctx, "afro")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "demo.mp3" || refs[0].Size != ref.Size {
		t.Fatalf("unexpected listing: %+v", refs)
	}

	got, err := b.Get(ctx, refs[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}
}

func TestPutRejectsDuplicateName(t *testing.T) {
	b, root := newBackend(t)
	ctx := context.Background()

	if _, err := b.Put(ctx, "rap", "demo.mp3", strings.NewReader("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err := b.Put(ctx, "rap", "demo.mp3", strings.NewReader("second"))
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "rap", "demo.mp3"))
	if string(data) != "first" {
		t.Fatalf("original overwritten: %q", data)
	}
}

func TestListSkipsHiddenAndSorts(t *testing.T) {
	b, root := newBackend(t)
	ctx := context.Background()
	for _, name := range []string{"b.wav", "a.mp3"} {
		if _, err := b.Put(ctx, "rnb", name, strings.NewReader(name)); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "rnb", ".incoming-123"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	refs, err := b.List(ctx, "rnb")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(refs) != 2 || refs[0].Name != "a.mp3" || refs[1].Name != "b.wav" {
		t.Fatalf("unexpected listing: %+v", refs)
	}
}

func TestListMissingCategoryIsEmpty(t *testing.T) {
	b, _ := newBackend(t)
	refs, err := b.List(context.Background(), "rap")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if refs == nil || len(refs) != 0 {
		t.Fatalf("expected empty slice, got %#v", refs)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	b, _ := newBackend(t)
	_, err := b.Get(context.Background(), storage.AssetRef{Category: "rap", Name: "nope.mp3"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()
	if _, err := b.Put(ctx, "rap", "../escape.mp3", strings.NewReader("x")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := b.EnsureCategory(ctx, "../x"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
