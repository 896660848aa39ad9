package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteExclusivePublishesFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "demo.mp3")
	content := []byte("hello beats")

	pub, err := WriteExclusive(dst, bytes.NewReader(content), 0o644)
	if err != nil {
		t.Fatalf("WriteExclusive: %v", err)
	}
	if pub.Size != int64(len(content)) {
		t.Fatalf("unexpected size %d", pub.Size)
	}
	sum := sha256.Sum256(content)
	if !bytes.Equal(pub.SHA256, sum[:]) {
		t.Fatal("hash mismatch")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content mismatch: %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestWriteExclusiveRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "demo.mp3")
	if err := os.WriteFile(dst, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := WriteExclusive(dst, strings.NewReader("replacement"), 0o644)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "original" {
		t.Fatalf("existing file modified: %q", got)
	}
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TempPrefix) {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
