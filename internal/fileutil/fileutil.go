// Package fileutil holds small filesystem helpers shared by the local storage
// binding and the CLI.
package fileutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TempPrefix marks in-flight files. Listings skip names starting with ".".
const TempPrefix = ".incoming-"

// Published describes a file created by WriteExclusive.
type Published struct {
	Path   string
	Size   int64
	SHA256 []byte
}

// WriteExclusive streams r into dst without ever exposing a partial file under
// the final name. Data lands in a hidden temp file in the same directory, is
// synced, then hard-linked into place. The link fails if dst already exists,
// in which case the returned error matches fs.ErrExist and nothing is changed.
func WriteExclusive(dst string, r io.Reader, mode os.FileMode) (Published, error) {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return Published{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		_ = tmp.Close()
		return Published{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return Published{}, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Published{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Published{}, fmt.Errorf("close temp file: %w", err)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return Published{}, fmt.Errorf("stat temp file: %w", err)
	}
	if info.Size() != written {
		return Published{}, fmt.Errorf("write size mismatch: wrote %d bytes, found %d", written, info.Size())
	}

	if err := os.Link(tmpPath, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Published{}, fmt.Errorf("publish %s: %w", filepath.Base(dst), fs.ErrExist)
		}
		return Published{}, fmt.Errorf("publish %s: %w", filepath.Base(dst), err)
	}
	return Published{Path: dst, Size: written, SHA256: hasher.Sum(nil)}, nil
}
