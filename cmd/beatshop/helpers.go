package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"beatshop/internal/config"
	"beatshop/internal/fileutil"
)

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// resolveOutput picks the destination for a downloaded file. An empty flag
// writes fallback into the working directory; a directory flag writes
// fallback inside it.
func resolveOutput(flagValue, fallback string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		return fallback, nil
	}
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return filepath.Join(expanded, fallback), nil
	}
	return expanded, nil
}

// writeOutput publishes data at path without replacing an existing file.
func writeOutput(path string, data []byte) (fileutil.Published, error) {
	published, err := fileutil.WriteExclusive(path, bytes.NewReader(data), 0o644)
	if err != nil {
		return fileutil.Published{}, fmt.Errorf("write %s: %w", path, err)
	}
	return published, nil
}
