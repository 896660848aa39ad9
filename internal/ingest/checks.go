package ingest

import (
	"path"
	"path/filepath"
	"strings"

	"beatshop/internal/textutil"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{"mp3", "wav", "zip", "flac"}

// DefaultMaxUploadMB is the size ceiling used when none is configured.
const DefaultMaxUploadMB = 50

// AllowList is a case-insensitive set of file extensions without dots.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList. Leading dots and case are ignored.
func NewAllowList(exts []string) AllowList {
	list := make(AllowList, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			list[ext] = struct{}{}
		}
	}
	return list
}

// Allows reports whether filename carries an allowed extension. Names without
// an extension, or with nothing before the dot, are not allowed.
func (a AllowList) Allows(filename string) bool {
	ext := filepath.Ext(filename)
	if len(ext) < 2 || len(ext) == len(filename) {
		return false
	}
	_, ok := a[strings.ToLower(ext[1:])]
	return ok
}

var defaultAllowList = NewAllowList(DefaultExtensions)

// CheckExtension applies the default allow-list.
func CheckExtension(filename string) bool {
	return defaultAllowList.Allows(filename)
}

// CheckSize reports whether sizeBytes fits within maxMB megabytes (MiB).
// A non-positive maxMB selects DefaultMaxUploadMB.
func CheckSize(sizeBytes int64, maxMB int) bool {
	if maxMB <= 0 {
		maxMB = DefaultMaxUploadMB
	}
	return sizeBytes >= 0 && sizeBytes <= int64(maxMB)*1024*1024
}

// CheckSecret reports whether supplied equals expected. An empty expected
// code never matches. The comparison is plain equality: the code is a shared
// upload password, not a cryptographic credential.
func CheckSecret(supplied, expected string) bool {
	return expected != "" && supplied == expected
}

// SecretGate holds the configured upload code.
type SecretGate struct {
	expected string
}

// NewSecretGate returns a gate that admits expected.
func NewSecretGate(expected string) SecretGate {
	return SecretGate{expected: expected}
}

// Admits reports whether supplied matches the configured code.
func (g SecretGate) Admits(supplied string) bool {
	return CheckSecret(supplied, g.expected)
}

// String never reveals the code.
func (g SecretGate) String() string { return "SecretGate(***)" }

// NormalizeName reduces a client filename to a safe base name. It returns ""
// for names that cannot be stored: empty, "." or "..", or hidden files.
func NormalizeName(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	name := textutil.SanitizeFileName(base)
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}
