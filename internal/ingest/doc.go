// Package ingest validates beat uploads and hands accepted payloads to storage.
//
// Checks run in a fixed order and short-circuit: filename, extension,
// category, size, then the upload code. A rejected upload never reaches the
// storage backend. Accepted uploads trigger a best-effort operator
// notification whose failure is logged and otherwise ignored.
package ingest
