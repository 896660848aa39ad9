// Package services defines shared utilities consumed by the storage bindings,
// the ingestion and preview pipelines, and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, categories, and operation names
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers tell
//     validation, storage, and audio failures apart and map them to API
//     statuses.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the service.
package services
