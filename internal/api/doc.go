// Package api serves the beatshop HTTP API and defines its wire-format types.
//
// # Routes
//
//	GET  /healthz
//	GET  /api/status
//	GET  /api/categories
//	GET  /api/categories/{category}/beats
//	POST /api/categories/{category}/beats                      multipart: file, code
//	GET  /api/categories/{category}/beats/{name}               full download
//	GET  /api/categories/{category}/beats/{name}/preview?duration=N
//
// # Errors
//
// Failures are JSON objects with "error", "kind" and, for upload rejections,
// "reason". Status codes come from services.HTTPStatus, except that a wrong
// upload code is 403 and an oversized upload is 413.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Every response carries X-Request-ID; a client-supplied value is reused so a
// storefront can correlate its own logs with ours.
package api
