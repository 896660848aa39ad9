// Package preflight provides readiness checks for the filesystem paths,
// storage backend and external tools beatshop depends on.
//
// These checks run in two contexts:
//   - `beatshop serve` calls RunAll at startup and logs failures without
//     refusing to start, so a flaky bucket does not keep the shop offline.
//   - `beatshop status` and GET /api/status render the same results for
//     operators.
package preflight
