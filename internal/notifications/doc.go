// Package notifications tells the shop operator about uploads and failures.
//
// Events are published through a single Service.Publish call. ntfy (HTTP) and
// SMTP email are supported and fan out when both are configured; with neither
// configured NewService returns a no-op. Callers treat delivery as best-effort
// and log failures instead of propagating them.
package notifications
