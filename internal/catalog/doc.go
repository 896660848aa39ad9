// Package catalog exposes the shop's category set and the read side of the
// storefront: listing beats, fetching originals, and cutting previews.
//
// The Service is shared by the HTTP API and the CLI so both enforce the same
// category membership and error classification.
package catalog
