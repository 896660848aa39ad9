// Package main hosts the beatshop CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the HTTP server and gives operators
// direct access to the same catalog, ingest and preview services the server
// uses: listing categories and beats, uploading, fetching originals, cutting
// previews, checking readiness, and scaffolding configuration.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through a command here.
package main
