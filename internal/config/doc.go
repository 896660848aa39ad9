// Package config loads, normalizes, and validates beatshop configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies environment overrides such as
// BEATSHOP_SECRET_CODE and GOOGLE_APPLICATION_CREDENTIALS. The Config type
// centralizes every knob the server and CLI need: the category set, upload
// limits, preview parameters and the storage backend selection.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical extension lists, and clear validation errors.
package config
