// Package textutil provides text helpers for turning user input into safe
// filesystem and object-store names.
//
// Filenames are normalized to Unicode NFC before unsafe characters are
// replaced, so visually identical names uploaded from different platforms
// map to the same asset key.
package textutil
