// Package preflight provides readiness checks for the filesystem paths needle
// depends on: its own directories, indexer feeds and download client folders.
//
// The daemon logs failed checks at startup and `needle config validate`
// prints every result. Checks never change anything on disk.
package preflight
