// Package identification matches scanned local tracks against the library
// catalog.
//
// Tracks are clustered by album folder, resolved to an artist, album and
// release, and then mapped to individual catalog tracks. Every match carries a
// distance in [0,1] so the import decisions downstream can decide whether the
// match is close enough. Catalog lookups are cached for a short TTL so a batch
// of imports does not reload the same artist over and over.
package identification
