// Package library persists the music catalog, imported track files and
// history in SQLite.
//
// Store satisfies the catalog, track file and history interfaces the
// decision, import and download packages declare, and answers the wanted
// queries (albums missing files, albums below their profile cutoff) that
// drive searches. SeedCatalog loads artists and albums from a JSON document so
// a library can be populated without a metadata provider.
package library
