// Package workflow wires the decision, download and import services together
// and runs them as the daemon's background loops.
//
// NewServices builds every collaborator from the configuration and a library
// store. The Manager then runs three independent loops: rss pulls recent
// releases from every indexer and grabs the best accepted ones, downloads polls
// the download clients and reconciles what they report, and search looks for
// wanted albums (missing files or below cutoff). Each run carries its own
// correlation id, and a loop that fails with a transient error retries with
// exponential backoff instead of waiting for its next interval.
package workflow
