// Package history records what happened to releases and files: grabs,
// imports, failures. Records are written by a Service subscribed to the
// event bus and read back by release specifications and the download
// reconciler.
package history
