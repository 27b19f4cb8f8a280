// Package ipc exposes the daemon over JSON-RPC on a Unix socket in the data
// directory and ships the matching client used by the CLI.
//
// The request and response types here are the wire contract between
// `needle status`/`needle sync` and a running needled.
package ipc
