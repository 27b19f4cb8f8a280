// Package daemon coordinates the long-running needle process.
//
// It ties configuration, the library store and the workflow manager into a
// single lifecycle with flock-based locking in the data directory so only one
// daemon touches a library at a time. Loop scheduling lives in workflow; the
// daemon only starts, stops and reports on it.
package daemon
