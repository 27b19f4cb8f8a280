// Package logs reads the daemon log file for `needle logs`: the last lines,
// optionally narrowed to lines mentioning a correlation or download id, and
// a follow mode that polls for appended lines until the context ends.
package logs
