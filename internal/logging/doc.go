// Package logging assembles the slog loggers used across needle.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with download ids, stages and correlation
// ids. Warnings and errors that reach operators go through WarnWithContext and
// ErrorWithContext so every line carries an event type and a hint.
package logging
