// Package importer turns files on disk into library track files.
//
// DecisionMaker reads each file, hands the batch to identification and runs
// album-level then track-level specifications, producing one Decision per
// file. Executor orders the accepted decisions so the best candidate for a
// track slot goes first, transfers files through fileops, persists the
// resulting TrackFiles and publishes import events. Both stages report one
// outcome per file: a single bad file never aborts the batch.
//
// Pipeline ties the two together for a folder or file path and is what the
// download reconciler and the manual import command call.
package importer
