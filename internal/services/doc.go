// Package services defines the error markers and context helpers shared by the
// decision, download and import pipelines.
//
// Errors are tagged with one of the exported sentinels through Wrap so the
// scheduler can tell transient indexer or download-client faults (retried on
// the next tick) from configuration and validation problems. Context helpers
// stamp download ids, stage names and correlation ids for logging.
package services
