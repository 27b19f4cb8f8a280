// Package download moves releases into download clients and follows them back
// out again.
//
// Grabber hands prioritized release decisions to the best client for their
// protocol. Monitor polls every client and passes each item to Reconciler,
// which correlates the item with its grab through history, runs the import
// pipeline once the client reports completion and records the outcome in the
// Tracker. Each tracked download is a small state machine (see Transition);
// passes over the same download are serialized and a pass that started before
// a newer one finished is discarded.
package download
