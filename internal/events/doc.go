// Package events carries in-process notifications between the decision,
// download and import pipelines.
//
// Publishing is synchronous: handlers run on the publisher's goroutine in
// subscription order. A failing or panicking handler is logged and never
// interrupts the publisher or the remaining handlers.
package events
