// Package output implements the per slot publish/subscribe primitive that
// carries node results.
//
// A Provider holds an append-only log of events for one output slot of one
// node instance. Every event names the run it belongs to; uuid.Nil marks a
// run-independent value that every run observes. Consumers either subscribe
// to the log, receiving a compacted replay followed by live events, or select
// a single run and wait for its terminal value.
//
// Within one provider the events of a run are delivered in publication order.
// Nothing is guaranteed across runs.
package output
