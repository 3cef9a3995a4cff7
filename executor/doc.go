// Package executor runs finalized graphs.
//
// Every call to Execute starts an independent run with a fresh run id. Nodes
// move through Pending, Ready, Running and end as Completed, Failed or
// Cancelled. A node becomes ready when every input has a terminal value for
// the run, or a run-independent one. A node with streaming inputs becomes
// ready as soon as their producers are running, so it sees every partial
// value; its other inputs are awaited when the node reads them.
// Independent nodes run concurrently.
//
// A failed node never unblocks its dependents. Nodes that can no longer run
// have their outputs closed right away, and once nothing else can make
// progress the run ends as partially failed with every output slot still
// open for the run closed, so selects on it reject instead of hanging.
// Cancelling the run, directly or through its deadline, cancels the run on
// every output slot: pending selects reject with output.RunCancelledError and
// later publishes fail.
package executor
