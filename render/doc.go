// Package render carries advisory progress notifications from running nodes
// to presentation layers.
//
// Updates are lossy by contract: an update published while nobody listens is
// gone, and a subscriber that can't keep up misses updates instead of slowing
// the executor down. Nothing here is replayed. Use the output providers for
// anything that must arrive.
package render
