// Package graph assembles node instances and their bindings into an
// immutable, topologically ordered Graph.
//
// A Builder is a staging area: nodes are added with AddNode, their inputs are
// bound to other nodes' outputs or to constants with Bind, and Finalize
// validates the whole set and produces a Graph. Finalize is all or nothing and
// never exposes a partially built graph. The same build sequence always
// yields the same execution order; ties between independent nodes are broken
// by the order in which the nodes were added.
//
// A Graph owns one output.Provider per node output slot. It is reused across
// runs and released once with Release.
package graph
