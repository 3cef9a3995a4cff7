// Package nodes provides the built-in node kinds of a conversational agent:
// an input collector that exposes the values a run was started with, a chat
// completion that calls a model provider and streams the answer, and a user
// sink that renders the answer for presentation layers.
//
// A typical agent wires them as
//
//	input.model, input.query -> chat-1 -> user.markdownStream
//
// Demo builds exactly that graph.
package nodes
