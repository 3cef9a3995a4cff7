// Package agentfile loads agent graphs from HCL files.
//
// Every node block places one node instance:
//
//	node "chat-1" {
//	  type    = "@core/chat-completion"
//	  version = "1.0.0" # optional, defaults to the latest registered version
//	  config  = { systemPrompt = "You are Jarvis", temperature = 0.9 }
//	  bind    = { model = input.model, query = input.query }
//	}
//
//	node "user" {
//	  type   = "@core/user"
//	  bind   = { markdown = chat-1.markdown }
//	  stream = { markdownStream = chat-1.stream }
//	}
//
// A bind value written as node.slot references that node's output; any other
// expression is evaluated once and bound as a constant. Entries of stream must
// be references and are delivered to the node as they are published. Nodes
// may reference nodes declared later or in other files of the same load.
package agentfile
