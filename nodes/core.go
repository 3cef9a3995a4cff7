package nodes

import (
	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/provider"
	"github.com/fogfish/opts"
)

// DemoSystemPrompt is the system prompt of the demo assistant.
const DemoSystemPrompt = "You are an amazing AI assistant called Jarvis"

// RegisterCore registers the input (model, query), chat completion and user
// kinds with reg.
func RegisterCore(reg *nodetype.Registry, models *provider.Models) error {
	for _, t := range []*nodetype.NodeType{Input("model", "query"), ChatCompletion(models), User()} {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Demo builds the demo agent from the core kinds registered in reg:
// input feeds chat-1, whose answer streams into user. The user also gets the
// final markdown, which it only reads when the stream is unavailable.
func Demo(reg *nodetype.Registry, options ...opts.Option[graph.Builder]) (*graph.Graph, error) {
	b := graph.NewBuilder(reg, options...)

	input, err := b.AddNodeOf("input", InputTypeID, "", nil)
	if err != nil {
		return nil, err
	}
	chat, err := b.AddNodeOf("chat-1", ChatCompletionTypeID, "", nodetype.Config{
		ConfigSystemPrompt: DemoSystemPrompt,
		ConfigTemperature:  0.9,
		ConfigStream:       true,
	})
	if err != nil {
		return nil, err
	}
	user, err := b.AddNodeOf("user", UserTypeID, "", nil)
	if err != nil {
		return nil, err
	}

	if err := chat.Bind(graph.Bindings{
		"model": input.Output("model"),
		"query": input.Output("query"),
	}); err != nil {
		return nil, err
	}
	if err := user.Bind(graph.Bindings{
		"markdown":       chat.Output("markdown"),
		"markdownStream": graph.Streamed(chat.Output("stream")),
	}); err != nil {
		return nil, err
	}
	return b.Finalize()
}
