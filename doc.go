/*
Package reagent is a runtime for agent dependency graphs: directed acyclic
graphs of typed nodes whose outputs feed each other's inputs, executed
concurrently once per run with live streaming between nodes.

The module is organized around a handful of packages:

  - nodetype: versioned node type declarations with typed input and output
    slots, and the registry that catalogs them
  - graph: the builder that instantiates node types, binds inputs to
    constants or upstream outputs, and finalizes an acyclic graph
  - output: one provider per output slot holding partial and terminal
    values per run, with replaying subscriptions and selects
  - executor: runs a finalized graph, scheduling nodes as their inputs
    resolve and reporting a per-node result
  - render: the channel nodes use to emit presentation updates, delivered
    in process or over NATS
  - nodes: the built-in input, chat completion and user node types
  - agentfile: loads graphs from HCL agent files

# Basic Usage

	reg := nodetype.NewRegistry()
	if err := nodes.RegisterCore(reg, openai.Catalog()); err != nil {
		// Handle error
	}

	g, err := nodes.Demo(reg)
	if err != nil {
		// Handle error
	}

	run, err := executor.New().Execute(ctx, g, executor.Inputs{
		"model": "gpt-4o-mini",
		"query": "Tell me a joke",
	})
	if err != nil {
		// Handle error
	}

	answers, err := g.Output("user", "markdown")
	if err != nil {
		// Handle error
	}
	answer, err := output.SelectAs[string](ctx, answers, run.ID())

Agent files describe the same graph declaratively:

	node "chat-1" {
	  type   = "@core/chat-completion"
	  config = { systemPrompt = "You are a helpful assistant", stream = true }
	  bind   = { model = input.model, query = input.query }
	}

The reagent command in cmd/reagent runs agents from the terminal.
*/
package reagent
