// Package nodetype is the catalog of node kinds an agent graph can place.
//
// A NodeType is plain data: an identifier, a semantic version, an ordered
// input schema, an ordered output schema and a compute entry point. New kinds
// are added by registering another record, never by subclassing:
//
//	reg := nodetype.NewRegistry()
//	err := reg.Register(&nodetype.NodeType{
//	    ID:      "@core/upper",
//	    Version: "1.0.0",
//	    Inputs:  nodetype.NewSchema(nodetype.NewSlot("text", nodetype.String)),
//	    Outputs: nodetype.NewSchema(nodetype.NewSlot("text", nodetype.String)),
//	    Compute: func(ctx context.Context, call nodetype.Call) error {
//	        in, _ := call.Input("text")
//	        return call.Complete(ctx, "text", strings.ToUpper(in.(string)))
//	    },
//	})
//
// Registries are explicit values. Nothing in this package keeps process-wide
// state, so tests can build disjoint registries side by side.
package nodetype
