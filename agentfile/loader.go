package agentfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/casualjim/reagent/graph"
	"github.com/casualjim/reagent/nodetype"
	"github.com/fogfish/opts"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Extension is the file extension Load looks for in directories.
const Extension = ".hcl"

var (
	WithLogger = opts.ForName[Loader, *slog.Logger]("logger")
)

// WithBuilderOptions configures the graph builder used for every load.
func WithBuilderOptions(options ...opts.Option[graph.Builder]) opts.Option[Loader] {
	return opts.Type[Loader](func(l *Loader) error {
		l.builderOptions = append(l.builderOptions, options...)
		return nil
	})
}

// Loader turns agent files into finalized graphs of node types from its
// registry.
type Loader struct {
	registry       *nodetype.Registry
	logger         *slog.Logger
	builderOptions []opts.Option[graph.Builder]
}

func New(reg *nodetype.Registry, options ...opts.Option[Loader]) *Loader {
	l := &Loader{registry: reg}
	if err := opts.Apply(l, options); err != nil {
		panic(err)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Load builds one graph out of the node blocks of all files found at paths.
// Directories are searched recursively for files with the .hcl extension.
func Load(ctx context.Context, reg *nodetype.Registry, paths ...string) (*graph.Graph, error) {
	return New(reg).Load(ctx, paths...)
}

// Parse builds a graph from the agent file src. filename is only used in
// error messages.
func Parse(ctx context.Context, reg *nodetype.Registry, filename string, src []byte) (*graph.Graph, error) {
	return New(reg).Parse(ctx, filename, src)
}

type fileSchema struct {
	Nodes []*nodeBlock `hcl:"node,block"`
}

type nodeBlock struct {
	ID        string         `hcl:"id,label"`
	Type      string         `hcl:"type"`
	Version   string         `hcl:"version,optional"`
	Config    *hcl.Attribute `hcl:"config,optional"`
	Bind      *hcl.Attribute `hcl:"bind,optional"`
	Stream    *hcl.Attribute `hcl:"stream,optional"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

func (l *Loader) Load(ctx context.Context, paths ...string) (*graph.Graph, error) {
	files, err := findFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no agent files found in %v", paths)
	}

	parser := hclparse.NewParser()
	var blocks []*nodeBlock
	for _, file := range files {
		l.logger.DebugContext(ctx, "loading agent file", slog.String("path", file))
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse agent file %s: %w", file, diags)
		}
		decoded, err := decode(file, f)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, decoded...)
	}
	return l.build(ctx, blocks)
}

func (l *Loader) Parse(ctx context.Context, filename string, src []byte) (*graph.Graph, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse agent file %s: %w", filename, diags)
	}
	blocks, err := decode(filename, f)
	if err != nil {
		return nil, err
	}
	return l.build(ctx, blocks)
}

func decode(filename string, f *hcl.File) ([]*nodeBlock, error) {
	var parsed fileSchema
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode agent file %s: %w", filename, diags)
	}
	return parsed.Nodes, nil
}

func findFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == Extension {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to find agent files in %s: %w", p, err)
		}
	}
	return files, nil
}

// build adds every node before binding any, so bindings may point forward.
func (l *Loader) build(ctx context.Context, blocks []*nodeBlock) (*graph.Graph, error) {
	b := graph.NewBuilder(l.registry, l.builderOptions...)
	evalCtx := evalContext()

	handles := make([]*graph.NodeHandle, 0, len(blocks))
	for _, block := range blocks {
		config, diags := decodeConfig(block.Config, evalCtx)
		if diags.HasErrors() {
			return nil, diags
		}
		h, err := b.AddNodeOf(block.ID, block.Type, block.Version, config)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", block.DeclRange, err)
		}
		handles = append(handles, h)
	}

	var errs []error
	for i, block := range blocks {
		bindings, diags := l.bindings(b, handles[i], block, evalCtx)
		if diags.HasErrors() {
			errs = append(errs, diags)
			continue
		}
		if len(bindings) == 0 {
			continue
		}
		if err := handles[i].Bind(bindings); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", block.DeclRange, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	g, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "agent loaded", slog.Int("nodes", len(blocks)), slog.Any("order", g.Order()))
	return g, nil
}

func decodeConfig(attr *hcl.Attribute, evalCtx *hcl.EvalContext) (nodetype.Config, hcl.Diagnostics) {
	if attr == nil {
		return nil, nil
	}
	v, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid node config",
			Detail:   "The config attribute must be an object.",
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	native, err := toNative(v)
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid node config",
			Detail:   err.Error(),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return nodetype.Config(native.(map[string]any)), nil
}

func (l *Loader) bindings(b *graph.Builder, h *graph.NodeHandle, block *nodeBlock, evalCtx *hcl.EvalContext) (graph.Bindings, hcl.Diagnostics) {
	bindings := graph.Bindings{}
	var diags hcl.Diagnostics

	for _, entry := range []struct {
		attr     *hcl.Attribute
		streamed bool
	}{{block.Bind, false}, {block.Stream, true}} {
		if entry.attr == nil {
			continue
		}
		pairs, pdiags := hcl.ExprMap(entry.attr.Expr)
		diags = append(diags, pdiags...)
		if pdiags.HasErrors() {
			continue
		}

		for _, kv := range pairs {
			slot, kdiags := slotName(kv.Key)
			diags = append(diags, kdiags...)
			if kdiags.HasErrors() {
				continue
			}
			if _, dup := bindings[slot]; dup {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate binding",
					Detail:   fmt.Sprintf("Input %q of node %q is bound more than once.", slot, block.ID),
					Subject:  kv.Key.Range().Ptr(),
				})
				continue
			}

			src, sdiags := l.source(b, h, slot, kv.Value, entry.streamed, evalCtx)
			diags = append(diags, sdiags...)
			if !sdiags.HasErrors() {
				bindings[slot] = src
			}
		}
	}
	return bindings, diags
}

func slotName(key hcl.Expression) (string, hcl.Diagnostics) {
	v, diags := key.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if v.IsNull() || v.Type() != cty.String {
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid input name",
			Detail:   "Binding keys must be input slot names.",
			Subject:  key.Range().Ptr(),
		}}
	}
	return v.AsString(), nil
}

func (l *Loader) source(b *graph.Builder, h *graph.NodeHandle, slot string, expr hcl.Expression, streamed bool, evalCtx *hcl.EvalContext) (graph.Source, hcl.Diagnostics) {
	if traversal, tdiags := hcl.AbsTraversalForExpr(expr); !tdiags.HasErrors() {
		ref, diags := outputRef(b, traversal, expr)
		if diags.HasErrors() {
			return nil, diags
		}
		if streamed {
			return graph.Streamed(ref), nil
		}
		return ref, nil
	}

	if streamed {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid stream binding",
			Detail:   "Streamed inputs must reference a node output, like chat-1.stream.",
			Subject:  expr.Range().Ptr(),
		}}
	}

	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	var typ nodetype.ValueType
	if decl, ok := h.Type().Inputs.Get(slot); ok {
		typ = decl.Type
	}
	value, err := toSlotValue(v, typ)
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid constant binding",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		}}
	}
	return graph.Const(value), nil
}

func outputRef(b *graph.Builder, traversal hcl.Traversal, expr hcl.Expression) (graph.OutputRef, hcl.Diagnostics) {
	invalid := func(summary, detail string) hcl.Diagnostics {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  summary,
			Detail:   detail,
			Subject:  expr.Range().Ptr(),
		}}
	}

	if len(traversal) != 2 {
		return graph.OutputRef{}, invalid("Invalid output reference", "Output references have the form node.slot.")
	}
	attr, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return graph.OutputRef{}, invalid("Invalid output reference", "Output references have the form node.slot.")
	}
	source, ok := b.Node(traversal.RootName())
	if !ok {
		return graph.OutputRef{}, invalid("Unknown node", fmt.Sprintf("No node %q is declared.", traversal.RootName()))
	}
	return source.Output(attr.Name), nil
}
