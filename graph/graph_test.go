package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/pkg/uuidx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, nodetype.Call) error { return nil }

var (
	sourceType = &nodetype.NodeType{
		ID: "@test/source", Version: "1.0.0", Compute: noop,
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.String)),
	}
	echoType = &nodetype.NodeType{
		ID: "@test/echo", Version: "1.0.0", Compute: noop,
		Inputs:  nodetype.NewSchema(nodetype.NewSlot("in", nodetype.String)),
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.String)),
	}
	pairType = &nodetype.NodeType{
		ID: "@test/pair", Version: "1.0.0", Compute: noop,
		Inputs: nodetype.NewSchema(
			nodetype.NewSlot("a", nodetype.String),
			nodetype.NewSlot("b", nodetype.String),
			nodetype.NewSlot("hint", nodetype.String).AsOptional(),
		),
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.String)),
	}
	numberType = &nodetype.NodeType{
		ID: "@test/number", Version: "1.0.0", Compute: noop,
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.Float)),
	}
	anyType = &nodetype.NodeType{
		ID: "@test/any", Version: "1.0.0", Compute: noop,
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.Any)),
	}
	sinkType = &nodetype.NodeType{
		ID: "@test/sink", Version: "1.0.0", Compute: noop,
		Inputs: nodetype.NewSchema(
			nodetype.NewSlot("text", nodetype.String).Streamed(),
		),
		Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.String)),
	}
)

func testRegistry() *nodetype.Registry {
	reg := nodetype.NewRegistry()
	reg.MustRegister(sourceType, echoType, pairType, numberType, anyType, sinkType)
	return reg
}

func mustAdd(t *testing.T, b *Builder, id string, nt *nodetype.NodeType) *NodeHandle {
	t.Helper()
	h, err := b.AddNode(id, nt, nil)
	require.NoError(t, err)
	return h
}

func TestAddNode(t *testing.T) {
	t.Run("duplicate instance id", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		mustAdd(t, b, "a", sourceType)
		_, err := b.AddNode("a", echoType, nil)
		var dup *DuplicateInstanceError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "a", dup.Node)
	})

	t.Run("invalid instance id", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		var invalid *InvalidInstanceError
		_, err := b.AddNode("", sourceType, nil)
		assert.ErrorAs(t, err, &invalid)
		_, err = b.AddNode("a.b", sourceType, nil)
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("type from another registry", func(t *testing.T) {
		b := NewBuilder(nodetype.NewRegistry())
		_, err := b.AddNode("a", sourceType, nil)
		var unknown *nodetype.UnknownTypeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "@test/source", unknown.ID)
	})

	t.Run("by type id", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		h, err := b.AddNodeOf("a", "@test/echo", "1.0.0", nil)
		require.NoError(t, err)
		assert.Same(t, echoType, h.Type())

		h, err = b.AddNodeOf("b", "@test/echo", "", nil)
		require.NoError(t, err)
		assert.Same(t, echoType, h.Type())

		_, err = b.AddNodeOf("c", "@test/missing", "1.0.0", nil)
		var unknown *nodetype.UnknownTypeError
		assert.ErrorAs(t, err, &unknown)
	})

	t.Run("config is copied", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		cfg := nodetype.Config{"temperature": 0.9}
		_, err := b.AddNode("a", sourceType, cfg)
		require.NoError(t, err)
		cfg["temperature"] = 0.1

		g, err := b.Finalize()
		require.NoError(t, err)
		defer g.Release()
		n, _ := g.Node("a")
		assert.InDelta(t, 0.9, n.Config.GetFloat("temperature", 0), 1e-9)
	})
}

func TestBind(t *testing.T) {
	t.Run("unknown input slot", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		src := mustAdd(t, b, "src", sourceType)
		echo := mustAdd(t, b, "echo", echoType)

		err := echo.Bind(Bindings{"input": src.Output("out")})
		var unknown *UnknownSlotError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "echo", unknown.Node)
		assert.Equal(t, "input", unknown.Slot)
		assert.Equal(t, InputSlot, unknown.Direction)
	})

	t.Run("unknown output slot", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		src := mustAdd(t, b, "src", sourceType)
		echo := mustAdd(t, b, "echo", echoType)

		err := echo.Bind(Bindings{"in": src.Output("result")})
		var unknown *UnknownSlotError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "src", unknown.Node)
		assert.Equal(t, OutputSlot, unknown.Direction)
		assert.Contains(t, err.Error(), "result")
	})

	t.Run("type mismatch", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		num := mustAdd(t, b, "num", numberType)
		echo := mustAdd(t, b, "echo", echoType)

		err := echo.Bind(Bindings{"in": num.Output("out")})
		var mismatch *TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "echo", mismatch.Node)
		assert.Equal(t, "in", mismatch.Slot)
		assert.Equal(t, nodetype.Float, mismatch.Got)

		err = echo.Bind(Bindings{"in": Const(42)})
		require.ErrorAs(t, err, &mismatch)
	})

	t.Run("untyped producers are accepted", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		anything := mustAdd(t, b, "any", anyType)
		echo := mustAdd(t, b, "echo", echoType)
		assert.NoError(t, echo.Bind(Bindings{"in": anything.Output("out")}))
	})

	t.Run("streaming needs a streaming input", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		src := mustAdd(t, b, "src", sourceType)
		echo := mustAdd(t, b, "echo", echoType)
		sink := mustAdd(t, b, "sink", sinkType)

		var mismatch *TypeMismatchError
		assert.ErrorAs(t, echo.Bind(Bindings{"in": Streamed(src.Output("out"))}), &mismatch)
		assert.NoError(t, sink.Bind(Bindings{"text": Streamed(src.Output("out"))}))
	})

	t.Run("foreign handles", func(t *testing.T) {
		reg := testRegistry()
		b1, b2 := NewBuilder(reg), NewBuilder(reg)
		src := mustAdd(t, b1, "src", sourceType)
		echo := mustAdd(t, b2, "echo", echoType)

		var foreign *ForeignNodeError
		assert.ErrorAs(t, echo.Bind(Bindings{"in": src.Output("out")}), &foreign)
		assert.ErrorAs(t, b1.Bind(echo, Bindings{"in": Const("x")}), &foreign)
	})

	t.Run("all or nothing", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		src := mustAdd(t, b, "src", sourceType)
		pair := mustAdd(t, b, "pair", pairType)

		err := pair.Bind(Bindings{"a": src.Output("out"), "b": Const(1.5)})
		require.Error(t, err)

		_, err = b.Finalize()
		var unresolved *UnresolvedBindingError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, []string{"a", "b"}, unresolved.Slots)
	})

	t.Run("rebinding replaces", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		first := mustAdd(t, b, "first", sourceType)
		second := mustAdd(t, b, "second", sourceType)
		echo := mustAdd(t, b, "echo", echoType)
		require.NoError(t, echo.Bind(Bindings{"in": first.Output("out")}))
		require.NoError(t, echo.Bind(Bindings{"in": second.Output("out")}))

		g, err := b.Finalize()
		require.NoError(t, err)
		defer g.Release()
		assert.Equal(t, []string{"second"}, g.Dependencies("echo"))
	})
}

func TestFinalize(t *testing.T) {
	t.Run("producers precede consumers", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		// added consumers first so insertion order alone would be wrong
		pair := mustAdd(t, b, "pair", pairType)
		echo := mustAdd(t, b, "echo", echoType)
		src := mustAdd(t, b, "src", sourceType)
		require.NoError(t, echo.Bind(Bindings{"in": src.Output("out")}))
		require.NoError(t, pair.Bind(Bindings{"a": echo.Output("out"), "b": src.Output("out")}))

		g, err := b.Finalize()
		require.NoError(t, err)
		defer g.Release()
		assert.Equal(t, []string{"src", "echo", "pair"}, g.Order())
		assert.Equal(t, []string{"echo", "src"}, g.Dependencies("pair"))
		assert.Equal(t, []string{"pair", "echo"}, g.Dependents("src"))
	})

	t.Run("ties follow creation order", func(t *testing.T) {
		build := func() *Graph {
			b := NewBuilder(testRegistry())
			for _, id := range []string{"c", "a", "b"} {
				mustAdd(t, b, id, sourceType)
			}
			x := mustAdd(t, b, "x", echoType)
			c, _ := b.Node("c")
			require.NoError(t, x.Bind(Bindings{"in": c.Output("out")}))
			g, err := b.Finalize()
			require.NoError(t, err)
			return g
		}
		g1, g2 := build(), build()
		defer g1.Release()
		defer g2.Release()
		assert.Equal(t, []string{"c", "a", "b", "x"}, g1.Order())
		assert.Equal(t, g1.Order(), g2.Order())
	})

	t.Run("repeated finalize yields fresh graphs", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		src := mustAdd(t, b, "src", sourceType)
		echo := mustAdd(t, b, "echo", echoType)
		require.NoError(t, echo.Bind(Bindings{"in": src.Output("out")}))

		g1, err := b.Finalize()
		require.NoError(t, err)
		g2, err := b.Finalize()
		require.NoError(t, err)
		defer g2.Release()

		assert.Equal(t, g1.Order(), g2.Order())
		p1, err := g1.Output("src", "out")
		require.NoError(t, err)
		p2, err := g2.Output("src", "out")
		require.NoError(t, err)
		assert.NotSame(t, p1, p2)

		g1.Release()
		assert.NoError(t, p2.Publish(context.Background(), uuidx.New(), "still open", true))
	})

	t.Run("unbound inputs", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		mustAdd(t, b, "echo", echoType)
		mustAdd(t, b, "pair", pairType)

		_, err := b.Finalize()
		var unresolved *UnresolvedBindingError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "echo", unresolved.Node)
		assert.Equal(t, []string{"in"}, unresolved.Slots)
		assert.Contains(t, err.Error(), `node "pair" has unbound inputs: a, b`)
	})

	t.Run("optional inputs may stay unbound", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		pair := mustAdd(t, b, "pair", pairType)
		require.NoError(t, pair.Bind(Bindings{"a": Const("x"), "b": Const("y")}))
		g, err := b.Finalize()
		require.NoError(t, err)
		defer g.Release()

		n, _ := g.Node("pair")
		_, ok := n.Input("hint")
		assert.False(t, ok)
		assert.Len(t, n.Inputs(), 2)
	})

	t.Run("constants become run-independent values", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		echo := mustAdd(t, b, "echo", echoType)
		require.NoError(t, echo.Bind(Bindings{"in": Const("gpt-4o-mini")}))
		g, err := b.Finalize()
		require.NoError(t, err)
		defer g.Release()

		n, _ := g.Node("echo")
		in, ok := n.Input("in")
		require.True(t, ok)
		assert.True(t, in.Constant())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := in.Provider.SelectContext(ctx, uuidx.New())
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", v)
	})

	t.Run("unknown outputs", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		mustAdd(t, b, "src", sourceType)
		g, err := b.Finalize()
		require.NoError(t, err)
		defer g.Release()

		var unknownNode *UnknownNodeError
		_, err = g.Output("nope", "out")
		assert.ErrorAs(t, err, &unknownNode)
		var unknownSlot *UnknownSlotError
		_, err = g.Output("src", "nope")
		assert.ErrorAs(t, err, &unknownSlot)
	})
}

func TestCycles(t *testing.T) {
	t.Run("three node cycle", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		x := mustAdd(t, b, "x", echoType)
		c := mustAdd(t, b, "c", echoType)
		bb := mustAdd(t, b, "b", echoType)
		down := mustAdd(t, b, "down", echoType)
		// b -> x -> c -> b, down only consumes the cycle
		require.NoError(t, x.Bind(Bindings{"in": bb.Output("out")}))
		require.NoError(t, c.Bind(Bindings{"in": x.Output("out")}))
		require.NoError(t, bb.Bind(Bindings{"in": c.Output("out")}))
		require.NoError(t, down.Bind(Bindings{"in": c.Output("out")}))

		g, err := b.Finalize()
		assert.Nil(t, g)
		var cyclic *CyclicDependencyError
		require.ErrorAs(t, err, &cyclic)
		assert.Equal(t, []string{"b", "x", "c"}, cyclic.Members)
		assert.Equal(t, "dependency cycle: b -> x -> c -> b", err.Error())
	})

	t.Run("self binding", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		echo := mustAdd(t, b, "echo", echoType)
		require.NoError(t, echo.Bind(Bindings{"in": echo.Output("out")}))

		_, err := b.Finalize()
		var cyclic *CyclicDependencyError
		require.ErrorAs(t, err, &cyclic)
		assert.Equal(t, []string{"echo"}, cyclic.Members)
	})

	t.Run("independent cycles", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		p := mustAdd(t, b, "p", echoType)
		q := mustAdd(t, b, "q", echoType)
		m := mustAdd(t, b, "m", echoType)
		n := mustAdd(t, b, "n", echoType)
		require.NoError(t, p.Bind(Bindings{"in": q.Output("out")}))
		require.NoError(t, q.Bind(Bindings{"in": p.Output("out")}))
		require.NoError(t, m.Bind(Bindings{"in": n.Output("out")}))
		require.NoError(t, n.Bind(Bindings{"in": m.Output("out")}))

		_, err := b.Finalize()
		var cyclic *CyclicDependencyError
		require.ErrorAs(t, err, &cyclic)
		assert.Equal(t, []string{"m", "n"}, cyclic.Members)
		assert.Equal(t, [][]string{{"m", "n"}, {"p", "q"}}, cyclic.Cycles)
	})

	t.Run("unbound inputs are reported before cycles", func(t *testing.T) {
		b := NewBuilder(testRegistry())
		echo := mustAdd(t, b, "echo", echoType)
		require.NoError(t, echo.Bind(Bindings{"in": echo.Output("out")}))
		mustAdd(t, b, "lonely", echoType)

		_, err := b.Finalize()
		var unresolved *UnresolvedBindingError
		assert.ErrorAs(t, err, &unresolved)
		var cyclic *CyclicDependencyError
		assert.False(t, errors.As(err, &cyclic))
	})
}

// fanType takes up to four optional inputs, so random graphs can bind any
// subset of them.
var fanType = &nodetype.NodeType{
	ID: "@test/fan", Version: "1.0.0", Compute: noop,
	Inputs: nodetype.NewSchema(
		nodetype.NewSlot("in0", nodetype.String).AsOptional(),
		nodetype.NewSlot("in1", nodetype.String).AsOptional(),
		nodetype.NewSlot("in2", nodetype.String).AsOptional(),
		nodetype.NewSlot("in3", nodetype.String).AsOptional(),
	),
	Outputs: nodetype.NewSchema(nodetype.NewSlot("out", nodetype.String)),
}

// randomDAG adds n fan nodes and binds each to up to three distinct earlier
// nodes on in0..in2. It returns the handles and the producers of each node.
func randomDAG(t *testing.T, rng *rand.Rand, b *Builder, n int) ([]*NodeHandle, map[string][]string) {
	t.Helper()
	handles := make([]*NodeHandle, n)
	producers := make(map[string][]string, n)
	for i := range n {
		handles[i] = mustAdd(t, b, fmt.Sprintf("n%02d", i), fanType)
	}
	// bind in random order so creation order and binding order differ
	for _, j := range rng.Perm(n) {
		if j == 0 {
			continue
		}
		bindings := Bindings{}
		for k, src := range rng.Perm(j)[:rng.IntN(min(j, 3)+1)] {
			bindings[fmt.Sprintf("in%d", k)] = handles[src].Output("out")
			producers[handles[j].ID()] = append(producers[handles[j].ID()], handles[src].ID())
		}
		require.NoError(t, handles[j].Bind(bindings))
	}
	return handles, producers
}

func TestFinalizeRandomGraphs(t *testing.T) {
	reg := nodetype.NewRegistry()
	reg.MustRegister(fanType)

	t.Run("acyclic bindings always order", func(t *testing.T) {
		for seed := range uint64(100) {
			rng := rand.New(rand.NewPCG(seed, 1))
			b := NewBuilder(reg)
			handles, producers := randomDAG(t, rng, b, 2+rng.IntN(14))

			g, err := b.Finalize()
			require.NoError(t, err, "seed %d", seed)
			order := g.Order()
			require.Len(t, order, len(handles), "seed %d", seed)

			position := make(map[string]int, len(order))
			for i, id := range order {
				position[id] = i
			}
			for _, h := range handles {
				require.Contains(t, position, h.ID(), "seed %d", seed)
				for _, src := range producers[h.ID()] {
					assert.Less(t, position[src], position[h.ID()], "seed %d: %s feeds %s", seed, src, h.ID())
				}
				assert.ElementsMatch(t, producers[h.ID()], g.Dependencies(h.ID()), "seed %d: %s", seed, h.ID())
			}

			again, err := b.Finalize()
			require.NoError(t, err)
			assert.Equal(t, order, again.Order(), "seed %d", seed)
			g.Release()
			again.Release()
		}
	})

	t.Run("a back edge is always reported as a cycle", func(t *testing.T) {
		checked := 0
		for seed := range uint64(100) {
			rng := rand.New(rand.NewPCG(seed, 2))
			b := NewBuilder(reg)
			handles, producers := randomDAG(t, rng, b, 2+rng.IntN(14))

			consumers := make(map[string][]string)
			for dst, srcs := range producers {
				for _, src := range srcs {
					consumers[src] = append(consumers[src], dst)
				}
			}
			reachable := func(from string) []string {
				seen := map[string]bool{}
				stack := []string{from}
				var found []string
				for len(stack) > 0 {
					v := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					for _, w := range consumers[v] {
						if !seen[w] {
							seen[w] = true
							found = append(found, w)
							stack = append(stack, w)
						}
					}
				}
				slices.Sort(found)
				return found
			}

			var from, to *NodeHandle
			for _, i := range rng.Perm(len(handles)) {
				if down := reachable(handles[i].ID()); len(down) > 0 {
					to = handles[i]
					from, _ = b.Node(down[rng.IntN(len(down))])
					break
				}
			}
			if to == nil {
				continue
			}
			checked++
			// to now consumes a node downstream of itself
			require.NoError(t, to.Bind(Bindings{"in3": from.Output("out")}))
			producers[to.ID()] = append(producers[to.ID()], from.ID())

			g, err := b.Finalize()
			assert.Nil(t, g, "seed %d", seed)
			var cyclic *CyclicDependencyError
			require.ErrorAs(t, err, &cyclic, "seed %d", seed)
			require.Len(t, cyclic.Cycles, 1, "seed %d", seed)
			cycle := cyclic.Cycles[0]
			assert.Equal(t, cycle, cyclic.Members)
			assert.Contains(t, cycle, to.ID(), "seed %d", seed)
			assert.Contains(t, cycle, from.ID(), "seed %d", seed)
			for k, id := range cycle {
				next := cycle[(k+1)%len(cycle)]
				assert.Contains(t, producers[next], id, "seed %d: %s does not feed %s", seed, id, next)
			}
		}
		assert.Positive(t, checked)
	})
}

func TestDescribe(t *testing.T) {
	b := NewBuilder(testRegistry())
	src := mustAdd(t, b, "src", sourceType)
	pair := mustAdd(t, b, "pair", pairType)
	sink := mustAdd(t, b, "sink", sinkType)
	require.NoError(t, pair.Bind(Bindings{"a": src.Output("out"), "b": Const("fixed")}))
	require.NoError(t, sink.Bind(Bindings{"text": Streamed(pair.Output("out"))}))
	g, err := b.Finalize()
	require.NoError(t, err)
	defer g.Release()

	desc := g.Describe()
	assert.Equal(t, []string{"src", "pair", "sink"}, desc.Order)
	require.Len(t, desc.Nodes, 3)

	pd := desc.Nodes[1]
	assert.Equal(t, "pair", pd.ID)
	assert.Equal(t, "@test/pair", pd.Type)
	require.Len(t, pd.Inputs, 3)
	assert.Equal(t, "src.out", pd.Inputs[0].From)
	assert.Equal(t, "fixed", pd.Inputs[1].Constant)
	assert.False(t, pd.Inputs[2].Bound)
	assert.True(t, pd.Inputs[2].Optional)
	assert.Equal(t, "string", pd.Inputs[0].Schema.Type)

	sd := desc.Nodes[2]
	assert.True(t, sd.Inputs[0].Streamed)
	assert.Equal(t, "pair.out", sd.Inputs[0].From)
}
