package agentfile

import (
	"fmt"
	"os"
	"reflect"

	"github.com/casualjim/reagent/nodetype"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "name", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":        envFunc,
			"upper":      stdlib.UpperFunc,
			"lower":      stdlib.LowerFunc,
			"trimspace":  stdlib.TrimSpaceFunc,
			"format":     stdlib.FormatFunc,
			"join":       stdlib.JoinFunc,
			"concat":     stdlib.ConcatFunc,
			"jsonencode": stdlib.JSONEncodeFunc,
		},
	}
}

// toNative converts a value into plain Go values: strings, float64, bools,
// []any and map[string]any.
func toNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := toNative(elem)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := toNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			m[key.AsString()] = native
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
	}
}

// toSlotValue converts v into the Go type a slot expects, so that e.g. a
// number bound to an int slot arrives as an int. Values that can't be
// converted fall back to toNative and are left to the builder's type check.
func toSlotValue(v cty.Value, typ nodetype.ValueType) (any, error) {
	if !typ.IsAny() && v.IsKnown() && !v.IsNull() {
		ptr := reflect.New(typ.Type())
		if err := gocty.FromCtyValue(v, ptr.Interface()); err == nil {
			return ptr.Elem().Interface(), nil
		}
	}
	return toNative(v)
}
