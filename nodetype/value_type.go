package nodetype

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// ValueType is the semantic type of a slot. The zero value is Any.
type ValueType struct {
	typ reflect.Type
}

var (
	Any     = ValueType{}
	String  = Of[string]()
	Float   = Of[float64]()
	Integer = Of[int]()
	Boolean = Of[bool]()
)

// Of returns the value type for T.
func Of[T any]() ValueType {
	return TypeOf(reflect.TypeFor[T]())
}

// TypeOf returns the value type for a reflect.Type; nil means Any.
func TypeOf(t reflect.Type) ValueType {
	return ValueType{typ: t}
}

// TypeOfValue returns the value type of a concrete value; nil means Any.
func TypeOfValue(v any) ValueType {
	if v == nil {
		return Any
	}
	return ValueType{typ: reflect.TypeOf(v)}
}

func (v ValueType) IsAny() bool {
	return v.typ == nil || (v.typ.Kind() == reflect.Interface && v.typ.NumMethod() == 0)
}

func (v ValueType) Type() reflect.Type {
	return v.typ
}

func (v ValueType) String() string {
	if v.IsAny() {
		return "any"
	}
	return v.typ.String()
}

// AcceptsType reports whether a producer of src may feed a slot of type v.
// An untyped producer is accepted here and checked value by value at run time.
func (v ValueType) AcceptsType(src ValueType) bool {
	if v.IsAny() || src.IsAny() {
		return true
	}
	return src.typ.AssignableTo(v.typ)
}

// Accepts reports whether a concrete value fits v. nil fits every type.
func (v ValueType) Accepts(value any) bool {
	if v.IsAny() || value == nil {
		return true
	}
	return reflect.TypeOf(value).AssignableTo(v.typ)
}

// JSONSchema describes the type for presentation layers and graph dumps.
func (v ValueType) JSONSchema() *jsonschema.Schema {
	if v.IsAny() {
		return &jsonschema.Schema{}
	}
	schema := reflector.ReflectFromType(v.typ)
	schema.Version = ""
	return schema
}
