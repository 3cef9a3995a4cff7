package registry

import "github.com/alphadose/haxmap"

// Registry is a concurrent, string keyed store.
type Registry[T any] interface {
	Get(name string) (T, bool)
	// TryAdd stores value unless name is taken. It reports whether value was stored.
	TryAdd(name string, value T) bool
	GetOrAdd(name string, value func() T) (T, bool)
	Len() int
	ForEach(func(name string, value T) bool)
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) TryAdd(name string, value T) bool {
	_, loaded := r.values.GetOrSet(name, value)
	return !loaded
}

func (r *registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}

func (r *registry[T]) ForEach(fn func(string, T) bool) {
	r.values.ForEach(fn)
}
