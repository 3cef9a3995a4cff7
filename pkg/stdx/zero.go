package stdx

// Zero returns the zero value of T.
func Zero[T any]() T {
	var zero T
	return zero
}

// As asserts v to T. A nil v converts to the zero value of T and reports
// success, so optional values travel through `any` without ceremony.
func As[T any](v any) (T, bool) {
	if v == nil {
		return Zero[T](), true
	}
	t, ok := v.(T)
	return t, ok
}
