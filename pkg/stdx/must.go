package stdx

// Must0 panics when err is not nil. Meant for registration code where a
// failure is a programming error.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}
