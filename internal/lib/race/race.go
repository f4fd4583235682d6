// Package race runs two operations and keeps whichever finishes first.
//
// The losing operation is not cancelled. It keeps running until it returns on
// its own and its result is dropped, so any I/O it started may still complete
// unobserved.
package race

type result[T any] struct {
	val T
	err error
}

// First starts a and b concurrently and returns the result of the one that
// completes first.
func First[T any](a, b func() (T, error)) (T, error) {
	// Buffered so the loser can always deliver and exit.
	ch := make(chan result[T], 2)

	run := func(op func() (T, error)) {
		v, err := op()
		ch <- result[T]{val: v, err: err}
	}

	go run(a)
	go run(b)

	r := <-ch
	return r.val, r.err
}
