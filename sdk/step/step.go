// Copyright 2022, Pulumi Corporation.  All rights reserved.

// Generic Concurrency primitives.
package step

import (
	"context"
)

// Step represents a computation that may produce a value. This is equivalent to
// a `Future` in other languages.
type Step[T any] struct {
	// The returned data and error, once the computation has finished.
	data T
	err  error
	// When this channel is closed, the computation has finished, and data and
	// err may be read.
	done chan struct{}
}

// Create a new Step not predicated on any other step. `f` is the computation
// that the step represents, it is run on its own goroutine.
func New[T any](ctx context.Context, f func(context.Context) (T, error)) *Step[T] {
	s := &Step[T]{done: make(chan struct{})}
	go func() {
		defer close(s.done)
		s.data, s.err = f(ctx)
	}()
	return s
}

// Sequence runs `f` once `prev` has finished, whatever its outcome. A nil
// `prev` has already finished. Sequencing every step after the last one
// ensures that no two computations overlap.
func Sequence[T, U any](ctx context.Context, prev *Step[T], f func(context.Context) (U, error)) *Step[U] {
	return New(ctx, func(ctx context.Context) (U, error) {
		if prev != nil {
			<-prev.done
		}
		return f(ctx)
	})
}

// A non-blocking attempt to retrieve the result of the Step. The bool is true
// if the computation has finished without an error.
func (s *Step[T]) TryGetResult() (T, bool) {
	select {
	case <-s.done:
		return s.data, s.err == nil
	default:
		return Zero[T](), false
	}
}

// Block on retrieving the computed result. A nil Step returns Zero[T]() and no
// error.
func (s *Step[T]) GetResult() (T, error) {
	if s == nil {
		return Zero[T](), nil
	}
	<-s.done
	return s.data, s.err
}

// Done is closed when the computation has finished.
func (s *Step[T]) Done() <-chan struct{} {
	return s.done
}

// Zero returns the zero value for a type.
func Zero[T any]() (zero T) {
	return
}
