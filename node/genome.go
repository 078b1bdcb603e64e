package node

import (
	"context"
	"reflect"
)

// Context is the information the engine hands to user callbacks. It is
// derived from a Wrapper's state at the time of the call and is never
// itself persisted.
type Context struct {
	ID             ID
	Generation     uint64
	MaxGenerations uint64
}

// Genome is the capability contract a user-supplied population type must
// satisfy. It is deliberately out of this package's scope to know
// anything about genetic algorithms, neural networks, or any other
// domain-specific fitness function: the engine only ever calls through
// this interface plus the free-standing Initializer and Merger functions
// supplied alongside it.
//
// Go has no associated/static generic functions, so the two callbacks
// that in the original design are not methods on an existing value
// ("initialize", which produces the first value, and "merge", which
// combines two independent values) are modeled as plain functions rather
// than methods.
type Genome interface {
	// Simulate evaluates the fitness of the current population. It is the
	// one callback the engine expects may block or otherwise take a long
	// time, so it is the only one that receives a context.Context for
	// cancellation.
	Simulate(ctx context.Context, nc Context) error

	// Mutate breeds and/or mutates the population in place.
	Mutate(nc Context) error
}

// Initializer produces the first population for a leaf node.
type Initializer[T Genome] func(nc Context) (T, error)

// Merger combines two finished sibling populations into their parent's
// population. It must be deterministic given its inputs.
type Merger[T Genome] func(left, right T, id ID) (T, error)

// Cloner is an optional capability: user types that hold pointers or
// slices and so are not safely copied by plain assignment can implement
// it so the engine clones payloads before handing them to a concurrent
// task.
type Cloner[T any] interface {
	Clone() T
}

// cloneValue returns an independent copy of v. Types implementing Cloner
// are cloned through it. Otherwise, since every Genome the engine can
// actually run a pointer-receiver Simulate/Mutate against is itself a
// pointer type, plain assignment would hand back the same pointer the
// canonical tree node still holds -- so a pointer kind without a Cloner
// is instead copied with a reflection-based shallow struct copy through
// a freshly allocated pointer. Genomes holding their own nested pointers
// or slices that need independent copies must implement Cloner.
func cloneValue[T Genome](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return v
	}

	clone := reflect.New(rv.Elem().Type())
	clone.Elem().Set(rv.Elem())
	return clone.Interface().(T)
}
