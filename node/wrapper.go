package node

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Wrapper encapsulates one population through its generations: a state
// machine around a user Genome payload. Fields are exported so that
// store.Store can serialize wrappers directly; callers should otherwise
// treat a Wrapper as read-only outside of Process and the engine's
// write-back/merge steps.
type Wrapper[T Genome] struct {
	IDValue             ID    `json:"id"`
	Payload             *T    `json:"payload,omitempty"`
	StateValue          State `json:"state"`
	GenerationValue     uint64 `json:"generation"`
	MaxGenerationsValue uint64 `json:"max_generations"`
}

// New returns an empty wrapper in the Initialize state, with a fresh
// identity and generation 1.
func New[T Genome](maxGenerations uint64) Wrapper[T] {
	return Wrapper[T]{
		IDValue:             NewID(),
		StateValue:          Initialize,
		GenerationValue:     1,
		MaxGenerationsValue: maxGenerations,
	}
}

// From returns a wrapper pre-populated with payload, as produced by a
// merge of two finished children. Its state is Simulate and its
// generation resets to 1 against the given max, reusing id (normally the
// parent's existing identity, so write-back and future lookups are
// unaffected by the merge).
func From[T Genome](payload T, maxGenerations uint64, id ID) Wrapper[T] {
	return Wrapper[T]{
		IDValue:             id,
		Payload:             &payload,
		StateValue:          Simulate,
		GenerationValue:     1,
		MaxGenerationsValue: maxGenerations,
	}
}

func (w Wrapper[T]) ID() ID                     { return w.IDValue }
func (w Wrapper[T]) Generation() uint64         { return w.GenerationValue }
func (w Wrapper[T]) MaxGenerations() uint64     { return w.MaxGenerationsValue }
func (w Wrapper[T]) State() State               { return w.StateValue }

// AsRef returns a read-only view of the payload, or nil if none has been
// produced yet.
func (w Wrapper[T]) AsRef() *T { return w.Payload }

// Clone returns an independent copy of w, cloning the payload (if any)
// via cloneValue so a concurrent task never mutates the canonical tree's
// payload in place.
func (w Wrapper[T]) Clone() Wrapper[T] {
	clone := w
	if w.Payload != nil {
		v := cloneValue(*w.Payload)
		clone.Payload = &v
	}
	return clone
}

func (w Wrapper[T]) context() Context {
	return Context{ID: w.IDValue, Generation: w.GenerationValue, MaxGenerations: w.MaxGenerationsValue}
}

// Process advances the wrapper by exactly one state transition and
// returns the resulting state. It is the sole entry point that mutates a
// wrapper's state/payload/generation; the engine calls it on a clone of
// the canonical wrapper, never on the tree in place.
func (w *Wrapper[T]) Process(ctx context.Context, initialize Initializer[T]) (State, error) {
	nc := w.context()

	switch {
	case w.StateValue == Initialize:
		payload, err := initialize(nc)
		if err != nil {
			return w.StateValue, errors.Wrapf(err, "node %s: initialize", w.IDValue)
		}
		w.Payload = &payload
		w.StateValue = Simulate

	case w.StateValue == Simulate && w.Payload != nil:
		if err := (*w.Payload).Simulate(ctx, nc); err != nil {
			return w.StateValue, errors.Wrapf(err, "node %s: simulate", w.IDValue)
		}
		if w.GenerationValue >= w.MaxGenerationsValue {
			w.StateValue = Finish
		} else {
			w.StateValue = Mutate
		}

	case w.StateValue == Mutate && w.Payload != nil:
		if err := (*w.Payload).Mutate(nc); err != nil {
			return w.StateValue, errors.Wrapf(err, "node %s: mutate", w.IDValue)
		}
		w.GenerationValue++
		w.StateValue = Simulate

	case w.StateValue == Finish:
		// Idempotent no-op.

	default:
		return w.StateValue, errors.Wrapf(ErrLogicAbort, "node %s: state=%s payload-present=%t", w.IDValue, w.StateValue, w.Payload != nil)
	}

	return w.StateValue, nil
}

func (w Wrapper[T]) String() string {
	return fmt.Sprintf("node{id=%s state=%s generation=%d/%d}", w.IDValue, w.StateValue, w.GenerationValue, w.MaxGenerationsValue)
}
