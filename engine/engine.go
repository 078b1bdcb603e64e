// Package engine implements the scheduler: it owns a durable tree of
// node.Wrapper populations and drives them, generation by generation,
// through growth, concurrent simulation, and upward merge, exactly the
// way core/mod.rs's Gemla drives a SimulationTree in the original
// source, adapted to the store/tree/node packages in this module.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nicolagi/gemla/node"
	"github.com/nicolagi/gemla/remote"
	"github.com/nicolagi/gemla/store"
	"github.com/nicolagi/gemla/tree"
)

// Engine drives a population tree of type T to completion. It is safe
// for a single goroutine to call Simulate repeatedly but is not itself
// safe for concurrent use: the specification's concurrency model is
// concurrency *within* one Simulate call, not across calls.
type Engine[T node.Genome] struct {
	store      *store.Store[snapshot[T]]
	initialize node.Initializer[T]
	merge      node.Merger[T]

	// mirror, if set via SetMirror, receives a best-effort copy of the
	// snapshot file after every successful persistence point. Its
	// absence or failure never affects Simulate's outcome.
	mirror *remote.Mirror
}

// SetMirror attaches a remote.Mirror the engine pushes its snapshot file
// to after every successful persistence point. Passing nil disables
// mirroring (the default).
func (e *Engine[T]) SetMirror(m *remote.Mirror) {
	e.mirror = m
}

func (e *Engine[T]) pushMirror() {
	e.mirror.Push(filepath.Base(e.store.Path()), e.store.Path())
}

// Create opens or creates the durable snapshot at path. If cfg.Overwrite
// is true, or no snapshot exists yet, a fresh empty tree is stored under
// cfg; otherwise the persisted snapshot (and its own Config, not cfg) is
// loaded.
func Create[T node.Genome](path string, cfg Config, format store.Format, initialize node.Initializer[T], merge node.Merger[T]) (*Engine[T], error) {
	var (
		s   *store.Store[snapshot[T]]
		err error
	)
	if cfg.Overwrite {
		s, err = store.Create(snapshot[T]{Config: cfg}, path, format)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		s, err = store.Create(snapshot[T]{Config: cfg}, path, format)
	} else {
		s, err = store.Load[snapshot[T]](path, format)
	}
	if err != nil {
		return nil, errors.Wrap(err, "engine: create")
	}
	return &Engine[T]{store: s, initialize: initialize, merge: merge}, nil
}

// Tree returns the current in-memory population tree; its most recent
// persistence may still be in flight until the next write or Close. The
// returned pointer aliases the engine's live state and must be treated
// as read-only by callers; it is only ever mutated by a Simulate call in
// progress.
func (e *Engine[T]) Tree() *tree.Tree[node.Wrapper[T]] {
	return e.store.Read().Tree
}

// Close stops the engine's persistence worker, flushing any write still
// in flight. An engine must not be used after Close.
func (e *Engine[T]) Close() error {
	e.mirror.Close()
	return e.store.Close()
}

// Simulate grows the tree by steps new levels if it is empty or the
// current tree has already finished, then drives every node through
// node.Wrapper.Process until the root reaches node.Finish, persisting
// after growth and after every dispatch wavefront's write-back and merge
// sweep.
//
// An error wrapping node.ErrLogicAbort is not returned: Simulate panics
// with it, since it means a corrupt state machine.
//
// Eligible nodes within a wavefront are processed concurrently, bounded
// by cfg.MaxConcurrentTasks (0 meaning unbounded). If any task's Process
// call returns an error, Simulate aborts and returns that error without
// writing the wavefront's results back to the tree or persisting: the
// durable snapshot remains exactly what the last successful call left
// it.
func (e *Engine[T]) Simulate(ctx context.Context, steps uint64) error {
	current := e.store.Read()
	if current.Tree == nil || current.Tree.Val.State() == node.Finish {
		if err := e.grow(steps); err != nil {
			return errors.Wrap(err, "engine: grow")
		}
		e.pushMirror()
	}

	for {
		root := e.Tree()
		if root != nil && root.Val.State() == node.Finish {
			return nil
		}

		results, err := e.dispatchWavefront(ctx)
		if err != nil {
			if errors.Is(err, node.ErrLogicAbort) {
				panic(errors.Wrap(err, "engine: simulate"))
			}
			return errors.Wrap(err, "engine: simulate")
		}

		if err := e.applyWavefront(results); err != nil {
			if errors.Is(err, node.ErrLogicAbort) {
				panic(errors.Wrap(err, "engine: simulate"))
			}
			return errors.Wrap(err, "engine: simulate")
		}
		e.pushMirror()
	}
}

func (e *Engine[T]) grow(steps uint64) error {
	opErr, prevErr := store.MutateValue(e.store, func(s *snapshot[T]) error {
		s.Tree = grow(s.Tree, s.Config, steps)
		return nil
	})
	if opErr != nil {
		return opErr
	}
	return prevErr
}

// dispatchWavefront spawns every currently-eligible, not-yet-pending
// node as a goroutine in an errgroup.Group bounded by a semaphore sized
// to cfg.MaxConcurrentTasks, rescanning the (unmodified, since write-back
// has not happened yet) tree after each spawn, and awaits the whole
// group -- the same errgroup-plus-semaphore pattern internal/tree's
// tree_walking.go uses to load a node's children concurrently.
func (e *Engine[T]) dispatchWavefront(ctx context.Context) ([]node.Wrapper[T], error) {
	root := e.Tree()
	cfg := e.store.Read().Config

	var sem chan struct{}
	if cfg.MaxConcurrentTasks > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrentTasks)
	}

	g, gctx := errgroup.WithContext(ctx)
	pending := map[node.ID]bool{}
	var mu sync.Mutex
	var results []node.Wrapper[T]

	for {
		eligible := findEligible(root, pending)
		if eligible == nil {
			break
		}
		pending[eligible.Val.ID()] = true
		wrapper := eligible.Val.Clone()

		g.Go(func() error {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			if _, err := wrapper.Process(gctx, e.initialize); err != nil {
				return err
			}
			mu.Lock()
			results = append(results, wrapper)
			mu.Unlock()
			return nil
		})
	}

	if len(pending) == 0 {
		return nil, errors.New("engine: no eligible node and root not finished (stuck tree)")
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine[T]) applyWavefront(results []node.Wrapper[T]) error {
	opErr, prevErr := store.MutateValue(e.store, func(s *snapshot[T]) error {
		leftover := writeBack(s.Tree, results)
		for _, r := range leftover {
			log.WithField("id", r.ID()).Warn("engine: write-back result matched no tree node, dropping")
		}
		return mergeSweep(s.Tree, e.merge)
	})
	if opErr != nil {
		return opErr
	}
	return prevErr
}
