package engine

import (
	"github.com/pkg/errors"

	"github.com/nicolagi/gemla/node"
	"github.com/nicolagi/gemla/tree"
)

// findEligible returns the first node, in left-before-right depth-first
// order, that is not Finish, is not already in pending, and whose
// children (if any) are all Finish. A node with no children (a leaf) is
// trivially eligible once it is not pending.
func findEligible[T node.Genome](t *tree.Tree[node.Wrapper[T]], pending map[node.ID]bool) *tree.Tree[node.Wrapper[T]] {
	return tree.Find(t, func(n *tree.Tree[node.Wrapper[T]]) bool {
		if n.Val.State() == node.Finish {
			return false
		}
		if pending[n.Val.ID()] {
			return false
		}
		if n.Left != nil && n.Left.Val.State() != node.Finish {
			return false
		}
		if n.Right != nil && n.Right.Val.State() != node.Finish {
			return false
		}
		return true
	})
}

// writeBack finds, by ID, the tree node each processed wrapper
// originated from, and replaces its value with the processed result. It
// returns the subset of results that matched no node in t; the caller
// logs and drops these rather than treating them as fatal, matching
// join_threads in core/mod.rs, which warns and continues when a result
// can't be placed back into the tree.
func writeBack[T node.Genome](t *tree.Tree[node.Wrapper[T]], results []node.Wrapper[T]) []node.Wrapper[T] {
	byID := make(map[node.ID]node.Wrapper[T], len(results))
	for _, r := range results {
		byID[r.ID()] = r
	}
	tree.Walk(t, func(n *tree.Tree[node.Wrapper[T]]) bool {
		if r, ok := byID[n.Val.ID()]; ok {
			n.Val = r
			delete(byID, n.Val.ID())
		}
		return true
	})
	leftover := make([]node.Wrapper[T], 0, len(byID))
	for _, r := range byID {
		leftover = append(leftover, r)
	}
	return leftover
}

// mergeSweep walks t looking for nodes whose children have both finished
// but which have not themselves been folded into a merged Simulate-state
// wrapper yet. It is idempotent: a node already merged (state !=
// Initialize) is left alone, and the sweep stops descending once it finds
// nothing left to merge on a path.
//
// A node with only one child is tolerated (never produced by growth) by
// copying that child's finished payload straight into the parent; the
// Rust original's equivalent branch for the symmetric (left-only) case
// computes this copy but never assigns it back to the tree, which looks
// like an oversight rather than intended behavior, so both branches are
// implemented symmetrically here.
func mergeSweep[T node.Genome](t *tree.Tree[node.Wrapper[T]], merge node.Merger[T]) error {
	if t == nil || t.Val.State() != node.Initialize {
		return nil
	}

	switch {
	case t.Left != nil && t.Right != nil:
		if t.Left.Val.State() != node.Finish || t.Right.Val.State() != node.Finish {
			if err := mergeSweep(t.Left, merge); err != nil {
				return err
			}
			return mergeSweep(t.Right, merge)
		}
		left, right := t.Left.Val.AsRef(), t.Right.Val.AsRef()
		if left == nil || right == nil {
			return errors.Wrapf(node.ErrLogicAbort, "merge sweep: finished node %s has no payload", t.Val.ID())
		}
		merged, err := merge(*left, *right, t.Val.ID())
		if err != nil {
			return errors.Wrapf(err, "merge at node %s", t.Val.ID())
		}
		t.Val = node.From(merged, t.Val.MaxGenerations(), t.Val.ID())
		return nil

	case t.Left != nil:
		if t.Left.Val.State() != node.Finish {
			return mergeSweep(t.Left, merge)
		}
		if payload := t.Left.Val.AsRef(); payload != nil {
			t.Val = node.From(*payload, t.Val.MaxGenerations(), t.Val.ID())
		}
		return nil

	case t.Right != nil:
		if t.Right.Val.State() != node.Finish {
			return mergeSweep(t.Right, merge)
		}
		if payload := t.Right.Val.AsRef(); payload != nil {
			t.Val = node.From(*payload, t.Val.MaxGenerations(), t.Val.ID())
		}
		return nil

	default:
		return nil
	}
}
