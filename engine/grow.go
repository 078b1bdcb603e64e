package engine

import (
	"github.com/nicolagi/gemla/node"
	"github.com/nicolagi/gemla/tree"
)

// grow wraps current in steps new root levels, building from the bottom
// level (i=1, immediately above current) up to the outermost new root
// (i=steps). At each level i, the new node's right child -- if the
// corresponding left-branch-height is greater than zero -- is a fresh
// leaf scaled to leftHeight*GenerationsPerHeight generations; the left
// child is whatever the previous iteration produced (current, on the
// first iteration).
//
// This realizes core/mod.rs's increase_height from the original source,
// which resolves the specification's Open Question about which of two
// inconsistent height formulas to use: the generations-scaled one.
func grow[T node.Genome](current *tree.Tree[node.Wrapper[T]], cfg Config, steps uint64) *tree.Tree[node.Wrapper[T]] {
	h0 := uint64(current.Height())
	for i := uint64(1); i <= steps; i++ {
		leftHeight := h0 + i - 1
		var right *tree.Tree[node.Wrapper[T]]
		if leftHeight > 0 {
			right = tree.Leaf(node.New[T](leftHeight * cfg.GenerationsPerHeight))
		}
		current = tree.New(node.New[T](cfg.GenerationsPerHeight), current, right)
	}
	return current
}
