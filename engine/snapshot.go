package engine

import (
	"github.com/nicolagi/gemla/node"
	"github.com/nicolagi/gemla/tree"
)

// snapshot is the value an Engine's store durably holds: the whole
// population tree plus the configuration it was grown under. Keeping
// Config alongside the tree means a reloaded engine resumes with the
// generations-per-height it was created with, regardless of what a
// caller passes to a later Create call against the same path.
type snapshot[T node.Genome] struct {
	Tree   *tree.Tree[node.Wrapper[T]]
	Config Config
}
