package node

import "errors"

// ErrLogicAbort marks a state/payload combination that should be
// unreachable given the transitions Wrapper.Process performs (for
// example, State == Simulate with no payload). Seeing it means the
// wrapper was corrupted outside of Process, typically by a bug in
// write-back matching. The engine treats it as fatal.
var ErrLogicAbort = errors.New("node: unreachable state/payload combination")
