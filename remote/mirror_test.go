package remote

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

func TestNewMirrorDisabledWhenNoBucket(t *testing.T) {
	m := NewMirror("", "us-east-1", "default")
	require.Nil(t, m)

	// A nil Mirror tolerates every method call as a no-op.
	m.Push("some-key", "/some/path")
	m.Close()
}

// TestMirrorPushAndCloseNeverBlocks exercises the queue/coalesce/close
// path end to end. The resulting S3 call is expected to fail (no
// credentials are configured in the test environment), but that failure
// is logged, not surfaced, and must not prevent Close from returning.
func TestMirrorPushAndCloseNeverBlocks(t *testing.T) {
	defer leaktest.Check(t)()

	path := filepath.Join(t.TempDir(), "snapshot")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	m := NewMirror("gemla-test-bucket", "us-east-1", "default")
	require.NotNil(t, m)

	m.Push("snapshot-1", path)
	m.Push("snapshot-2", path) // coalesces with, or replaces, the first

	m.Close()
}
