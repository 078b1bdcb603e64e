package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	A int
	B string
}

func TestCreateAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot")

	s, err := Create(payload{A: 1, B: "x"}, path, FormatJSON)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, payload{A: 1, B: "x"}, *s.Read())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"B":"x"`)
}

func TestMutateAndReload(t *testing.T) {
	defer leaktest.Check(t)()

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot")

	s, err := Create(payload{A: 1}, path, FormatGob)
	require.NoError(t, err)

	err = s.Mutate(func(v *payload) { v.A = 2 })
	require.NoError(t, err) // no prior write pending, so no error to surface yet

	err = s.Mutate(func(v *payload) { v.B = "grown" })
	require.NoError(t, err)

	require.NoError(t, s.Close())

	reloaded, err := Load[payload](path, FormatGob)
	require.NoError(t, err)
	defer reloaded.Close()
	assert.Equal(t, payload{A: 2, B: "grown"}, *reloaded.Read())
}

func TestReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot")

	s, err := Create(payload{A: 1}, path, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, s.Replace(payload{A: 9, B: "replaced"}))
	require.NoError(t, s.Close())

	reloaded, err := Load[payload](path, FormatJSON)
	require.NoError(t, err)
	defer reloaded.Close()
	assert.Equal(t, payload{A: 9, B: "replaced"}, *reloaded.Read())
}

// TestLoadRecoversFromTempFile simulates a crash between the copy and the
// truncate/write steps of the persistence protocol: it writes a good
// value straight into the temp file a would-be write left behind, and a
// corrupt primary as a crash would leave it.
// Load must recover the pre-corruption value from the temp file.
func TestLoadRecoversFromTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot")
	tmp := tempPathFor(path)

	good, err := marshal(FormatJSON, &payload{A: 7, B: "good"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, good, 0644))
	// The primary is left corrupt, as if the crash happened after the
	// temp copy but before the rewrite completed successfully.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := Load[payload](path, FormatJSON)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, payload{A: 7, B: "good"}, *s.Read())
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "temp file should have been removed after recovery")

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, good, onDisk)
}

func TestLoadFailsWhenBothFilesAreBad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load[payload](path, FormatJSON)
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	defer leaktest.Check(t)()

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot")
	s, err := Create(payload{A: 1}, path, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
