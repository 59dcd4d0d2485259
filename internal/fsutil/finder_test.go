package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("# kb\n"), 0o644))
	}
}

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.hcl", "nested/b.hcl", "nested/c.txt")

	files, err := FindFilesByExtension(root, ".hcl")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "nested", "b.hcl"),
	}, files)
}

func TestFindFilesByExtension_PanicsOnEmptyExtension(t *testing.T) {
	assert.Panics(t, func() { _, _ = FindFilesByExtension(t.TempDir(), "") })
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "kb/x.hcl", "kb/deep/er/y.hcl", "kb/deep/z.txt")

	files, err := Glob(filepath.Join(root, "kb", "**", "*.hcl"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "kb", "x.hcl"),
		filepath.Join(root, "kb", "deep", "er", "y.hcl"),
	}, files)

	_, err = Glob("kb/[")
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	// --- Arrange ---
	root := t.TempDir()
	writeFiles(t, root, "b.hcl", "a/one.hcl", "a/two.md", "extra.kb")

	// --- Act ---
	files, err := Collect(".hcl",
		[]string{filepath.Join(root, "a"), filepath.Join(root, "extra.kb")},
		[]string{filepath.Join(root, "*.hcl"), filepath.Join(root, "a", "*.hcl")})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "one.hcl"),
		filepath.Join(root, "b.hcl"),
		filepath.Join(root, "extra.kb"),
	}, files)
}

func TestCollect_MissingPath(t *testing.T) {
	_, err := Collect(".hcl", []string{filepath.Join(t.TempDir(), "nope")}, nil)
	assert.Error(t, err)
}
