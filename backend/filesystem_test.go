package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilesystem(t *testing.T) *Filesystem {
	t.Helper()

	f, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return f
}

func TestNewFilesystem(t *testing.T) {
	t.Run("MissingRoot", func(t *testing.T) {
		_, err := NewFilesystem(t.TempDir() + "/missing")
		assert.Error(t, err)
	})

	t.Run("RootIsFile", func(t *testing.T) {
		f := newTestFilesystem(t)
		require.NoError(t, f.Write("file.txt", "x"))

		_, err := NewFilesystem(f.Root() + "/file.txt")
		assert.ErrorContains(t, err, "not a directory")
	})
}

func TestFilesystem_WriteRead(t *testing.T) {
	f := newTestFilesystem(t)

	require.NoError(t, f.Write("notes/today.md", "remember the milk"))

	content, err := f.Read("/notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", content)

	// Relative and virtual-absolute forms address the same file.
	content, err = f.Read("notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", content)

	_, err = f.Read("/missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystem_EscapeRejected(t *testing.T) {
	f := newTestFilesystem(t)

	_, err := f.Read("../outside.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	err = f.Write("../../etc/passwd", "x")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestFilesystem_Ls(t *testing.T) {
	f := newTestFilesystem(t)
	require.NoError(t, f.Write("a.txt", "aaa"))
	require.NoError(t, f.Write("sub/b.txt", "b"))

	entries, err := f.Ls("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, int64(3), entries[0].Size)
	assert.Equal(t, "sub", entries[1].Name)
	assert.True(t, entries[1].IsDir)

	_, err = f.Ls("/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystem_Edit(t *testing.T) {
	f := newTestFilesystem(t)
	require.NoError(t, f.Write("code.go", "alpha beta alpha"))

	count, err := f.Edit("code.go", "beta", "gamma", false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = f.Edit("code.go", "alpha", "delta", true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	content, err := f.Read("code.go")
	require.NoError(t, err)
	assert.Equal(t, "delta gamma delta", content)

	_, err = f.Edit("code.go", "zeta", "x", false)
	assert.ErrorContains(t, err, "text not found")

	_, err = f.Edit("missing.go", "a", "b", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystem_Glob(t *testing.T) {
	f := newTestFilesystem(t)
	require.NoError(t, f.Write("docs/a.md", "a"))
	require.NoError(t, f.Write("docs/deep/b.md", "b"))
	require.NoError(t, f.Write("c.txt", "c"))

	paths, err := f.Glob("**/*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.md", "/docs/deep/b.md"}, paths)

	paths, err = f.Glob("*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/c.txt"}, paths)
}

func TestFilesystem_Grep(t *testing.T) {
	f := newTestFilesystem(t)
	require.NoError(t, f.Write("a.go", "package main\nfunc main() {}"))
	require.NoError(t, f.Write("b.txt", "func main is mentioned here"))
	require.NoError(t, f.Write("bin.dat", "func main\x00binary"))

	t.Run("IncludeFilter", func(t *testing.T) {
		matches, err := f.Grep("func main", "*.go", 0)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "/a.go", matches[0].Path)
		assert.Equal(t, 2, matches[0].Line)
		assert.Equal(t, "func main() {}", matches[0].Text)
	})

	t.Run("BinarySkipped", func(t *testing.T) {
		matches, err := f.Grep("func main", "", 0)
		require.NoError(t, err)
		for _, m := range matches {
			assert.NotEqual(t, "/bin.dat", m.Path)
		}
		assert.Len(t, matches, 2)
	})

	t.Run("Limit", func(t *testing.T) {
		matches, err := f.Grep("func main", "", 1)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		_, err := f.Grep("(unclosed", "", 0)
		assert.ErrorContains(t, err, "invalid pattern")
	})
}
