package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	l := NewLocal()
	path := filepath.Join(t.TempDir(), "nested", "dirs", "file.bin")

	require.NoError(t, l.Put(path, []byte("payload")))

	data, err := l.Get(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// No temp files left behind in the target directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.bin", entries[0].Name())
}

func TestLocalStatNotFound(t *testing.T) {
	l := NewLocal()
	_, err := l.Stat(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalExists(t *testing.T) {
	l := NewLocal()
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	ok, err := l.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	ok, err = l.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	// A dangling symlink still exists as an entry.
	link := filepath.Join(dir, "dangling")
	require.NoError(t, os.Symlink("nowhere", link))
	ok, err = l.Exists(link)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalDelete(t *testing.T) {
	l := NewLocal()
	dir := t.TempDir()

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, l.Delete(file))
	assert.NoFileExists(t, file)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "inner"), 0o755))
	require.NoError(t, l.Delete(sub))
	assert.NoDirExists(t, sub)

	assert.ErrorIs(t, l.Delete(file), ErrNotFound)
}

func TestLocalHashStable(t *testing.T) {
	l := NewLocal()
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")
	require.NoError(t, os.WriteFile(a, []byte("identical"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("identical"), 0o644))

	ha, err := l.Hash(a)
	require.NoError(t, err)
	hb, err := l.Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64) // 32-byte digest, hex encoded

	require.NoError(t, os.WriteFile(b, []byte("different"), 0o644))
	hb, err = l.Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestLocalSymlinkReplacesExisting(t *testing.T) {
	l := NewLocal()
	dir := t.TempDir()
	link := filepath.Join(dir, "link")

	require.NoError(t, l.Symlink("first", link))
	require.NoError(t, l.Symlink("second", link))

	target, err := l.ReadLink(link)
	require.NoError(t, err)
	assert.Equal(t, "second", target)
	assert.True(t, l.IsSymlink(link))
}

func TestLocalCopyFrom(t *testing.T) {
	l := NewLocal()
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "deep", "dst")
	require.NoError(t, os.WriteFile(src, []byte("streamed"), 0o644))

	require.NoError(t, l.CopyFrom(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("streamed"), data)
}
