package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanTrees(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	for _, root := range []string{src, dst} {
		writeFile(t, filepath.Join(root, "a"), []byte("same"))
		writeFile(t, filepath.Join(root, "sub", "b"), []byte("also same"))
		require.NoError(t, os.Symlink("a", filepath.Join(root, "link")))
	}

	result, err := Verify(context.Background(), src, dst, VerifyOptions{Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.True(t, result.Clean())
}

func TestVerifyReportsDifferences(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "only-src"), []byte("x"))
	writeFile(t, filepath.Join(dst, "only-dst"), []byte("y"))
	// Same size, different bytes: only the digest can tell them apart.
	writeFile(t, filepath.Join(src, "drift"), []byte("aaaa"))
	writeFile(t, filepath.Join(dst, "drift"), []byte("bbbb"))

	result, err := Verify(context.Background(), src, dst, VerifyOptions{Log: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, []string{"only-src"}, result.Missing)
	assert.Equal(t, []string{"only-dst"}, result.Extra)
	assert.Equal(t, []string{"drift"}, result.Mismatched)
	assert.False(t, result.Clean())
}

func TestVerifySymlinkTargetMismatch(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	require.NoError(t, os.Symlink("target-one", filepath.Join(src, "link")))
	require.NoError(t, os.Symlink("target-two", filepath.Join(dst, "link")))

	result, err := Verify(context.Background(), src, dst, VerifyOptions{Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, []string{"link"}, result.Mismatched)
}

func TestVerifyTypeMismatch(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "entry"), []byte("file"))
	require.NoError(t, os.Mkdir(filepath.Join(dst, "entry"), 0o755))

	result, err := Verify(context.Background(), src, dst, VerifyOptions{Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.Contains(t, result.Mismatched, "entry")
}
