package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebhaye/ferry/internal/progress"
	"github.com/calebhaye/ferry/internal/storage"
)

// recordingBackend wraps Local and remembers the order Delete was called.
type recordingBackend struct {
	*storage.Local

	mu    sync.Mutex
	order []string
}

func (r *recordingBackend) Delete(path string) error {
	r.mu.Lock()
	r.order = append(r.order, path)
	r.mu.Unlock()
	return r.Local.Delete(path)
}

func TestDeleteTree(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "victim")
	writeFile(t, filepath.Join(target, "a"), []byte("a"))
	writeFile(t, filepath.Join(target, "deep", "deeper", "b"), []byte("b"))

	var counter progress.Counter
	err := Delete(context.Background(), storage.NewLocal(), []string{target}, DeleteOptions{
		Log:      zerolog.Nop(),
		Progress: &counter,
		Workers:  4,
	})
	require.NoError(t, err)

	assert.NoDirExists(t, target)
	// 2 files + 3 directories, counted up front.
	assert.Equal(t, int64(5), counter.Total())
	assert.Equal(t, int64(5), counter.Done())
}

func TestDeleteFilesBeforeDirsDeepestFirst(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "victim")
	writeFile(t, filepath.Join(target, "f1"), []byte("1"))
	writeFile(t, filepath.Join(target, "sub", "f2"), []byte("2"))
	writeFile(t, filepath.Join(target, "sub", "nested", "f3"), []byte("3"))

	rec := &recordingBackend{Local: storage.NewLocal()}
	err := Delete(context.Background(), rec, []string{target}, DeleteOptions{
		Log:     zerolog.Nop(),
		Workers: 1, // single worker makes the drain order observable
	})
	require.NoError(t, err)

	var firstDir = -1
	var lastFile = -1
	for i, p := range rec.order {
		base := filepath.Base(p)
		if strings.HasPrefix(base, "f") {
			lastFile = i
		} else if firstDir == -1 {
			firstDir = i
		}
	}
	require.GreaterOrEqual(t, firstDir, 0)
	assert.Less(t, lastFile, firstDir, "all files must drain before any directory")

	dirs := rec.order[firstDir:]
	for i := 1; i < len(dirs); i++ {
		assert.GreaterOrEqual(t, pathDepth(dirs[i-1]), pathDepth(dirs[i]),
			"directories must drain deepest first")
	}
}

func TestDeleteDryRun(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "victim")
	writeFile(t, filepath.Join(target, "f"), []byte("f"))

	var counter progress.Counter
	err := Delete(context.Background(), storage.NewLocal(), []string{target}, DeleteOptions{
		Log:      zerolog.Nop(),
		Progress: &counter,
		DryRun:   true,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(target, "f"))
	assert.Equal(t, counter.Total(), counter.Done())
}

func TestDeleteMissingRootCollected(t *testing.T) {
	err := Delete(context.Background(), storage.NewLocal(), []string{filepath.Join(t.TempDir(), "absent")}, DeleteOptions{
		Log: zerolog.Nop(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPathDepth(t *testing.T) {
	assert.Equal(t, 1, pathDepth("/a"))
	assert.Equal(t, 3, pathDepth("/a/b/c"))
	assert.Greater(t, pathDepth("/a/b/c/d"), pathDepth("/a/b"))
}
