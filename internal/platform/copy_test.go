package platform

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastCopySmallFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("abcd"), 0o644))

	result, err := FastCopy(CopyParams{SrcPath: src, DstPath: dst, Size: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.BytesCopied)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)
}

func TestFastCopyLargeFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	payload := bytes.Repeat([]byte{0x5A}, 4<<20)
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	result, err := FastCopy(CopyParams{SrcPath: src, DstPath: dst, Size: int64(len(payload))})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), result.BytesCopied)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFastCopyEmptyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, nil, 0o644))

	result, err := FastCopy(CopyParams{SrcPath: src, DstPath: dst, Size: 0})
	require.NoError(t, err)
	assert.Zero(t, result.BytesCopied)
	assert.FileExists(t, dst)
}

func TestFastCopyOverwritesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("previous longer content"), 0o644))

	_, err := FastCopy(CopyParams{SrcPath: src, DstPath: dst, Size: 3})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestFastCopyPreservesModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("stamped"), 0o644))

	stamp := time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, stamp, stamp))

	_, err := FastCopy(CopyParams{
		SrcPath:       src,
		DstPath:       dst,
		Size:          7,
		ModTime:       stamp,
		PreserveTimes: true,
	})
	require.NoError(t, err)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(info.ModTime()))
}

func TestFastCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := FastCopy(CopyParams{
		SrcPath: filepath.Join(dir, "absent"),
		DstPath: filepath.Join(dir, "dst"),
		Size:    10,
	})
	require.Error(t, err)
}

func TestCopyStream(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	payload := bytes.Repeat([]byte("stream"), 400_000) // crosses the 1 MiB buffer
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	n, err := CopyStream(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestCopyMethodString(t *testing.T) {
	assert.Equal(t, "reflink", Reflink.String())
	assert.Equal(t, "stream", Stream.String())
}
