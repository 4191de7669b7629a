// Package engine implements the parallel copy, delete, and chunked sync
// operations. Every engine invocation forms the same topology: one
// traversal producer feeding a channel, a fixed pool of workers draining
// it, and shared progress/error collectors passed in at spawn time.
package engine

import (
	"path/filepath"
	"time"
)

// FileJob is one file discovered by traversal, consumed by exactly one
// worker. RelPath is relative to the engine invocation's roots.
type FileJob struct {
	ModTime time.Time
	RelPath string
	Size    int64
	Symlink bool
}

// DeleteJob is one entry to remove. Directories are enqueued after all
// files, deepest first, so a worker never sees a directory before its
// descendants.
type DeleteJob struct {
	Path  string
	IsDir bool
}

// ChunkJob is one fixed-size byte range of a large file. Chunks of the
// same file touch disjoint ranges and may be processed in any order.
type ChunkJob struct {
	SrcPath string
	DstPath string
	Index   int
	Offset  int64
	Length  int
}

// splitChunks covers [0, size) with chunk jobs; the final chunk is
// truncated to the remainder.
func splitChunks(srcPath, dstPath string, size int64, chunkSize int) []ChunkJob {
	chunks := make([]ChunkJob, 0, int(size/int64(chunkSize))+1)
	var offset int64
	for idx := 0; offset < size; idx++ {
		length := int64(chunkSize)
		if offset+length > size {
			length = size - offset
		}
		chunks = append(chunks, ChunkJob{
			SrcPath: srcPath,
			DstPath: dstPath,
			Index:   idx,
			Offset:  offset,
			Length:  int(length),
		})
		offset += length
	}
	return chunks
}

// pathJoiner rebuilds absolute paths into a reusable buffer so workers
// don't allocate a fresh intermediate per file on the hot path.
type pathJoiner struct {
	buf []byte
}

func (j *pathJoiner) join(root, rel string) string {
	j.buf = j.buf[:0]
	j.buf = append(j.buf, root...)
	if len(j.buf) > 0 && j.buf[len(j.buf)-1] != filepath.Separator {
		j.buf = append(j.buf, filepath.Separator)
	}
	j.buf = append(j.buf, rel...)
	return string(j.buf)
}
