package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/calebhaye/ferry/internal/platform"
	"github.com/calebhaye/ferry/internal/progress"
	"github.com/calebhaye/ferry/internal/storage"
)

const (
	// DefaultChunkSize is the byte-range granularity for chunked compare.
	DefaultChunkSize = 1 << 20

	// LargeFileThreshold is the size at which sync switches from
	// whole-file copy to chunked compare-and-patch.
	LargeFileThreshold = 32 << 20
)

// SyncOptions configures a Sync invocation.
type SyncOptions struct {
	Log       zerolog.Logger
	Progress  progress.Reporter
	Workers   int
	ChunkSize int
	DryRun    bool
}

// Sync makes dstRoot match srcRoot, transferring only what differs.
// Per file, in order: skip when size and mtime match exactly; copy whole
// when the destination is absent or the file is small; otherwise compare
// and rewrite only divergent chunks. Extra destination entries are left
// alone.
func Sync(ctx context.Context, src storage.Backend, srcRoot string, dst storage.Backend, dstRoot string, opts SyncOptions) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}
	collector := &Collector{}
	bothLocal := src.Caps().LocalFS && dst.Caps().LocalFS
	dstSink, _ := dst.(storage.Sink)

	// Discovery: mirror the directory skeleton, gather files, build the
	// progress total before any bytes move.
	var files []FileJob
	err := storage.Walk(src, srcRoot, func(entry storage.FileEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(srcRoot, entry.Path)
		if relErr != nil {
			collector.Record(relErr)
			return nil
		}
		if entry.IsDir {
			if opts.DryRun || dstSink == nil {
				return nil
			}
			if err := dstSink.MkdirAll(filepath.Join(dstRoot, rel)); err != nil {
				collector.Record(fmt.Errorf("mkdir %s: %w", rel, err))
			}
			return nil
		}
		if entry.IsSymlink() {
			return nil // sync moves file content only
		}
		files = append(files, FileJob{RelPath: rel, Size: entry.Size, ModTime: entry.ModTime})
		reporter.AddTotal(entry.Size)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("traverse %s: %w", srcRoot, err)
	}

	jobs := make(chan ChunkJob, workers*4)

	// Producer: per-file triage, emitting chunk jobs only for large files
	// that already exist on both local filesystems.
	go func() {
		defer close(jobs)
		var srcJoin, dstJoin pathJoiner
		for _, f := range files {
			if ctx.Err() != nil {
				return
			}
			srcPath := srcJoin.join(srcRoot, f.RelPath)
			dstPath := dstJoin.join(dstRoot, f.RelPath)

			dstEntry, statErr := dst.Stat(dstPath)
			if statErr == nil && !dstEntry.IsDir &&
				dstEntry.Size == f.Size && dstEntry.ModTime.Equal(f.ModTime) {
				opts.Log.Debug().Str("path", f.RelPath).Msg("unchanged, skipping")
				reporter.Add(f.Size)
				continue
			}

			if statErr != nil || f.Size < LargeFileThreshold || !bothLocal {
				if opts.DryRun {
					opts.Log.Info().Str("path", f.RelPath).Msg("would copy")
					reporter.Add(f.Size)
					continue
				}
				if err := syncWholeFile(src, dst, srcPath, dstPath, f, bothLocal); err != nil {
					collector.Record(fmt.Errorf("copy %s: %w", srcPath, err))
				}
				reporter.Add(f.Size)
				continue
			}

			if opts.DryRun {
				opts.Log.Info().Str("path", f.RelPath).Msg("would compare chunks")
				reporter.Add(f.Size)
				continue
			}
			// Chunk jobs only cover [0, srcSize): a destination that
			// outgrew the source must lose its tail first or the trees
			// never converge.
			if dstEntry.Size > f.Size {
				if err := os.Truncate(dstPath, f.Size); err != nil {
					collector.Record(fmt.Errorf("truncate %s: %w", dstPath, err))
					reporter.Add(f.Size)
					continue
				}
			}
			for _, chunk := range splitChunks(srcPath, dstPath, f.Size, chunkSize) {
				select {
				case jobs <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Per-worker scratch buffers, reused across every chunk.
			srcBuf := make([]byte, chunkSize)
			dstBuf := make([]byte, chunkSize)
			for job := range jobs {
				if ctx.Err() == nil {
					if err := syncChunk(job, srcBuf, dstBuf); err != nil {
						collector.Record(fmt.Errorf("chunk %d of %s: %w", job.Index, job.SrcPath, err))
					}
				}
				reporter.Add(int64(job.Length))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	reporter.Finish(finishMsg("sync", opts.DryRun))
	return collector.Err("sync")
}

// syncWholeFile transfers one file end to end, preserving the source
// mtime on the local path so the next run's metadata check can skip it.
func syncWholeFile(src, dst storage.Backend, srcPath, dstPath string, f FileJob, bothLocal bool) error {
	if bothLocal {
		_, err := platform.FastCopy(platform.CopyParams{
			SrcPath:       srcPath,
			DstPath:       dstPath,
			Size:          f.Size,
			ModTime:       f.ModTime,
			PreserveTimes: true,
		})
		return err
	}
	if sink, ok := dst.(storage.Sink); ok && src.Caps().LocalFS {
		return sink.CopyFrom(srcPath, dstPath)
	}
	data, err := src.Get(srcPath)
	if err != nil {
		return err
	}
	return dst.Put(dstPath, data)
}

// syncChunk reads one source range, compares its checksum against the
// same destination range, and rewrites the range in place on mismatch.
// If the destination cannot be opened for update the chunk is written
// unconditionally, materializing the file range by range.
func syncChunk(job ChunkJob, srcBuf, dstBuf []byte) error {
	srcF, err := os.Open(job.SrcPath)
	if err != nil {
		return err
	}
	defer srcF.Close()

	n, err := srcF.ReadAt(srcBuf[:job.Length], job.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n == 0 {
		return nil // file shrank under us; nothing to compare
	}
	want := chunkSum(srcBuf[:n])

	dstF, err := os.OpenFile(job.DstPath, os.O_RDWR, 0o644)
	if err != nil {
		return writeChunk(job.DstPath, job.Offset, srcBuf[:n])
	}
	defer dstF.Close()

	m, err := dstF.ReadAt(dstBuf[:n], job.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if m == n && chunkSum(dstBuf[:m]) == want {
		return nil
	}
	_, err = dstF.WriteAt(srcBuf[:n], job.Offset)
	return err
}

func writeChunk(path string, offset int64, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.WriteAt(data, offset)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
