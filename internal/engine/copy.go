package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/calebhaye/ferry/internal/filter"
	"github.com/calebhaye/ferry/internal/platform"
	"github.com/calebhaye/ferry/internal/progress"
	"github.com/calebhaye/ferry/internal/storage"
)

// CopyOptions configures a Copy invocation. Zero values give sensible
// defaults: one worker per CPU, no filtering, no bandwidth cap, silent
// progress.
type CopyOptions struct {
	Log           zerolog.Logger
	Progress      progress.Reporter
	Filter        *filter.Chain
	Workers       int
	BWLimit       int64
	DryRun        bool
	PreserveTimes bool
}

// Copy replicates the tree at srcRoot on src into dstRoot on dst.
// Traversal runs concurrently with the transfer workers, so the progress
// total keeps growing while copies are already in flight. Individual file
// failures are collected and reported in aggregate; they never stop the
// run.
func Copy(ctx context.Context, src storage.Backend, srcRoot string, dst storage.Backend, dstRoot string, opts CopyOptions) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}

	// One limiter for the whole invocation: workers share the bucket, so
	// the aggregate transfer rate stays under the cap.
	limiter := NewBWLimiter(opts.BWLimit)

	rootEntry, err := src.Stat(srcRoot)
	if err != nil {
		return fmt.Errorf("stat source %s: %w", srcRoot, err)
	}

	// Copying a single file keeps the same destination semantics as cp:
	// dstRoot names the file itself. The filter chain applies to it the
	// same way it applies to every candidate in a tree.
	if !rootEntry.IsDir {
		if !opts.Filter.Match(srcRoot) {
			reporter.Finish(finishMsg("copy", opts.DryRun))
			return nil
		}
		reporter.AddTotal(rootEntry.Size)
		cw := newCopyWorker(src, dst, opts, limiter)
		job := FileJob{RelPath: ".", Size: rootEntry.Size, ModTime: rootEntry.ModTime, Symlink: rootEntry.IsSymlink()}
		if opts.DryRun {
			reporter.Add(job.Size)
			reporter.Finish("copy complete (dry run)")
			return nil
		}
		if err := cw.copyOne(ctx, job, srcRoot, dstRoot); err != nil {
			return fmt.Errorf("copy %s: %w", srcRoot, err)
		}
		reporter.Add(job.Size)
		reporter.Finish("copy complete")
		return nil
	}

	collector := &Collector{}
	jobs := make(chan FileJob, workers*4)

	// Producer: walk the source, filter, grow the total, enqueue.
	go func() {
		defer close(jobs)
		walkErr := storage.Walk(src, srcRoot, func(entry storage.FileEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.IsDir {
				return nil
			}
			if !opts.Filter.Match(entry.Path) {
				return nil
			}
			rel, relErr := filepath.Rel(srcRoot, entry.Path)
			if relErr != nil {
				collector.Record(relErr)
				return nil
			}
			reporter.AddTotal(entry.Size)
			select {
			case jobs <- FileJob{RelPath: rel, Size: entry.Size, ModTime: entry.ModTime, Symlink: entry.IsSymlink()}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if walkErr != nil && ctx.Err() == nil {
			collector.Record(fmt.Errorf("traverse %s: %w", srcRoot, walkErr))
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := newCopyWorker(src, dst, opts, limiter)
			log := opts.Log.With().Int("worker", id).Logger()
			for job := range jobs {
				if ctx.Err() != nil {
					reporter.Add(job.Size)
					continue
				}
				srcPath := w.srcJoin.join(srcRoot, job.RelPath)
				dstPath := w.dstJoin.join(dstRoot, job.RelPath)
				if opts.DryRun {
					log.Info().Str("src", srcPath).Str("dst", dstPath).Msg("would copy")
					reporter.Add(job.Size)
					continue
				}
				if err := w.copyOne(ctx, job, srcPath, dstPath); err != nil {
					log.Error().Err(err).Str("path", srcPath).Msg("copy failed")
					collector.Record(fmt.Errorf("copy %s: %w", srcPath, err))
				}
				reporter.Add(job.Size)
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	reporter.Finish(finishMsg("copy", opts.DryRun))
	return collector.Err("copy")
}

// copyWorker holds the per-worker scratch state: the created-directory
// memo and reusable path buffers. Workers never share it.
type copyWorker struct {
	src         storage.Backend
	dst         storage.Backend
	srcSide     storage.Source
	dstSide     storage.Sink
	limiter     *rate.Limiter
	createdDirs map[string]struct{}
	srcJoin     pathJoiner
	dstJoin     pathJoiner
	bothLocal   bool
	preserve    bool
}

func newCopyWorker(src, dst storage.Backend, opts CopyOptions, limiter *rate.Limiter) *copyWorker {
	w := &copyWorker{
		src:         src,
		dst:         dst,
		limiter:     limiter,
		createdDirs: make(map[string]struct{}),
		bothLocal:   src.Caps().LocalFS && dst.Caps().LocalFS,
		preserve:    opts.PreserveTimes,
	}
	w.srcSide, _ = src.(storage.Source)
	w.dstSide, _ = dst.(storage.Sink)
	return w
}

func (w *copyWorker) ensureDir(dir string) error {
	if _, ok := w.createdDirs[dir]; ok {
		return nil
	}
	if w.dstSide != nil {
		if err := w.dstSide.MkdirAll(dir); err != nil {
			return err
		}
	}
	w.createdDirs[dir] = struct{}{}
	return nil
}

func (w *copyWorker) copyOne(ctx context.Context, job FileJob, srcPath, dstPath string) error {
	if err := w.ensureDir(filepath.Dir(dstPath)); err != nil {
		return err
	}

	if job.Symlink {
		return w.copySymlink(srcPath, dstPath)
	}

	if w.bothLocal {
		if w.limiter != nil {
			if _, err := copyRateLimited(ctx, srcPath, dstPath, w.limiter); err != nil {
				return err
			}
			if w.preserve && !job.ModTime.IsZero() {
				// Timestamp restoration is best effort.
				_ = os.Chtimes(dstPath, job.ModTime, job.ModTime)
			}
			return nil
		}
		_, err := platform.FastCopy(platform.CopyParams{
			SrcPath:       srcPath,
			DstPath:       dstPath,
			Size:          job.Size,
			ModTime:       job.ModTime,
			PreserveTimes: w.preserve,
		})
		return err
	}

	// Cross-backend: stream through the sink when the source is local,
	// otherwise fall back to a whole-file get/put.
	if w.dstSide != nil && w.src.Caps().LocalFS {
		return w.dstSide.CopyFrom(srcPath, dstPath)
	}
	data, err := w.src.Get(srcPath)
	if err != nil {
		return err
	}
	return w.dst.Put(dstPath, data)
}

// copySymlink recreates the link with its stored target verbatim. A
// dangling target is copied as-is, not resolved and not an error.
func (w *copyWorker) copySymlink(srcPath, dstPath string) error {
	if w.srcSide == nil || w.dstSide == nil {
		return fmt.Errorf("backend cannot transfer symlink %s", srcPath)
	}
	target, err := w.srcSide.ReadLink(srcPath)
	if err != nil {
		return err
	}
	return w.dstSide.Symlink(target, dstPath)
}

func finishMsg(op string, dryRun bool) string {
	if dryRun {
		return op + " complete (dry run)"
	}
	return op + " complete"
}
