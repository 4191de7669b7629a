package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/calebhaye/ferry/internal/filter"
	"github.com/calebhaye/ferry/internal/progress"
	"github.com/calebhaye/ferry/internal/storage"
)

// DeleteOptions configures a Delete invocation.
type DeleteOptions struct {
	Log      zerolog.Logger
	Progress progress.Reporter
	Filter   *filter.Chain
	Workers  int
	DryRun   bool
}

// Delete removes every entry under the given roots. Unlike copy, the
// total is counted up front with a dedicated pass, so the progress bar
// starts exact. Files are enqueued as soon as traversal finds them;
// directories are held back and enqueued deepest-first after each root's
// traversal completes, so no directory is removed before its contents.
func Delete(ctx context.Context, b storage.Backend, roots []string, opts DeleteOptions) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}
	collector := &Collector{}

	// Counting pass.
	var total int64
	for _, root := range roots {
		err := storage.Walk(b, root, func(entry storage.FileEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.Filter.Match(entry.Path) {
				total++
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			collector.Record(fmt.Errorf("count %s: %w", root, err))
		}
	}
	reporter.AddTotal(total)

	jobs := make(chan DeleteJob, workers*4)

	go func() {
		defer close(jobs)
		for _, root := range roots {
			var dirs []DeleteJob
			err := storage.Walk(b, root, func(entry storage.FileEntry) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !opts.Filter.Match(entry.Path) {
					return nil
				}
				if entry.IsDir {
					dirs = append(dirs, DeleteJob{Path: entry.Path, IsDir: true})
					return nil
				}
				select {
				case jobs <- DeleteJob{Path: entry.Path}:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				collector.Record(fmt.Errorf("traverse %s: %w", root, err))
				continue
			}

			// Deepest first: a directory always drains after everything
			// nested beneath it.
			sort.Slice(dirs, func(i, j int) bool {
				return pathDepth(dirs[i].Path) > pathDepth(dirs[j].Path)
			})
			for _, d := range dirs {
				select {
				case jobs <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log := opts.Log.With().Int("worker", id).Logger()
			for job := range jobs {
				if ctx.Err() != nil {
					reporter.Add(1)
					continue
				}
				if opts.DryRun {
					log.Info().Str("path", job.Path).Bool("dir", job.IsDir).Msg("would delete")
					reporter.Add(1)
					continue
				}
				if err := b.Delete(job.Path); err != nil {
					log.Error().Err(err).Str("path", job.Path).Msg("delete failed")
					collector.Record(fmt.Errorf("delete %s: %w", job.Path, err))
				}
				// Progress counts attempts, not successes, so the bar
				// always reaches the pre-counted total.
				reporter.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	reporter.Finish(finishMsg("delete", opts.DryRun))
	return collector.Err("delete")
}

func pathDepth(path string) int {
	return strings.Count(strings.Trim(path, "/"), "/") + 1
}
