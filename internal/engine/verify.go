package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// VerifyResult reports how two local trees differ. Paths are relative to
// their roots and sorted.
type VerifyResult struct {
	// Missing lists paths present in the source but absent from the
	// destination.
	Missing []string

	// Extra lists paths present in the destination but absent from the
	// source.
	Extra []string

	// Mismatched lists paths present in both whose type, size, link
	// target, or content digest differ.
	Mismatched []string
}

// Clean reports whether the trees matched exactly.
func (r VerifyResult) Clean() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Mismatched) == 0
}

// VerifyOptions configures a Verify invocation.
type VerifyOptions struct {
	Log     zerolog.Logger
	Workers int
}

type verifyEntry struct {
	relPath string
	size    int64
	mode    fs.FileMode
}

// Verify compares two local trees entry by entry. Presence and type are
// checked from the directory listings; content equality is confirmed by
// digesting both copies, fanned out across workers.
func Verify(ctx context.Context, srcRoot, dstRoot string, opts VerifyOptions) (VerifyResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	srcEntries, err := indexTree(srcRoot)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("index %s: %w", srcRoot, err)
	}
	dstEntries, err := indexTree(dstRoot)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("index %s: %w", dstRoot, err)
	}

	var result VerifyResult
	var common []verifyEntry
	for rel, se := range srcEntries {
		if _, ok := dstEntries[rel]; !ok {
			result.Missing = append(result.Missing, rel)
			continue
		}
		common = append(common, se)
	}
	for rel := range dstEntries {
		if _, ok := srcEntries[rel]; !ok {
			result.Extra = append(result.Extra, rel)
		}
	}

	jobs := make(chan verifyEntry, workers*4)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if ctx.Err() != nil {
					continue
				}
				same, cmpErr := entriesEqual(e, dstEntries[e.relPath],
					filepath.Join(srcRoot, e.relPath), filepath.Join(dstRoot, e.relPath))
				if cmpErr != nil {
					opts.Log.Warn().Err(cmpErr).Str("path", e.relPath).Msg("compare failed")
					same = false
				}
				if !same {
					mu.Lock()
					result.Mismatched = append(result.Mismatched, e.relPath)
					mu.Unlock()
				}
			}
		}()
	}
	for _, e := range common {
		select {
		case jobs <- e:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return VerifyResult{}, err
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Extra)
	sort.Strings(result.Mismatched)
	return result, nil
}

func indexTree(root string) (map[string]verifyEntry, error) {
	entries := make(map[string]verifyEntry)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries[rel] = verifyEntry{relPath: rel, size: info.Size(), mode: info.Mode()}
		return nil
	})
	return entries, err
}

func entriesEqual(se, de verifyEntry, srcPath, dstPath string) (bool, error) {
	if se.mode.Type() != de.mode.Type() {
		return false, nil
	}
	switch {
	case se.mode.IsDir():
		return true, nil
	case se.mode.Type()&fs.ModeSymlink != 0:
		st, err := os.Readlink(srcPath)
		if err != nil {
			return false, err
		}
		dt, err := os.Readlink(dstPath)
		if err != nil {
			return false, err
		}
		return st == dt, nil
	default:
		if se.size != de.size {
			return false, nil
		}
		sd, err := fileDigest(srcPath)
		if err != nil {
			return false, err
		}
		dd, err := fileDigest(dstPath)
		if err != nil {
			return false, err
		}
		return sd == dd, nil
	}
}
