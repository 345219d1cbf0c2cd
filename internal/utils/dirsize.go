package utils

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// DirStats holds the recursive file count and byte total of a path.
type DirStats struct {
	Files int64
	Bytes int64
}

// Stats counts files and bytes under path. A regular file counts as one file
// of its own size. Unreadable entries are skipped. The walk stops early when
// ctx is done and returns the partial totals with ctx.Err().
func Stats(ctx context.Context, path string) (DirStats, error) {
	var st DirStats
	info, err := os.Stat(path)
	if err != nil {
		return st, err
	}
	if !info.IsDir() {
		return DirStats{Files: 1, Bytes: info.Size()}, nil
	}

	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // skip inaccessible files
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			st.Files++
			st.Bytes += info.Size()
		}
		return nil
	})
	return st, err
}

// DirSizeWithin sums path like DirSize but gives up after budget. The second
// result is false when the budget ran out and the size is a partial sum.
func DirSizeWithin(ctx context.Context, path string, budget time.Duration) (int64, bool) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	st, err := Stats(ctx, path)
	return st.Bytes, err == nil || !isContextErr(err)
}

func isContextErr(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

// DefaultWorkers leaves one CPU for the rest of the system.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// DirSizesParallel computes sizes for multiple paths concurrently with at most
// workers walks in flight and a per-path budget (zero means unbounded).
// Returns a map of path -> size.
func DirSizesParallel(ctx context.Context, paths []string, workers int, budget time.Duration) map[string]int64 {
	if workers < 1 {
		workers = DefaultWorkers()
	}
	result := make(map[string]int64, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, workers)

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			size, _ := DirSizeWithin(ctx, path, budget)
			mu.Lock()
			result[path] = size
			mu.Unlock()
		}(p)
	}

	wg.Wait()
	return result
}
