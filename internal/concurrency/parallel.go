// Package concurrency provides a bounded worker pool for blocking per-item work.
package concurrency

import (
	"context"
	"sync"
)

const defaultWorkers = 5

// ParallelOptions configures parallel processing.
type ParallelOptions struct {
	// MaxWorkers is the maximum number of items processed at the same time.
	MaxWorkers int
}

// ProcessParallel runs itemFunc for every item with at most MaxWorkers goroutines and
// returns the results in input order. Items not started before ctx is done get the
// zero result and ctx.Err() as their error. Errors are indexed like the items.
func ProcessParallel[T any, R any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) (R, error),
) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				results[idx], errs[idx] = itemFunc(ctx, idx, items[idx])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, errs
}

// ForEach runs itemFunc for every item with bounded concurrency, collecting only errors.
func ForEach[T any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) error,
) []error {
	_, errs := ProcessParallel(ctx, items, opts, func(ctx context.Context, index int, item T) (struct{}, error) {
		return struct{}{}, itemFunc(ctx, index, item)
	})
	return errs
}

// FirstError returns the first non-nil error of errs.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
