// Package batch runs a per-item function over a slice in fixed-size chunks.
package batch

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the chunk size used when callers have no preference.
const DefaultConcurrency = 5

// ErrInvalidConcurrency is returned for a concurrency below one.
var ErrInvalidConcurrency = errors.New("batch: concurrency must be at least 1")

// Run applies fn to every item and returns the results in input order.
//
// Items are processed in consecutive chunks of size concurrency; a chunk's calls
// run in parallel and the next chunk starts only after all of them return, so no
// more than concurrency calls are ever in flight. fn must not fail: it reports
// per-item problems through R.
//
// If ctx is cancelled, Run stops before the next chunk and returns the results of
// the chunks that completed along with ctx.Err(). The interrupted chunk is
// discarded.
func Run[T, R any](ctx context.Context, items []T, concurrency int, fn func(context.Context, T) R) ([]R, error) {
	if concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}
	results := make([]R, 0, len(items))

	for start := 0; start < len(items); start += concurrency {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		end := min(start+concurrency, len(items))
		chunk := make([]R, end-start)

		var g errgroup.Group
		for i := start; i < end; i++ {
			item := items[i]
			slot := i - start
			g.Go(func() error {
				chunk[slot] = fn(ctx, item)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			slog.Debug("Batch interrupted, dropping chunk.", "chunkStart", start, "chunkSize", end-start)
			return results, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}
