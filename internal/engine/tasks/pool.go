// Package tasks runs CPU-bound engine work (mesh optimization, LOD
// generation, imports) on a bounded set of goroutines.
package tasks

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool limits how many tasks run at once. The zero value is not usable;
// a nil *Pool runs tasks sequentially on the calling goroutine.
type Pool struct {
	workers int
}

// NewPool returns a pool running at most workers tasks concurrently.
// workers < 1 means runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// Run calls fn for every i in [0, n) and waits. The first error cancels the
// context passed to the remaining calls and is returned.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if p == nil {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Map runs fn over in and returns results in input order.
func Map[In, Out any](ctx context.Context, p *Pool, in []In, fn func(ctx context.Context, v In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(in))
	err := p.Run(ctx, len(in), func(ctx context.Context, i int) error {
		v, err := fn(ctx, in[i])
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
