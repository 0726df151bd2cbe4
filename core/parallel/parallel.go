// Package parallel splits row-wise work across goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Parallelize runs fn over [0, n) split into contiguous chunks, at most one
// goroutine per CPU.
func Parallelize(n int, fn func(start, end int)) {
	_ = ParallelizeErr(n, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeErr is Parallelize for work that can fail. It returns the first
// error; chunks already running are not interrupted.
func ParallelizeErr(n int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error { return fn(start, end) })
	}
	return g.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when n is below threshold
// and in parallel otherwise.
func ParallelizeWithThreshold(n, threshold int, fn func(start, end int)) {
	_ = ParallelizeErrWithThreshold(n, threshold, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeErrWithThreshold is ParallelizeWithThreshold for work that can
// fail.
func ParallelizeErrWithThreshold(n, threshold int, fn func(start, end int) error) error {
	if n < threshold {
		if n > 0 {
			return fn(0, n)
		}
		return nil
	}
	return ParallelizeErr(n, fn)
}
