// Package parallel splits row-indexed work across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count below which work stays on the calling
// goroutine.
const DefaultThreshold = 1000

// Parallelize runs fn over [0, n) in contiguous chunks, one per CPU.
func Parallelize(n int, fn func(start, end int)) {
	ParallelizeWithThreshold(n, 1, fn)
}

// ParallelizeWithThreshold runs fn(0, n) directly when n < threshold and
// otherwise splits [0, n) into up to GOMAXPROCS contiguous chunks processed
// concurrently. It returns once every chunk is done. fn must only write to
// rows inside its own chunk.
//
// Example:
//
//	parallel.ParallelizeWithThreshold(rows, parallel.DefaultThreshold, func(start, end int) {
//		for i := start; i < end; i++ {
//			out.Set(i, 0, f(X.RawRowView(i)))
//		}
//	})
func ParallelizeWithThreshold(n, threshold int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if n < threshold || workers < 2 {
		fn(0, n)
		return
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
