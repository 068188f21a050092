// Package parallel splits index ranges over goroutines. The preconditioner
// uses it to centre and restore wide sample matrices column chunk by column
// chunk.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the item count below which ParallelizeWithThreshold
// runs sequentially. Centring a column costs a handful of flops, so goroutine
// start-up only pays off for a few thousand samples.
const DefaultThreshold = 2048

// Parallelize divides items into one contiguous range per CPU core and calls
// fn(start, end) for each range concurrently. It returns once every call has
// finished.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelizeWithThreshold calls fn(0, items) directly when items does not
// exceed threshold, and Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}

	Parallelize(items, fn)
}
