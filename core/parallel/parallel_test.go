package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{1, 7, 100, 10007} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, n)
			}
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var mu sync.Mutex
	var calls [][2]int
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]int{start, end})
	})
	assert.Equal(t, [][2]int{{0, 10}}, calls)
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	ParallelizeWithThreshold(0, 10, func(start, end int) { called = true })
	assert.False(t, called)
}
