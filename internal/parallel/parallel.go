// Package parallel provides the parallel execution utilities used by the
// training loop: chunked loops, index partitioning and the two collectives
// (Broadcast and Barrier) workers synchronize on.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := DefaultWorkers()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// DefaultWorkers returns the number of physical cores, falling back to the
// logical CPU count when the CPU cannot be identified.
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers < 2 {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Partition splits the half-open range [start, end) into size nearly equal
// contiguous parts and returns the part owned by rank.
//
// The first (end-start) % size ranks get one extra element. Ranks beyond the
// number of elements get an empty range. The parts of ranks 0..size-1 are
// disjoint, ordered, and cover [start, end) exactly.
func Partition(rank, size, start, end int) (lo, hi int) {
	if size <= 0 || rank < 0 || rank >= size || end <= start {
		return start, start
	}
	n := end - start
	q, r := n/size, n%size
	lo = start + rank*q + min(rank, r)
	hi = lo + q
	if rank < r {
		hi++
	}
	return lo, hi
}
