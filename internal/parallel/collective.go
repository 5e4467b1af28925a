package parallel

import (
	"fmt"
	"sync"
)

// Broadcast delivers one value from a root rank to every rank of a fixed
// group, once per round.
//
// Every rank, the root included, calls Recv; the root additionally calls
// Send before its Recv. Recv blocks until the root has sent the value for the
// current round, so all ranks observe the identical value.
//
// Example:
//
//	b := parallel.NewBroadcast[Window](workers)
//	// in each worker goroutine:
//	if rank == 0 {
//	    b.Send(drawWindow())
//	}
//	w := b.Recv(rank)
type Broadcast[T any] struct {
	chans []chan T
}

// NewBroadcast creates a broadcast for size ranks.
func NewBroadcast[T any](size int) *Broadcast[T] {
	if size <= 0 {
		panic(fmt.Sprintf("parallel.NewBroadcast: invalid group size %d", size))
	}
	chans := make([]chan T, size)
	for i := range chans {
		chans[i] = make(chan T, 1)
	}
	return &Broadcast[T]{chans: chans}
}

// Size returns the number of ranks.
func (b *Broadcast[T]) Size() int {
	return len(b.chans)
}

// Send publishes v to every rank. It must be called once per round, by the
// root only, and does not block as long as every rank consumed the previous
// round.
func (b *Broadcast[T]) Send(v T) {
	for _, ch := range b.chans {
		ch <- v
	}
}

// Recv blocks until the value of the current round is available to rank.
func (b *Broadcast[T]) Recv(rank int) T {
	return <-b.chans[rank]
}

// Barrier is a reusable rendezvous point for a fixed number of goroutines.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	waiting int
	round   uint64
}

// NewBarrier creates a barrier for size goroutines.
func NewBarrier(size int) *Barrier {
	if size <= 0 {
		panic(fmt.Sprintf("parallel.NewBarrier: invalid group size %d", size))
	}
	b := &Barrier{size: size}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until size goroutines have called Wait in the current round.
// Exactly one caller per round gets true, which is handy for electing the
// goroutine that runs a reduction.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	round := b.round
	b.waiting++
	if b.waiting == b.size {
		b.waiting = 0
		b.round++
		b.cond.Broadcast()
		return true
	}
	for round == b.round {
		b.cond.Wait()
	}
	return false
}
