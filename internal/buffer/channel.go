// Package buffer provides a fixed-capacity FIFO that applies backpressure to
// producers and makes consumers wait for data.
//
// Nothing in this package times out. Put and Get wait until their condition
// holds; a caller that needs a deadline must race the call against a timer
// in its own goroutine.
package buffer

import (
	"fmt"
	"sync"
)

// Channel is a ring buffer of fixed capacity.
//
// Producers serialize through a dedicated exclusion region that spans the
// wait for space, so concurrent Put calls never interleave their writes.
// Ring state is guarded by a second mutex shared with Get, which keeps the
// buffer memory-safe even if more than one consumer is attached. Items are
// delivered in the order Put completed.
//
// A Channel with capacity 1 is a single-slot mailbox: Put blocks until the
// unread item has been taken. It never overwrites.
type Channel[T any] struct {
	putMu sync.Mutex // producer exclusion region

	mu       sync.Mutex
	hasData  *sync.Cond
	hasSpace *sync.Cond

	buf      []T
	capacity int
	head     int // next read position
	tail     int // next write position
	count    int

	dataReady  bool
	spaceReady bool
}

// New creates a Channel holding at most capacity items.
// It panics if capacity is less than 1.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("buffer: capacity must be at least 1, got %d", capacity))
	}
	c := &Channel[T]{
		buf:        make([]T, capacity),
		capacity:   capacity,
		spaceReady: true,
	}
	c.hasData = sync.NewCond(&c.mu)
	c.hasSpace = sync.NewCond(&c.mu)
	return c
}

// Put appends item, waiting while the buffer is full.
func (c *Channel[T]) Put(item T) {
	c.putMu.Lock()
	defer c.putMu.Unlock()

	c.mu.Lock()
	for !c.spaceReady {
		c.hasSpace.Wait()
	}
	c.buf[c.tail] = item
	c.tail = (c.tail + 1) % c.capacity
	c.count++
	c.updateFlags()
	c.mu.Unlock()

	c.hasData.Broadcast()
}

// Get removes and returns the oldest item, waiting while the buffer is empty.
func (c *Channel[T]) Get() T {
	c.mu.Lock()
	for !c.dataReady {
		c.hasData.Wait()
	}
	item := c.buf[c.head]
	var zero T
	c.buf[c.head] = zero
	c.head = (c.head + 1) % c.capacity
	c.count--
	c.updateFlags()
	c.mu.Unlock()

	c.hasSpace.Broadcast()
	return item
}

// WaitData blocks until at least one item is buffered. It does not consume.
func (c *Channel[T]) WaitData() {
	c.mu.Lock()
	for !c.dataReady {
		c.hasData.Wait()
	}
	c.mu.Unlock()
}

// WaitSpace blocks until at least one slot is free. It does not reserve it,
// so a competing producer may still fill the slot first.
func (c *Channel[T]) WaitSpace() {
	c.mu.Lock()
	for !c.spaceReady {
		c.hasSpace.Wait()
	}
	c.mu.Unlock()
}

// HasData reports whether at least one item is buffered.
func (c *Channel[T]) HasData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataReady
}

// HasSpace reports whether at least one slot is free.
func (c *Channel[T]) HasSpace() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spaceReady
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cap returns the fixed capacity.
func (c *Channel[T]) Cap() int {
	return c.capacity
}

// Items returns a copy of the buffered items, oldest first.
func (c *Channel[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return nil
	}
	result := make([]T, c.count)
	for i := 0; i < c.count; i++ {
		result[i] = c.buf[(c.head+i)%c.capacity]
	}
	return result
}

// String summarizes ring positions for diagnostics.
func (c *Channel[T]) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("head: %d; tail: %d; length: %d/%d", c.head, c.tail, c.count, c.capacity)
}

// updateFlags must be called with mu held.
func (c *Channel[T]) updateFlags() {
	c.dataReady = c.count > 0
	c.spaceReady = c.count < c.capacity
}
