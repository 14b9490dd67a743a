package transcript

import (
	"sync"
)

// RingBuffer is a thread-safe FIFO that doubles its capacity when it reaches
// 70% full, up to a limit. At the limit, Send overwrites the oldest item.
type RingBuffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int
	closed   bool

	// ready holds a token while the buffer is non-empty.
	ready chan struct{}

	// Stats
	totalReceived int64
	totalSent     int64
	dropped       int64
	resizeCount   int
}

// NewRingBuffer creates a buffer with the given initial capacity that grows
// up to limit items.
func NewRingBuffer[T any](initialCapacity, limit int) *RingBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit < initialCapacity {
		limit = initialCapacity
	}
	return &RingBuffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
		ready:    make(chan struct{}, 1),
	}
}

// Send adds an item. Returns false if the buffer is closed.
func (b *RingBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	// Grow at 70% while below the limit
	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold && b.capacity < b.limit {
		b.grow()
	}

	if b.count == b.capacity {
		// Full at the limit: overwrite the oldest
		var zero T
		b.buf[b.head] = zero
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++

	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled after Send. A receive from it does not guarantee
// items remain; callers drain with DrainTo.
func (b *RingBuffer[T]) Ready() <-chan struct{} {
	return b.ready
}

// DrainTo removes up to max items (all when max <= 0) in FIFO order.
func (b *RingBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		result[i] = b.buf[b.head]
		b.buf[b.head] = zero // Clear reference for GC
		b.head = (b.head + 1) % b.capacity
	}
	b.count -= n
	b.totalSent += int64(n)

	return result
}

// Requeue puts items back at the head in their original order, ahead of
// anything sent since they were drained. Items that no longer fit under the
// limit are dropped, oldest first. It works on a closed buffer.
func (b *RingBuffer[T]) Requeue(items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if free := b.limit - b.count; len(items) > free {
		b.dropped += int64(len(items) - free)
		items = items[len(items)-free:]
	}
	for b.count+len(items) > b.capacity {
		b.grow()
	}

	for i := len(items) - 1; i >= 0; i-- {
		b.head = (b.head - 1 + b.capacity) % b.capacity
		b.buf[b.head] = items[i]
		b.count++
	}
	b.totalSent -= int64(len(items))
}

// Close closes the buffer. After closing, Send returns false; queued items
// can still be drained.
func (b *RingBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len returns the current number of items in the buffer.
func (b *RingBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *RingBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalReceived: b.totalReceived,
		TotalSent:     b.totalSent,
		Dropped:       b.dropped,
		ResizeCount:   b.resizeCount,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	Dropped       int64
	ResizeCount   int
}

// grow doubles the capacity, clamped to the limit. Must be called with lock held.
func (b *RingBuffer[T]) grow() {
	newCapacity := b.capacity * 2
	if newCapacity > b.limit {
		newCapacity = b.limit
	}
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			// Contiguous: [head...tail)
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizeCount++
}
