package security

import (
	"sync"

	audit "certify/pkg/platform/audit"
)

// RingBuffer is a bounded buffer of security events. When full the oldest
// event is overwritten and counted as dropped.
type RingBuffer struct {
	mu       sync.Mutex
	events   []audit.SecurityEvent
	head     int
	tail     int
	count    int
	capacity int
	dropped  int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		events:   make([]audit.SecurityEvent, capacity),
		capacity: capacity,
	}
}

func (b *RingBuffer) Enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n events, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]audit.SecurityEvent, n)
	for i := range out {
		out[i] = b.events[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
