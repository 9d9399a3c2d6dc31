package buffer

import (
	"sync"
)

// MemoryBuffer is an ordered in-memory queue capped at maxSize items. When
// full, adding an item evicts the oldest one.
type MemoryBuffer[T any] struct {
	entries []T
	maxSize int
	mu      sync.Mutex
}

func NewMemoryBuffer[T any](maxSize int) *MemoryBuffer[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &MemoryBuffer[T]{
		entries: make([]T, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends entry and reports whether an older entry was evicted to make
// room for it.
func (b *MemoryBuffer[T]) Add(entry T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if len(b.entries) >= b.maxSize {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
		evicted = true
	}

	b.entries = append(b.entries, entry)
	return evicted
}

// Snapshot returns a copy of the buffered entries without removing them.
func (b *MemoryBuffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}

	entries := make([]T, len(b.entries))
	copy(entries, b.entries)
	return entries
}

// Discard drops the n oldest entries.
func (b *MemoryBuffer[T]) Discard(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n >= len(b.entries) {
		b.entries = b.entries[:0]
		return
	}
	if n <= 0 {
		return
	}
	remaining := copy(b.entries, b.entries[n:])
	var zero T
	for i := remaining; i < len(b.entries); i++ {
		b.entries[i] = zero
	}
	b.entries = b.entries[:remaining]
}

func (b *MemoryBuffer[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
