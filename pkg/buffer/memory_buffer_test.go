package buffer

import (
	"testing"
)

func TestMemoryBuffer(t *testing.T) {
	buffer := NewMemoryBuffer[string](3)

	if buffer.Size() != 0 {
		t.Errorf("Expected buffer size 0, got %d", buffer.Size())
	}

	if evicted := buffer.Add("1"); evicted {
		t.Error("Expected no eviction on first add")
	}

	if buffer.Size() != 1 {
		t.Errorf("Expected buffer size 1, got %d", buffer.Size())
	}

	buffer.Add("2")
	buffer.Add("3")

	entries := buffer.Snapshot()
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}

	buffer.Discard(len(entries))
	if buffer.Size() != 0 {
		t.Errorf("Expected buffer size 0 after discard, got %d", buffer.Size())
	}

	buffer.Add("1")
	buffer.Add("2")
	buffer.Add("3")
	if evicted := buffer.Add("4"); !evicted {
		t.Error("Expected oldest entry to be evicted when full")
	}

	if buffer.Size() != 3 {
		t.Errorf("Expected buffer size 3 after overflow, got %d", buffer.Size())
	}

	entries = buffer.Snapshot()
	if entries[0] != "2" {
		t.Errorf("Expected first entry to be '2' after rotation, got %s", entries[0])
	}
}

func TestMemoryBufferSnapshotAndDiscard(t *testing.T) {
	buffer := NewMemoryBuffer[int](10)
	for i := 1; i <= 5; i++ {
		buffer.Add(i)
	}

	snapshot := buffer.Snapshot()
	if len(snapshot) != 5 {
		t.Fatalf("Expected snapshot of 5 entries, got %d", len(snapshot))
	}
	if buffer.Size() != 5 {
		t.Errorf("Expected snapshot to leave buffer intact, size %d", buffer.Size())
	}

	buffer.Discard(3)
	remaining := buffer.Snapshot()
	if len(remaining) != 2 || remaining[0] != 4 || remaining[1] != 5 {
		t.Errorf("Expected [4 5] after discarding 3, got %v", remaining)
	}

	buffer.Discard(10)
	if buffer.Size() != 0 {
		t.Errorf("Expected empty buffer after discarding more than size, got %d", buffer.Size())
	}

	if snapshot := buffer.Snapshot(); snapshot != nil {
		t.Errorf("Expected nil snapshot for empty buffer, got %v", snapshot)
	}
}
