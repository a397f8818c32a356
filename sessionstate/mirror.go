package sessionstate

import (
	"sync"
	"time"
)

// Mirror is a derived, non-authoritative key/value copy of session state.
// The cookie mirror honors TTLs; the local-storage mirror ignores them.
// Mirror writes are best-effort: the coordinator never fails a mutation
// because a mirror write was lost.
type Mirror interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryMirror is an in-process Mirror with optional per-key expiry. It
// stands in for browser cookie and local-storage stores in tests and
// non-browser clients.
type MemoryMirror struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryMirror returns an empty in-process mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements [Mirror]. An expired entry reads as absent and is removed.
func (m *MemoryMirror) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return entry.value, true
}

// Set implements [Mirror]. A non-positive ttl stores without expiry.
func (m *MemoryMirror) Set(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
}

// Delete implements [Mirror].
func (m *MemoryMirror) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}
