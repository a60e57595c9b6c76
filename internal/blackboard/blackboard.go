// Package blackboard provides the key/value store used for cross-task signaling
// during an index build. One Blackboard is created per build and handed to the
// tasks that need it.
package blackboard

import "sync"

// Keys shared between the build coordinator and its collaborators
const (
	KeyIndexerCount           = "indexer_count"
	KeyInterruptedIndexing    = "interrupted_indexing"
	KeyIndexedSourceFileCount = "indexed_source_file_count"
	KeySourceFileCount        = "source_file_count"
)

// Blackboard is a mutex-guarded key/value store. It is safe for concurrent use.
type Blackboard struct {
	mu     sync.Mutex
	values map[string]any
}

// New creates an empty Blackboard
func New() *Blackboard {
	return &Blackboard{values: make(map[string]any)}
}

// Set stores value under key
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Get returns the raw value stored under key
func (b *Blackboard) Get(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

// Int returns the int stored under key, or 0 if missing or not an int
func (b *Blackboard) Int(key string) int {
	v, _ := b.Get(key)
	n, _ := v.(int)
	return n
}

// Bool returns the bool stored under key, or false if missing or not a bool
func (b *Blackboard) Bool(key string) bool {
	v, _ := b.Get(key)
	flag, _ := v.(bool)
	return flag
}

// Add increments the int stored under key by delta and returns the new value.
// The read and the write happen under one lock.
func (b *Blackboard) Add(key string, delta int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, _ := b.values[key].(int)
	n += delta
	b.values[key] = n
	return n
}

// Ints reads several int keys under one lock
func (b *Blackboard) Ints(keys ...string) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i], _ = b.values[k].(int)
	}
	return out
}
