// Package cache provides the key/value stores backing one-time codes.
package cache

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/trezcool/jifunze/core"
)

type memEntry struct {
	value string
	timer *time.Timer
}

// MemoryStore keeps entries in process memory until their TTL fires.
// Entries are lost on restart and are not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

var _ core.KeyValueStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(key)
	e := &memEntry{value: value}
	e.timer = time.AfterFunc(ttl, func() { s.expire(key, e) })
	s.entries[key] = e
	return nil
}

// expire drops the entry unless it was replaced in the meantime.
func (s *MemoryStore) expire(key string, e *memEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[key] == e {
		delete(s.entries, key)
	}
}

// remove must be called with the lock held.
func (s *MemoryStore) remove(key string) {
	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
		delete(s.entries, key)
	}
}

func (s *MemoryStore) GetAndDelete(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	s.remove(key)
	return e.value, true, nil
}

func (s *MemoryStore) Consume(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || subtle.ConstantTimeCompare([]byte(e.value), []byte(value)) != 1 {
		return false, nil
	}
	s.remove(key)
	return true, nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
