// Package readcache is the short-lived response cache in front of the
// read API. Entries expire after a configurable TTL; a forced read
// bypasses the lookup and repopulates the entry.
package readcache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL applies when a backend is built with ttl <= 0.
const DefaultTTL = 5 * time.Minute

// FillFunc computes the payload on a cache miss.
type FillFunc func(ctx context.Context) ([]byte, error)

// Cache is the read-through contract. GetOrFill returns the payload
// and whether it came from the cache; force skips the lookup and
// overwrites the stored entry with the fresh payload.
type Cache interface {
	GetOrFill(ctx context.Context, key string, force bool, fill FillFunc) ([]byte, bool, error)
}

// Key builds a stable cache key from the stream name and the
// normalized request parameters.
func Key(stream string, parts ...string) string {
	return stream + "|" + strings.Join(parts, "|")
}

type entry struct {
	payload []byte
	expires time.Time
}

// Memory is the default in-process backend. A per-key guard collapses
// concurrent misses for the same key into one fill. Expired entries
// and their guards are swept on write at most once per TTL, so
// arbitrary query-string keys cannot grow the maps without bound.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]*entry
	guards    map[string]*sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

// NewMemory builds the in-process backend.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]*entry),
		guards:  make(map[string]*sync.Mutex),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrFill implements Cache.
func (m *Memory) GetOrFill(ctx context.Context, key string, force bool, fill FillFunc) ([]byte, bool, error) {
	guard := m.guard(key)
	guard.Lock()
	defer guard.Unlock()

	if !force {
		if payload, ok := m.lookup(key); ok {
			return payload, true, nil
		}
	}

	payload, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	m.put(key, payload)
	return payload, false, nil
}

func (m *Memory) guard(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guards[key]
	if !ok {
		g = &sync.Mutex{}
		m.guards[key] = g
	}
	return g
}

func (m *Memory) lookup(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.payload, true
}

func (m *Memory) put(key string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.entries[key] = &entry{
		payload: payload,
		expires: now.Add(m.ttl),
	}
	if now.Before(m.nextSweep) {
		return
	}
	m.nextSweep = now.Add(m.ttl)
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	// A guard deleted while another goroutine holds it only costs
	// one duplicate fill for that key, never a stale read.
	for k := range m.guards {
		if _, live := m.entries[k]; !live {
			delete(m.guards, k)
		}
	}
}
