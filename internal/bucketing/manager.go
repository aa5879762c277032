// Package bucketing derives stable buckets for abuse events so partition
// keys and analytics rollups stay consistent across instances.
package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

const defaultEventBuckets = 64

// Manager assigns identifiers to a fixed number of buckets via murmur3.
type Manager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

// NewManager builds a Manager with the given bucket count (default 64).
func NewManager(eventBuckets int) *Manager {
	if eventBuckets <= 0 {
		eventBuckets = defaultEventBuckets
	}
	m := &Manager{eventBuckets: eventBuckets}
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return m
}

// EventBucket returns a stable bucket in [0, eventBuckets) for identifier.
func (m *Manager) EventBucket(identifier string) int {
	return int(m.hash(identifier) % uint64(m.eventBuckets))
}

// DateBucket returns the UTC date partition for an event.
func (m *Manager) DateBucket(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

// EventBuckets returns the configured bucket count.
func (m *Manager) EventBuckets() int {
	return m.eventBuckets
}

func (m *Manager) hash(key string) uint64 {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
