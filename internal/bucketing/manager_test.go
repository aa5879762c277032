package bucketing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventBucketStable(t *testing.T) {
	m := NewManager(64)
	first := m.EventBucket("hash-abc")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, m.EventBucket("hash-abc"))
	}
}

func TestEventBucketRange(t *testing.T) {
	m := NewManager(8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		b := m.EventBucket(id)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 8)
	}
}

func TestDefaultBucketCount(t *testing.T) {
	assert.Equal(t, 64, NewManager(0).EventBuckets())
}

func TestDateBucket(t *testing.T) {
	m := NewManager(0)
	at := time.Date(2025, 6, 1, 23, 59, 0, 0, time.FixedZone("plus2", 2*3600))
	assert.Equal(t, "2025-06-01", m.DateBucket(at))
}
