package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"studio-schedule-service/internal/models"
)

type bufferEntry struct {
	buffer *models.BookingBuffer
	source models.BufferSource
}

// BufferCache keeps resolved effective buffers in memory so the slot
// check does not hit the database on every request. Entries are whole
// resolutions: the cached value already reflects the service -> org
// default -> system default fallback.
type BufferCache struct {
	cache *lru.Cache[string, bufferEntry]
	mu    sync.RWMutex
}

func NewBufferCache(size int) (*BufferCache, error) {
	c, err := lru.New[string, bufferEntry](size)
	if err != nil {
		return nil, err
	}

	return &BufferCache{cache: c}, nil
}

func (c *BufferCache) Get(orgID string, serviceID *string) (*models.BookingBuffer, models.BufferSource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache.Get(key(orgID, serviceID))
	if !ok {
		return nil, "", false
	}

	return entry.buffer, entry.source, true
}

func (c *BufferCache) Put(orgID string, serviceID *string, buffer *models.BookingBuffer, source models.BufferSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key(orgID, serviceID), bufferEntry{buffer: buffer, source: source})
}

// Invalidate drops cached resolutions after an upsert. Updating the org
// default can change any service resolution that fell back to it, so a
// nil serviceID purges everything.
func (c *BufferCache) Invalidate(orgID string, serviceID *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if serviceID == nil {
		c.cache.Purge()
		return
	}

	c.cache.Remove(key(orgID, serviceID))
}

func key(orgID string, serviceID *string) string {
	if serviceID == nil {
		return orgID + "|"
	}
	return orgID + "|" + *serviceID
}
