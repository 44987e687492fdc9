package reporter

import (
	"sync"

	"basegraph.app/advflag/internal/model"
)

// ExternalIDCache maps post ids to a service's records. Entries are written once
// and never replaced.
type ExternalIDCache struct {
	mu      sync.RWMutex
	records map[int64]model.ExternalRecord
}

func NewExternalIDCache() *ExternalIDCache {
	return &ExternalIDCache{records: make(map[int64]model.ExternalRecord)}
}

// Put stores rec unless postID already has a record. It reports whether rec
// was stored.
func (c *ExternalIDCache) Put(postID int64, rec model.ExternalRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[postID]; ok {
		return false
	}
	c.records[postID] = rec
	return true
}

func (c *ExternalIDCache) Get(postID int64) (model.ExternalRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[postID]
	return rec, ok
}

func (c *ExternalIDCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Fill stores every record from a lookup and returns how many were new.
func (c *ExternalIDCache) Fill(records map[int64]model.ExternalRecord) int {
	added := 0
	for id, rec := range records {
		if c.Put(id, rec) {
			added++
		}
	}
	return added
}
