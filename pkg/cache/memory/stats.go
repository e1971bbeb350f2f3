package memory

import (
	"cmp"
	"slices"
	"time"

	"github.com/pario-ai/fcagent/pkg/models"
)

// Stats returns counters plus an active/expired breakdown computed now.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	stats := models.CacheStats{
		Hits:           c.hits,
		Misses:         c.misses,
		TotalEntries:   c.totalEntries,
		TotalBytes:     c.totalBytes,
		CurrentEntries: len(c.entries),
		Config:         c.settings,
	}
	for _, e := range c.entries {
		if e.expired(now) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		stats.HitRatio = float64(c.hits) / float64(lookups)
	}
	return stats
}

// ListKeys describes the stored entries, oldest first.
func (c *Cache) ListKeys(activeOnly bool) []models.KeyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keys := make([]models.KeyInfo, 0, len(c.entries))
	for id, e := range c.entries {
		if activeOnly && e.expired(now) {
			continue
		}
		keys = append(keys, models.KeyInfo{
			ID:            id,
			Kind:          e.kind,
			Created:       e.created,
			Expiry:        e.expiry,
			TimeRemaining: max(0, e.expiry.Sub(now)),
			Size:          e.size,
			Metadata:      e.metadataView(),
		})
	}
	slices.SortFunc(keys, func(a, b models.KeyInfo) int {
		if n := a.Created.Compare(b.Created); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return keys
}
