package memory

import (
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/fcagent/pkg/models"
)

// CacheResponse stores an LLM response and returns a descriptor the caller can
// hand out instead of the full text. A zero ttl uses the default TTL.
func (c *Cache) CacheResponse(response string, meta models.ResponseMeta, ttl time.Duration) models.ResponseDescriptor {
	res := c.Set(response, Options{
		TTL:      ttl,
		Kind:     models.EntryResponse,
		Response: &meta,
	})
	return models.ResponseDescriptor{
		ResponseID:            res.ID,
		Preview:               res.Preview,
		FullResponseAvailable: res.IsLargeResponse,
		ExpiresAt:             res.ExpiresAt,
	}
}

// GetCachedResponse returns the text stored by CacheResponse. Entries stored
// with another kind are refused even when the ID matches.
func (c *Cache) GetCachedResponse(responseID string) (string, bool) {
	entry, ok := c.Get(responseID)
	if !ok {
		return "", false
	}
	if entry.Kind != models.EntryResponse {
		c.log.Warn("cache entry is not a response",
			zap.String("id", responseID),
			zap.String("kind", string(entry.Kind)),
		)
		return "", false
	}
	return entry.Value, true
}
