package models

import "time"

// EntryKind tags what a cache entry holds.
type EntryKind string

const (
	EntryGeneric  EntryKind = "generic"
	EntryResponse EntryKind = "response"
)

// ResponseMeta describes where a cached LLM response came from.
type ResponseMeta struct {
	TaskID   int64  `json:"taskId,omitempty"`
	TaskType string `json:"taskType,omitempty"`
	Source   string `json:"source,omitempty"`
}

// CacheSettings is the runtime configuration of the response cache.
type CacheSettings struct {
	DefaultTTL             time.Duration `json:"defaultTTL" yaml:"default_ttl"`
	PreviewSize            int           `json:"previewSize" yaml:"preview_size"`
	LargeResponseThreshold int           `json:"largeResponseThreshold" yaml:"large_response_threshold"`
	IDPrefix               string        `json:"idPrefix" yaml:"id_prefix"`
	CleanupInterval        time.Duration `json:"cleanupInterval" yaml:"cleanup_interval"`
}

// SettingsUpdate is a partial CacheSettings. Nil fields are left untouched.
type SettingsUpdate struct {
	DefaultTTL             *time.Duration
	PreviewSize            *int
	LargeResponseThreshold *int
	IDPrefix               *string
	CleanupInterval        *time.Duration
}

// SetResult is returned when a value is stored.
type SetResult struct {
	ID              string        `json:"id"`
	Preview         *string       `json:"preview"`
	IsLargeResponse bool          `json:"isLargeResponse"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	TTL             time.Duration `json:"ttl"`
}

// ResponseDescriptor is what callers get back instead of an oversized response.
type ResponseDescriptor struct {
	ResponseID            string    `json:"responseId"`
	Preview               *string   `json:"preview"`
	FullResponseAvailable bool      `json:"fullResponseAvailable"`
	ExpiresAt             time.Time `json:"expiresAt"`
}

// EntrySnapshot is a copy of a live cache entry.
type EntrySnapshot struct {
	Value         string         `json:"value"`
	Kind          EntryKind      `json:"kind"`
	Metadata      map[string]any `json:"metadata"`
	Created       time.Time      `json:"created"`
	Expiry        time.Time      `json:"expiry"`
	Size          int            `json:"size"`
	TimeRemaining time.Duration  `json:"timeRemaining"`
}

// KeyInfo describes a cache key without its value.
type KeyInfo struct {
	ID            string         `json:"id"`
	Kind          EntryKind      `json:"kind"`
	Created       time.Time      `json:"created"`
	Expiry        time.Time      `json:"expiry"`
	TimeRemaining time.Duration  `json:"timeRemaining"`
	Size          int            `json:"size"`
	Metadata      map[string]any `json:"metadata"`
}

// CacheStats reports cache performance and occupancy.
// TotalEntries and TotalBytes track the live totals, adjusted on insert and remove.
type CacheStats struct {
	Hits           int64         `json:"hits"`
	Misses         int64         `json:"misses"`
	TotalEntries   int64         `json:"totalEntries"`
	TotalBytes     int64         `json:"totalBytes"`
	ActiveEntries  int           `json:"activeEntries"`
	ExpiredEntries int           `json:"expiredEntries"`
	CurrentEntries int           `json:"currentEntries"`
	Config         CacheSettings `json:"config"`
	HitRatio       float64       `json:"hitRatio"`
}
