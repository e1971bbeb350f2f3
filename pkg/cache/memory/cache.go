// Package memory implements the in-memory response cache: a TTL store with
// per-entry removal timers, a periodic cleanup sweep and hit/miss statistics.
package memory

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/pario-ai/fcagent/pkg/models"
)

// DefaultSettings returns the cache settings used when none are configured.
func DefaultSettings() models.CacheSettings {
	return models.CacheSettings{
		DefaultTTL:             10 * time.Minute,
		PreviewSize:            100,
		LargeResponseThreshold: 500,
		IDPrefix:               "cache_",
		CleanupInterval:        30 * time.Minute,
	}
}

// Options controls how Set stores a value.
type Options struct {
	// ID overrides the generated identifier. An existing entry with the same ID is replaced.
	ID string
	// TTL defaults to the configured DefaultTTL when zero or negative.
	TTL time.Duration
	// Kind defaults to models.EntryGeneric.
	Kind models.EntryKind
	// Response is only kept for models.EntryResponse entries.
	Response *models.ResponseMeta
	Metadata map[string]any
}

type entry struct {
	value    string
	kind     models.EntryKind
	response *models.ResponseMeta
	metadata map[string]any
	created  time.Time
	expiry   time.Time
	ttl      time.Duration
	size     int

	// timer removes the entry when it fires, unless gen has moved on.
	timer *time.Timer
	gen   uint64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiry.After(now)
}

// Cache is a TTL key-value store for sanitized text.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	settings models.CacheSettings

	hits         int64
	misses       int64
	totalEntries int64
	totalBytes   int64

	log       *zap.Logger
	interval  chan time.Duration
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Cache and starts its cleanup loop. Call Close to stop it.
func New(settings models.CacheSettings, logger *zap.Logger) (*Cache, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		entries:  make(map[string]*entry),
		settings: settings,
		log:      logger,
		interval: make(chan time.Duration, 1),
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop(settings.CleanupInterval)

	return c, nil
}

// Set sanitizes and stores value, scheduling its removal after the TTL.
func (c *Cache) Set(value string, opts Options) models.SetResult {
	clean := Sanitize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.settings.DefaultTTL
	}
	kind := opts.Kind
	if kind == "" {
		kind = models.EntryGeneric
	}
	id := opts.ID
	if id == "" {
		source := ""
		if opts.Response != nil && opts.Response.TaskID != 0 {
			source = formatTaskID(opts.Response.TaskID)
		}
		id = newID(c.settings.IDPrefix, source, time.Now())
	}

	if old, ok := c.entries[id]; ok {
		c.log.Warn("cache id collision, replacing entry", zap.String("id", id))
		c.removeLocked(id, old)
	}

	now := time.Now()
	e := &entry{
		value:    clean,
		kind:     kind,
		metadata: copyMetadata(opts.Metadata),
		created:  now,
		expiry:   now.Add(ttl),
		ttl:      ttl,
		size:     len(clean),
	}
	if kind == models.EntryResponse && opts.Response != nil {
		meta := *opts.Response
		e.response = &meta
	}

	c.entries[id] = e
	c.totalEntries++
	c.totalBytes += int64(e.size)
	c.scheduleLocked(id, e)

	c.log.Info("cache entry stored",
		zap.String("id", id),
		zap.Int("size", e.size),
		zap.Duration("ttl", ttl),
	)

	res := models.SetResult{
		ID:        id,
		ExpiresAt: e.expiry,
		TTL:       ttl,
	}
	if utf8.RuneCountInString(clean) > c.settings.LargeResponseThreshold {
		p := preview(clean, c.settings.PreviewSize)
		res.IsLargeResponse = true
		res.Preview = &p
	}
	return res
}

// Get returns a live entry and records a hit or a miss.
func (c *Cache) Get(id string) (models.EntrySnapshot, bool) {
	return c.Lookup(id, true)
}

// Lookup returns a live entry. Expired entries are removed on the spot.
func (c *Cache) Lookup(id string, updateStats bool) (models.EntrySnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		c.log.Warn("cache lookup with empty id")
		c.missLocked(updateStats)
		return models.EntrySnapshot{}, false
	}

	e, ok := c.entries[id]
	if !ok {
		c.log.Debug("cache entry not found", zap.String("id", id))
		c.missLocked(updateStats)
		return models.EntrySnapshot{}, false
	}

	now := time.Now()
	if e.expired(now) {
		c.removeLocked(id, e)
		c.log.Debug("cache entry expired on read", zap.String("id", id))
		c.missLocked(updateStats)
		return models.EntrySnapshot{}, false
	}

	if updateStats {
		c.hits++
	}
	return models.EntrySnapshot{
		Value:         e.value,
		Kind:          e.kind,
		Metadata:      e.metadataView(),
		Created:       e.created,
		Expiry:        e.expiry,
		Size:          e.size,
		TimeRemaining: e.expiry.Sub(now),
	}, true
}

// Has reports whether id holds a live entry without touching statistics.
func (c *Cache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		c.removeLocked(id, e)
		return false
	}
	return true
}

// Remove deletes id and reports whether it was present.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return false
	}
	c.removeLocked(id, e)
	c.log.Debug("cache entry removed", zap.String("id", id))
	return true
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(id, e)
			removed++
		}
	}
	if removed > 0 {
		c.log.Info("cache cleanup", zap.Int("removed", removed))
	}
	return removed
}

// RenewExpiry pushes the expiry of id to now+ttl and replaces its removal timer.
func (c *Cache) RenewExpiry(id string, ttl time.Duration) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		c.log.Warn("cache renew with empty id")
		return time.Time{}, false
	}
	e, ok := c.entries[id]
	if !ok {
		c.log.Debug("cache entry not found for renewal", zap.String("id", id))
		return time.Time{}, false
	}
	if e.expired(time.Now()) {
		c.removeLocked(id, e)
		c.log.Debug("cache entry expired before renewal", zap.String("id", id))
		return time.Time{}, false
	}

	if ttl <= 0 {
		ttl = c.settings.DefaultTTL
	}
	e.ttl = ttl
	e.expiry = time.Now().Add(ttl)
	c.scheduleLocked(id, e)

	c.log.Debug("cache entry renewed", zap.String("id", id), zap.Duration("ttl", ttl))
	return e.expiry, true
}

// Configure merges the non-nil fields of u into the live settings. The update is
// applied as a whole or not at all; existing entries keep their TTLs.
func (c *Cache) Configure(u models.SettingsUpdate) (models.CacheSettings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.settings
	if u.DefaultTTL != nil {
		next.DefaultTTL = *u.DefaultTTL
	}
	if u.PreviewSize != nil {
		next.PreviewSize = *u.PreviewSize
	}
	if u.LargeResponseThreshold != nil {
		next.LargeResponseThreshold = *u.LargeResponseThreshold
	}
	if u.IDPrefix != nil {
		next.IDPrefix = *u.IDPrefix
	}
	if u.CleanupInterval != nil {
		next.CleanupInterval = *u.CleanupInterval
	}

	if err := validateSettings(next); err != nil {
		c.log.Warn("cache configuration rejected", zap.Error(err))
		return c.settings, err
	}

	if next.CleanupInterval != c.settings.CleanupInterval {
		// Only senders hold c.mu, so after the drain the send cannot block.
		select {
		case <-c.interval:
		default:
		}
		c.interval <- next.CleanupInterval
	}
	c.settings = next

	c.log.Info("cache configuration updated",
		zap.Duration("default_ttl", next.DefaultTTL),
		zap.Int("preview_size", next.PreviewSize),
		zap.Int("large_response_threshold", next.LargeResponseThreshold),
		zap.String("id_prefix", next.IDPrefix),
		zap.Duration("cleanup_interval", next.CleanupInterval),
	)
	return next, nil
}

// Settings returns the current settings.
func (c *Cache) Settings() models.CacheSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// GenerateID returns a new identifier. An empty prefix uses the configured one.
func (c *Cache) GenerateID(prefix, source string) string {
	if prefix == "" {
		prefix = c.Settings().IDPrefix
	}
	return newID(prefix, source, time.Now())
}

// Close stops the cleanup loop and all pending removal timers.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.mu.Lock()
		for _, e := range c.entries {
			if e.timer != nil {
				e.timer.Stop()
			}
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *Cache) scheduleLocked(id string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(e.ttl, func() { c.expire(id, e, gen) })
}

// expire is the timer callback. A timer that lost a race with Stop finds a
// newer generation, or a different entry under id, and does nothing.
func (c *Cache) expire(id string, e *entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[id]
	if !ok || cur != e || e.gen != gen {
		return
	}
	c.removeLocked(id, e)
	c.log.Debug("cache entry expired", zap.String("id", id))
}

func (c *Cache) removeLocked(id string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(c.entries, id)
	c.totalEntries--
	c.totalBytes -= int64(e.size)
}

func (c *Cache) missLocked(updateStats bool) {
	if updateStats {
		c.misses++
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case d := <-c.interval:
			ticker.Reset(d)
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

func validateSettings(s models.CacheSettings) error {
	switch {
	case s.DefaultTTL <= 0:
		return errors.Newf(errors.CodeInvalidConfig, "defaultTTL must be positive, got %s", s.DefaultTTL)
	case s.PreviewSize <= 0:
		return errors.Newf(errors.CodeInvalidConfig, "previewSize must be positive, got %d", s.PreviewSize)
	case s.LargeResponseThreshold <= 0:
		return errors.Newf(errors.CodeInvalidConfig, "largeResponseThreshold must be positive, got %d", s.LargeResponseThreshold)
	case s.IDPrefix == "":
		return errors.New(errors.CodeInvalidConfig, "idPrefix must not be empty")
	case s.CleanupInterval <= 0:
		return errors.Newf(errors.CodeInvalidConfig, "cleanupInterval must be positive, got %s", s.CleanupInterval)
	}
	return nil
}

// preview returns the first n runes of s followed by an ellipsis.
func preview(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s + "..."
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// metadataView merges caller tags with the entry's kind, response origin and TTL.
func (e *entry) metadataView() map[string]any {
	m := make(map[string]any, len(e.metadata)+5)
	for k, v := range e.metadata {
		m[k] = v
	}
	if e.response != nil {
		if e.response.TaskID != 0 {
			m["taskId"] = e.response.TaskID
		}
		if e.response.TaskType != "" {
			m["taskType"] = e.response.TaskType
		}
		if e.response.Source != "" {
			m["source"] = e.response.Source
		}
	}
	m["type"] = string(e.kind)
	m["ttl"] = e.ttl.Milliseconds()
	return m
}
