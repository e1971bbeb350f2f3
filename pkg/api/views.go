package api

import (
	"time"

	"github.com/pario-ai/fcagent/pkg/models"
)

// The extension works in milliseconds, so durations and instants are
// rendered as integers.

type settingsView struct {
	DefaultTTL             int64  `json:"defaultTTL"`
	PreviewSize            int    `json:"previewSize"`
	LargeResponseThreshold int    `json:"largeResponseThreshold"`
	IDPrefix               string `json:"idPrefix"`
	CleanupInterval        int64  `json:"cleanupInterval"`
}

func newSettingsView(s models.CacheSettings) settingsView {
	return settingsView{
		DefaultTTL:             s.DefaultTTL.Milliseconds(),
		PreviewSize:            s.PreviewSize,
		LargeResponseThreshold: s.LargeResponseThreshold,
		IDPrefix:               s.IDPrefix,
		CleanupInterval:        s.CleanupInterval.Milliseconds(),
	}
}

// settingsPatch is the body of a configure request. Absent fields keep
// their current value.
type settingsPatch struct {
	DefaultTTL             *int64  `json:"defaultTTL"`
	PreviewSize            *int    `json:"previewSize"`
	LargeResponseThreshold *int    `json:"largeResponseThreshold"`
	IDPrefix               *string `json:"idPrefix"`
	CleanupInterval        *int64  `json:"cleanupInterval"`
}

func (p settingsPatch) update() models.SettingsUpdate {
	u := models.SettingsUpdate{
		PreviewSize:            p.PreviewSize,
		LargeResponseThreshold: p.LargeResponseThreshold,
		IDPrefix:               p.IDPrefix,
	}
	if p.DefaultTTL != nil {
		d := time.Duration(*p.DefaultTTL) * time.Millisecond
		u.DefaultTTL = &d
	}
	if p.CleanupInterval != nil {
		d := time.Duration(*p.CleanupInterval) * time.Millisecond
		u.CleanupInterval = &d
	}
	return u
}

type statsView struct {
	Hits           int64        `json:"hits"`
	Misses         int64        `json:"misses"`
	TotalEntries   int64        `json:"totalEntries"`
	TotalBytes     int64        `json:"totalBytes"`
	ActiveEntries  int          `json:"activeEntries"`
	ExpiredEntries int          `json:"expiredEntries"`
	CurrentEntries int          `json:"currentEntries"`
	HitRatio       float64      `json:"hitRatio"`
	Config         settingsView `json:"config"`
}

func newStatsView(s models.CacheStats) statsView {
	return statsView{
		Hits:           s.Hits,
		Misses:         s.Misses,
		TotalEntries:   s.TotalEntries,
		TotalBytes:     s.TotalBytes,
		ActiveEntries:  s.ActiveEntries,
		ExpiredEntries: s.ExpiredEntries,
		CurrentEntries: s.CurrentEntries,
		HitRatio:       s.HitRatio,
		Config:         newSettingsView(s.Config),
	}
}

type keyView struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Created       int64          `json:"created"`
	ExpiresAt     int64          `json:"expiresAt"`
	TimeRemaining int64          `json:"timeRemaining"`
	Size          int            `json:"size"`
	Metadata      map[string]any `json:"metadata"`
}

func newKeyViews(keys []models.KeyInfo) []keyView {
	out := make([]keyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyView{
			ID:            k.ID,
			Type:          string(k.Kind),
			Created:       k.Created.UnixMilli(),
			ExpiresAt:     k.Expiry.UnixMilli(),
			TimeRemaining: k.TimeRemaining.Milliseconds(),
			Size:          k.Size,
			Metadata:      k.Metadata,
		})
	}
	return out
}

type taskResultView struct {
	TaskID                int64              `json:"taskId"`
	Status                models.TaskStatus  `json:"status"`
	Result                *models.Completion `json:"result"`
	ResponseID            *string            `json:"responseId"`
	Preview               *string            `json:"preview"`
	FullResponseAvailable bool               `json:"fullResponseAvailable"`
	ExpiresAt             *int64             `json:"expiresAt"`
}

func newTaskResultView(r models.TaskResult) taskResultView {
	v := taskResultView{
		TaskID:                r.TaskID,
		Status:                r.Status,
		Result:                r.Result,
		Preview:               r.Preview,
		FullResponseAvailable: r.FullResponseAvailable,
	}
	if r.ResponseID != "" {
		id := r.ResponseID
		v.ResponseID = &id
	}
	if r.ExpiresAt != nil {
		ms := r.ExpiresAt.UnixMilli()
		v.ExpiresAt = &ms
	}
	return v
}
