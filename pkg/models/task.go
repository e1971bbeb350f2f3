package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a task record.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
	TaskCanceled  TaskStatus = "canceled"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskError, TaskCanceled:
		return true
	}
	return false
}

// Task types accepted by the executor.
const (
	TaskProcessUserInput = "processUserInput"
	TaskGmailSummary     = "gmail-summary"
	TaskTeamsSummary     = "teams-summary"
	TaskDraftEmail       = "draft-email"
)

// Task is a persisted task record.
type Task struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"userId"`
	Type        string          `json:"type"`
	Status      TaskStatus      `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// TaskResult is returned from executing a task. Exactly one of Result or
// ResponseID is set: large outputs are parked in the cache.
type TaskResult struct {
	TaskID                int64       `json:"taskId"`
	Status                TaskStatus  `json:"status"`
	Result                *Completion `json:"result"`
	ResponseID            string      `json:"responseId,omitempty"`
	Preview               *string     `json:"preview,omitempty"`
	FullResponseAvailable bool        `json:"fullResponseAvailable,omitempty"`
	ExpiresAt             *time.Time  `json:"expiresAt,omitempty"`
}
