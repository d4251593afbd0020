package database

import (
	"encoding/json"
	"time"
)

// Job statuses
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobStatus tracks one asynchronous report job
type JobStatus struct {
	JobID        string    `json:"job_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	CacheKey     string    `json:"cache_key,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Progress     int       `json:"progress"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CachedReport is a serialized report view stored in the app database
type CachedReport struct {
	CacheKey      string          `json:"cache_key"`
	Kind          string          `json:"kind"`
	RequestParams json.RawMessage `json:"request_params"`
	ViewModel     json.RawMessage `json:"view_model"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// ReportLog records one report request
type ReportLog struct {
	ID          int64     `json:"id"`
	RequestTime time.Time `json:"request_time"`
	Kind        string    `json:"kind"`
	FromDate    string    `json:"from_date"`
	ToDate      string    `json:"to_date"`
	EntityCount int       `json:"entity_count"`
	RowCount    int       `json:"row_count"`
	DurationMs  int64     `json:"duration_ms"`
	Status      string    `json:"status"`
}

// LakeStats summarizes the log lake for health checks
type LakeStats struct {
	Rows     int64  `json:"rows"`
	Machines int64  `json:"machines"`
	MinDate  string `json:"min_date,omitempty"`
	MaxDate  string `json:"max_date,omitempty"`
}
