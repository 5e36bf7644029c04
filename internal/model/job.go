package model

import "time"

// Job represents a background video-generation job in the system
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	Result      []byte     `json:"result,omitempty"` // VideoResult list as JSON
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Job status
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// VideoJobPayload contains the data for a video generation job
type VideoJobPayload struct {
	JobID string `json:"jobId"`
}
