package store

import (
	"context"
	"errors"

	"github.com/quickmv/videoworker/internal/model"
)

// ErrNotFound is returned when a job or session record does not exist.
var ErrNotFound = errors.New("not found")

// JobStore persists job status records and exposes the prior-phase data
// the orchestrator consumes. The job record keyed by job ID has a single
// writer (the orchestrator); writes are whole-value overwrites.
type JobStore interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	// Prior-phase reads (produced by external collaborators, read-only here)
	GetPreferences(ctx context.Context, jobID string) (*model.Preferences, error)
	GetTracks(ctx context.Context, jobID string) ([]model.TrackDescriptor, error)

	// Aggregate result list written once on job completion
	SetResults(ctx context.Context, jobID string, results []model.VideoResult) error

	// SeedSession writes preferences and track descriptors for a session.
	// Used by the enqueue CLI to stand in for the upstream phases.
	SeedSession(ctx context.Context, jobID string, prefs *model.Preferences, tracks []model.TrackDescriptor) error
}
