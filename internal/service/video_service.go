package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/quickmv/videoworker/internal/model"
	"github.com/quickmv/videoworker/internal/store"
)

const TaskTypeVideo = "video:process"

// Enqueuer is the slice of asynq.Client the service uses, substitutable
// in tests.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// VideoService handles video job management
type VideoService struct {
	store       store.JobStore
	asynqClient Enqueuer
}

func NewVideoService(jobStore store.JobStore, asynqClient Enqueuer) *VideoService {
	return &VideoService{
		store:       jobStore,
		asynqClient: asynqClient,
	}
}

// StartVideo creates the job record and queues the video generation
// task. The session must already hold prior-phase track descriptors.
// At most one orchestrator run per job ID is allowed, so the task is
// enqueued without retries.
func (s *VideoService) StartVideo(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		jobID = uuid.New().String()
	}

	if _, err := s.store.GetTracks(ctx, jobID); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("no tracks for session %s: music phase has not completed", jobID)
		}
		return nil, fmt.Errorf("failed to read tracks: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusProcessing,
		Progress:  0,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newVideoTask(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("video"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return job, nil
}

// GetStatus returns the current status of a video job
func (s *VideoService) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}
	return job, nil
}

// GetResult returns the result list of a completed video job
func (s *VideoService) GetResult(ctx context.Context, jobID string) ([]model.VideoResult, error) {
	job, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusCompleted {
		return nil, fmt.Errorf("job not completed")
	}

	var results []model.VideoResult
	if err := json.Unmarshal(job.Result, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return results, nil
}

func newVideoTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(model.VideoJobPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeVideo, data), nil
}
