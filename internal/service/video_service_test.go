package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quickmv/videoworker/internal/model"
	"github.com/quickmv/videoworker/internal/store"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func seedTracks(t *testing.T, s store.JobStore, jobID string) {
	t.Helper()
	tracks := []model.TrackDescriptor{{ID: "t1", Key: "music/t1.mp3", Duration: 30}}
	if err := s.SeedSession(context.Background(), jobID, nil, tracks); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestStartVideo(t *testing.T) {
	s := store.NewMemoryJobStore()
	seedTracks(t, s, "job-1")
	enqueuer := &fakeEnqueuer{}
	svc := NewVideoService(s, enqueuer)

	job, err := svc.StartVideo(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("StartVideo: %v", err)
	}
	if job.ID != "job-1" || job.Status != model.JobStatusProcessing || job.Progress != 0 {
		t.Errorf("job = %+v, want processing at 0%%", job)
	}

	saved, err := s.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if saved.Status != model.JobStatusProcessing {
		t.Errorf("saved status = %s, want processing", saved.Status)
	}

	if len(enqueuer.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enqueuer.tasks))
	}
	task := enqueuer.tasks[0]
	if task.Type() != TaskTypeVideo {
		t.Errorf("task type = %s, want %s", task.Type(), TaskTypeVideo)
	}
	var payload model.VideoJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.JobID != "job-1" {
		t.Errorf("payload job ID = %s, want job-1", payload.JobID)
	}
}

func TestStartVideoGeneratesJobID(t *testing.T) {
	s := store.NewMemoryJobStore()
	svc := NewVideoService(s, &fakeEnqueuer{})

	// no tracks exist for a fresh random ID
	_, err := svc.StartVideo(context.Background(), "")
	if err == nil {
		t.Fatal("expected error without seeded tracks")
	}
	if !strings.Contains(err.Error(), "music phase has not completed") {
		t.Errorf("err = %v, want missing-tracks failure", err)
	}
}

func TestStartVideoWithoutTracks(t *testing.T) {
	s := store.NewMemoryJobStore()
	enqueuer := &fakeEnqueuer{}
	svc := NewVideoService(s, enqueuer)

	if _, err := svc.StartVideo(context.Background(), "job-2"); err == nil {
		t.Fatal("expected error without seeded tracks")
	}
	if len(enqueuer.tasks) != 0 {
		t.Error("no task should be enqueued when tracks are missing")
	}
	if _, err := s.GetJob(context.Background(), "job-2"); err != store.ErrNotFound {
		t.Error("no job record should be created when tracks are missing")
	}
}

func TestGetStatusNotFound(t *testing.T) {
	svc := NewVideoService(store.NewMemoryJobStore(), &fakeEnqueuer{})
	if _, err := svc.GetStatus(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestGetResult(t *testing.T) {
	s := store.NewMemoryJobStore()
	svc := NewVideoService(s, &fakeEnqueuer{})

	want := []model.VideoResult{
		{ID: "r1", Key: "videos/job-3/video_job-3_1.mp4", URL: "https://cdn.example/x", Duration: 30, ImagesUsed: 10, Tempo: 120},
	}
	resultBytes, _ := json.Marshal(want)
	now := time.Now()
	job := &model.Job{
		ID:          "job-3",
		Status:      model.JobStatusCompleted,
		Progress:    100,
		Result:      resultBytes,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := svc.GetResult(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("results = %+v, want %+v", got, want)
	}
}

func TestGetResultNotCompleted(t *testing.T) {
	s := store.NewMemoryJobStore()
	job := &model.Job{ID: "job-4", Status: model.JobStatusProcessing, Progress: 40, CreatedAt: time.Now()}
	if err := s.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	svc := NewVideoService(s, &fakeEnqueuer{})
	if _, err := svc.GetResult(context.Background(), "job-4"); err == nil {
		t.Fatal("expected error for incomplete job")
	}
}
