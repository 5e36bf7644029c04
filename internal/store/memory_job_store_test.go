package store

import (
	"context"
	"testing"
	"time"

	"github.com/quickmv/videoworker/internal/model"
)

func TestMemoryJobStoreNotFound(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	if _, err := s.GetJob(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetJob err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPreferences(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetPreferences err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetTracks(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetTracks err = %v, want ErrNotFound", err)
	}
}

func TestMemoryJobStoreRoundTrip(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	job := &model.Job{ID: "job-1", Status: model.JobStatusProcessing, Progress: 30, CreatedAt: time.Now()}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != model.JobStatusProcessing || got.Progress != 30 {
		t.Errorf("job = %+v, want processing at 30%%", got)
	}

	// later mutation of the returned copy must not leak into the store
	got.Progress = 99
	again, _ := s.GetJob(ctx, "job-1")
	if again.Progress != 30 {
		t.Errorf("stored job mutated through returned copy: %+v", again)
	}
}

func TestMemoryJobStoreSeedSession(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	prefs := &model.Preferences{Video: model.VideoPreferences{Style: "dreamy"}}
	tracks := []model.TrackDescriptor{
		{ID: "t1", Key: "music/t1.mp3", Duration: 30},
		{ID: "t2", Key: "music/t2.mp3", Duration: 45},
	}
	if err := s.SeedSession(ctx, "job-1", prefs, tracks); err != nil {
		t.Fatalf("SeedSession: %v", err)
	}

	gotPrefs, err := s.GetPreferences(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if gotPrefs.Video.Style != "dreamy" {
		t.Errorf("style = %q, want dreamy", gotPrefs.Video.Style)
	}

	gotTracks, err := s.GetTracks(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetTracks: %v", err)
	}
	if len(gotTracks) != 2 || gotTracks[1].Key != "music/t2.mp3" {
		t.Errorf("tracks = %+v", gotTracks)
	}
}

func TestMemoryJobStoreResults(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	if _, ok := s.Results("job-1"); ok {
		t.Fatal("expected no results before SetResults")
	}

	results := []model.VideoResult{{ID: "r1", Key: "videos/job-1/v1.mp4"}}
	if err := s.SetResults(ctx, "job-1", results); err != nil {
		t.Fatalf("SetResults: %v", err)
	}

	got, ok := s.Results("job-1")
	if !ok || len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("results = %+v, want the stored entry", got)
	}
}
