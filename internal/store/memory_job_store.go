package store

import (
	"context"
	"sync"

	"github.com/quickmv/videoworker/internal/model"
)

// MemoryJobStore implements JobStore in process memory. Used by tests and
// local development without Redis.
type MemoryJobStore struct {
	mu      sync.RWMutex
	jobs    map[string]model.Job
	prefs   map[string]model.Preferences
	tracks  map[string][]model.TrackDescriptor
	results map[string][]model.VideoResult
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:    make(map[string]model.Job),
		prefs:   make(map[string]model.Preferences),
		tracks:  make(map[string][]model.TrackDescriptor),
		results: make(map[string][]model.VideoResult),
	}
}

func (s *MemoryJobStore) SaveJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryJobStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (s *MemoryJobStore) GetPreferences(ctx context.Context, jobID string) (*model.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.prefs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &prefs, nil
}

func (s *MemoryJobStore) GetTracks(ctx context.Context, jobID string) ([]model.TrackDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracks, ok := s.tracks[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.TrackDescriptor, len(tracks))
	copy(out, tracks)
	return out, nil
}

func (s *MemoryJobStore) SetResults(ctx context.Context, jobID string, results []model.VideoResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[jobID] = results
	return nil
}

// Results returns the persisted result list, for test assertions.
func (s *MemoryJobStore) Results(jobID string) ([]model.VideoResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[jobID]
	return results, ok
}

func (s *MemoryJobStore) SeedSession(ctx context.Context, jobID string, prefs *model.Preferences, tracks []model.TrackDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefs != nil {
		s.prefs[jobID] = *prefs
	}
	s.tracks[jobID] = tracks
	return nil
}
