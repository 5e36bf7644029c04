package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickmv/videoworker/internal/model"
)

const recordTTL = 24 * time.Hour

// RedisJobStore implements JobStore on Redis. Records are JSON values at
// namespaced keys; lifecycle (expiry) is owned here, not by the worker.
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

func jobKey(jobID string) string         { return fmt.Sprintf("job:%s", jobID) }
func preferencesKey(jobID string) string { return fmt.Sprintf("session:%s:preferences", jobID) }
func tracksKey(jobID string) string      { return fmt.Sprintf("session:%s:tracks", jobID) }
func resultsKey(jobID string) string     { return fmt.Sprintf("session:%s:results", jobID) }

func (s *RedisJobStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, recordTTL).Err()
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisJobStore) GetPreferences(ctx context.Context, jobID string) (*model.Preferences, error) {
	data, err := s.redis.Get(ctx, preferencesKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var prefs model.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return &prefs, nil
}

func (s *RedisJobStore) GetTracks(ctx context.Context, jobID string) ([]model.TrackDescriptor, error) {
	data, err := s.redis.Get(ctx, tracksKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var tracks []model.TrackDescriptor
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracks: %w", err)
	}
	return tracks, nil
}

func (s *RedisJobStore) SetResults(ctx context.Context, jobID string, results []model.VideoResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return s.redis.Set(ctx, resultsKey(jobID), data, recordTTL).Err()
}

func (s *RedisJobStore) SeedSession(ctx context.Context, jobID string, prefs *model.Preferences, tracks []model.TrackDescriptor) error {
	prefData, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	trackData, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal tracks: %w", err)
	}

	if err := s.redis.Set(ctx, preferencesKey(jobID), prefData, recordTTL).Err(); err != nil {
		return err
	}
	return s.redis.Set(ctx, tracksKey(jobID), trackData, recordTTL).Err()
}
