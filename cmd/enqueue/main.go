// Command enqueue seeds a session with preferences and track descriptors,
// then submits a video job to the queue. It stands in for the upstream
// pipeline phases during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/quickmv/videoworker/internal/config"
	"github.com/quickmv/videoworker/internal/model"
	"github.com/quickmv/videoworker/internal/service"
	"github.com/quickmv/videoworker/internal/store"
)

func main() {
	var (
		jobID      = flag.String("job", "", "job ID (random UUID if empty)")
		trackKeys  = flag.String("tracks", "", "comma-separated storage keys of audio tracks")
		durations  = flag.String("durations", "", "comma-separated track durations in seconds")
		style      = flag.String("style", "cinematic", "video style prompt")
		colors     = flag.String("colors", "vibrant", "color scheme")
		resolution = flag.String("resolution", "1080p", "output resolution")
	)
	flag.Parse()

	if *trackKeys == "" {
		log.Fatal("at least one -tracks key is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	keys := strings.Split(*trackKeys, ",")
	secs := strings.Split(*durations, ",")
	tracks := make([]model.TrackDescriptor, len(keys))
	for i, key := range keys {
		tracks[i] = model.TrackDescriptor{
			ID:  fmt.Sprintf("track-%d", i+1),
			Key: strings.TrimSpace(key),
		}
		if i < len(secs) && strings.TrimSpace(secs[i]) != "" {
			if _, err := fmt.Sscanf(strings.TrimSpace(secs[i]), "%f", &tracks[i].Duration); err != nil {
				log.Fatalf("Invalid duration %q: %v", secs[i], err)
			}
		}
	}

	prefs := &model.Preferences{
		Video: model.VideoPreferences{
			Style:       *style,
			ColorScheme: *colors,
			Resolution:  *resolution,
		},
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	jobStore := store.NewRedisJobStore(redisClient)
	videoService := service.NewVideoService(jobStore, asynqClient)

	ctx := context.Background()
	id := *jobID
	if id == "" {
		id = uuid.New().String()
	}
	if err := jobStore.SeedSession(ctx, id, prefs, tracks); err != nil {
		log.Fatalf("Failed to seed session: %v", err)
	}

	job, err := videoService.StartVideo(ctx, id)
	if err != nil {
		log.Fatalf("Failed to enqueue video job: %v", err)
	}

	fmt.Printf("Enqueued video job %s (%d tracks)\n", job.ID, len(tracks))
}
