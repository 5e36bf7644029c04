package main

import (
	"context"
	"log"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/quickmv/videoworker/internal/analyzer"
	"github.com/quickmv/videoworker/internal/assembler"
	"github.com/quickmv/videoworker/internal/client"
	"github.com/quickmv/videoworker/internal/config"
	"github.com/quickmv/videoworker/internal/notify"
	"github.com/quickmv/videoworker/internal/service"
	"github.com/quickmv/videoworker/internal/store"
	"github.com/quickmv/videoworker/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize external clients. Missing credentials are fatal here:
	// the worker cannot produce videos without them.
	imageClient, err := client.NewImageClient(&cfg.Images)
	if err != nil {
		log.Fatalf("Image client not initialized: %v", err)
	}

	storageClient, err := client.NewR2Client(&cfg.Storage)
	if err != nil {
		log.Fatalf("Storage client not initialized: %v", err)
	}

	// Initialize pipeline components
	jobStore := store.NewRedisJobStore(redisClient)
	publisher := notify.NewRedisPublisher(redisClient)
	beatAnalyzer := analyzer.NewBeatAnalyzer()
	videoAssembler := assembler.NewVideoAssembler()

	videoWorker := worker.NewVideoWorker(
		jobStore,
		storageClient,
		beatAnalyzer,
		imageClient,
		videoAssembler,
		publisher,
		cfg.Images.Width,
		cfg.Images.Height,
	)

	// Start Asynq worker server. One invocation processes one job to
	// completion or failure; jobs run sequentially inside each handler.
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"video": 10,
			},
			LogLevel: asynqLogLevel(cfg.Server.LogLevel),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeVideo, videoWorker.ProcessTask)

	log.Printf("Video worker starting (queue=video concurrency=%d)", cfg.Worker.Concurrency)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Asynq worker error: %v", err)
	}
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch {
	case strings.EqualFold(level, "debug"):
		return asynq.DebugLevel
	case strings.EqualFold(level, "warn"):
		return asynq.WarnLevel
	case strings.EqualFold(level, "error"):
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
