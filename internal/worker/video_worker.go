package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/quickmv/videoworker/internal/assembler"
	"github.com/quickmv/videoworker/internal/client"
	"github.com/quickmv/videoworker/internal/model"
	"github.com/quickmv/videoworker/internal/notify"
	"github.com/quickmv/videoworker/internal/store"
)

// Analyzer derives a beat timeline from an audio file
type Analyzer interface {
	Analyze(ctx context.Context, audioPath string) (*model.BeatTimeline, error)
}

// Assembler muxes images and audio into one video file
type Assembler interface {
	Assemble(ctx context.Context, images []model.GeneratedImage, audioPath string, timeline *model.BeatTimeline, outputPath string) (*model.VideoArtifact, error)
}

// VideoWorker drives the per-track video generation pipeline for one job.
// Tracks are processed strictly sequentially; the only internal
// parallelism is the image batch fan-out inside the image client.
type VideoWorker struct {
	store     store.JobStore
	storage   client.StorageClient
	analyzer  Analyzer
	images    client.ImageGenerator
	assembler Assembler
	publisher notify.Publisher
	validate  *validator.Validate

	imageWidth  int
	imageHeight int
}

// NewVideoWorker creates a new video worker with its collaborators
// injected explicitly.
func NewVideoWorker(
	jobStore store.JobStore,
	storageClient client.StorageClient,
	beatAnalyzer Analyzer,
	imageClient client.ImageGenerator,
	videoAssembler Assembler,
	publisher notify.Publisher,
	imageWidth, imageHeight int,
) *VideoWorker {
	return &VideoWorker{
		store:       jobStore,
		storage:     storageClient,
		analyzer:    beatAnalyzer,
		images:      imageClient,
		assembler:   videoAssembler,
		publisher:   publisher,
		validate:    validator.New(),
		imageWidth:  imageWidth,
		imageHeight: imageHeight,
	}
}

// ProcessTask handles video generation task processing
func (w *VideoWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.VideoJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID
	log.Printf("Starting video job: %s", jobID)

	if err := w.process(ctx, jobID); err != nil {
		log.Printf("Video job %s failed: %v", jobID, err)
		w.failJob(ctx, jobID, err.Error())
		return err
	}

	log.Printf("Video job %s completed", jobID)
	return nil
}

func (w *VideoWorker) process(ctx context.Context, jobID string) error {
	w.setProgress(ctx, jobID, 0)

	prefs, err := w.store.GetPreferences(ctx, jobID)
	if err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("no preferences found for session")
		}
		return fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := w.validate.Struct(prefs); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}

	tracks, err := w.store.GetTracks(ctx, jobID)
	if err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("no music tracks found from previous phase")
		}
		return fmt.Errorf("failed to read tracks: %w", err)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("no music tracks found from previous phase")
	}

	results := make([]model.VideoResult, 0, len(tracks))
	for i, track := range tracks {
		log.Printf("Job %s: processing video %d/%d", jobID, i+1, len(tracks))
		w.setProgress(ctx, jobID, i*100/len(tracks))

		result, err := w.processTrack(ctx, jobID, i, prefs, track)
		if err != nil {
			return fmt.Errorf("track %d/%d: %w", i+1, len(tracks), err)
		}
		results = append(results, *result)
	}

	if err := w.store.SetResults(ctx, jobID, results); err != nil {
		return fmt.Errorf("failed to persist results: %w", err)
	}
	w.completeJob(ctx, jobID, results)

	event := model.CompletionEvent{JobID: jobID, VideoCount: len(results)}
	if err := w.publisher.PublishCompletion(ctx, event); err != nil {
		// Job state is already terminal; the event is at-most-once.
		log.Printf("Job %s: failed to publish completion: %v", jobID, err)
	}
	return nil
}

// processTrack runs one track through the full pipeline: download,
// analysis, image generation, assembly, upload.
func (w *VideoWorker) processTrack(ctx context.Context, jobID string, index int, prefs *model.Preferences, track model.TrackDescriptor) (*model.VideoResult, error) {
	audioFile, err := os.CreateTemp("", "qmv-audio-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	audioPath := audioFile.Name()
	audioFile.Close()
	defer os.Remove(audioPath)

	if err := w.storage.Download(ctx, track.Key, audioPath); err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}

	timeline, err := w.analyzer.Analyze(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("audio analysis failed: %w", err)
	}

	numImages := RequiredImageCount(timeline.TotalBeats())
	prompts := BuildScenePrompts(prefs.Video, numImages)

	images, err := w.images.GenerateBatch(ctx, prompts, w.imageWidth, w.imageHeight)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	usable := make([]model.GeneratedImage, 0, len(images))
	for _, img := range images {
		if !img.Failed {
			usable = append(usable, img)
		}
	}
	if len(usable) < assembler.MinViableImages {
		return nil, fmt.Errorf("too few images generated: %d/%d", len(usable), numImages)
	}

	videoName := fmt.Sprintf("video_%s_%d.mp4", jobID, index+1)
	outputPath := filepath.Join(os.TempDir(), videoName)
	defer os.Remove(outputPath)

	artifact, err := w.assembler.Assemble(ctx, usable, audioPath, timeline, outputPath)
	if err != nil {
		return nil, fmt.Errorf("video assembly failed: %w", err)
	}

	key := fmt.Sprintf("videos/%s/%s", jobID, videoName)
	url, err := w.storage.Upload(ctx, outputPath, key, "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	return &model.VideoResult{
		ID:         uuid.New().String(),
		Key:        key,
		URL:        url,
		Duration:   artifact.Duration,
		ImagesUsed: artifact.ImagesUsed,
		Tempo:      artifact.Tempo,
	}, nil
}

// RequiredImageCount returns how many images a track needs: one per
// BeatsPerImage beats, with a floor of 8.
func RequiredImageCount(totalBeats int) int {
	n := totalBeats / assembler.BeatsPerImage
	if n < 8 {
		return 8
	}
	return n
}

// BuildScenePrompts derives one ordered prompt per scene from the style
// preference, rotating through wide, close-up, and medium shots.
func BuildScenePrompts(prefs model.VideoPreferences, count int) []model.ImagePrompt {
	base := prefs.StylePrompt()
	shots := []string{"wide shot", "close-up", "medium shot"}

	prompts := make([]model.ImagePrompt, count)
	for i := 0; i < count; i++ {
		text := fmt.Sprintf("%s, scene %d, high quality, 4K, professional, %s", base, i+1, shots[i%len(shots)])
		prompts[i] = model.ImagePrompt{Scene: i + 1, Text: text}
	}
	return prompts
}

// setProgress moves the job forward. Progress never decreases and
// terminal states are never overwritten.
func (w *VideoWorker) setProgress(ctx context.Context, jobID string, progress int) {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		if err != store.ErrNotFound {
			log.Printf("Failed to get job %s: %v", jobID, err)
			return
		}
		job = &model.Job{ID: jobID, CreatedAt: time.Now()}
	}

	if job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusProcessing
	if progress > job.Progress {
		job.Progress = progress
	}
	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}

	if err := w.store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to update progress for job %s: %v", jobID, err)
	}
}

func (w *VideoWorker) completeJob(ctx context.Context, jobID string, results []model.VideoResult) {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		log.Printf("Failed to get job %s: %v", jobID, err)
		return
	}

	resultBytes, _ := json.Marshal(results)
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	if err := w.store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to mark job %s completed: %v", jobID, err)
	}
}

func (w *VideoWorker) failJob(ctx context.Context, jobID, errMsg string) {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		if err != store.ErrNotFound {
			log.Printf("Failed to get job %s: %v", jobID, err)
			return
		}
		job = &model.Job{ID: jobID, CreatedAt: time.Now()}
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	if err := w.store.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to mark job %s failed: %v", jobID, err)
	}
}
