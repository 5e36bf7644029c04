package assembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickmv/videoworker/internal/model"
)

const (
	// BeatsPerImage is the fixed ratio of detected beats each displayed
	// image spans
	BeatsPerImage = 4

	// MinViableImages is the floor below which assembly is refused
	MinViableImages = 4

	outputFPS = 24
)

// ErrTooFewImages is returned when the usable image count is below the
// minimum viable floor. Assembly is not attempted.
var ErrTooFewImages = errors.New("too few images for video assembly")

// VideoAssembler combines an ordered image set, a beat timeline, and an
// audio file into a single muxed video.
type VideoAssembler struct {
	httpClient *http.Client
}

func NewVideoAssembler() *VideoAssembler {
	return &VideoAssembler{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ImageDuration computes the on-screen duration of each image. With two
// or more beats, each image spans BeatsPerImage mean beat intervals;
// otherwise the audio duration is divided evenly across the images.
func ImageDuration(timeline *model.BeatTimeline, imageCount int) float64 {
	if imageCount <= 0 {
		return 0
	}

	beats := timeline.BeatTimes
	if len(beats) >= 2 {
		meanInterval := (beats[len(beats)-1] - beats[0]) / float64(len(beats)-1)
		return meanInterval * BeatsPerImage
	}
	return timeline.Duration / float64(imageCount)
}

// Assemble fetches the image bytes into temporary storage, times each
// image to the beat grid, and muxes images and audio into outputPath.
// The caller filters out failure markers beforehand. All intermediate
// resources are released on every exit path, and no partial write is
// left at outputPath on failure.
func (a *VideoAssembler) Assemble(ctx context.Context, images []model.GeneratedImage, audioPath string, timeline *model.BeatTimeline, outputPath string) (*model.VideoArtifact, error) {
	if len(images) < MinViableImages {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooFewImages, len(images), MinViableImages)
	}

	tempDir, err := os.MkdirTemp("", "qmv-assemble-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	localFiles := make([]string, 0, len(images))
	for i, img := range images {
		path := filepath.Join(tempDir, fmt.Sprintf("img_%03d.jpg", i))
		if err := a.fetchImage(ctx, img, path); err != nil {
			log.Printf("[Assembler] failed to fetch image %d: %v", i, err)
			continue
		}
		localFiles = append(localFiles, path)
	}

	if len(localFiles) < MinViableImages {
		return nil, fmt.Errorf("too few images after download: %d/%d usable", len(localFiles), len(images))
	}

	imageDuration := ImageDuration(timeline, len(localFiles))
	if imageDuration <= 0 {
		return nil, fmt.Errorf("non-positive image duration %.4f (audio duration %.4f)", imageDuration, timeline.Duration)
	}

	listPath := filepath.Join(tempDir, "frames.txt")
	if err := writeConcatList(listPath, localFiles, imageDuration); err != nil {
		return nil, err
	}

	if err := a.mux(ctx, listPath, audioPath, outputPath); err != nil {
		return nil, err
	}

	return &model.VideoArtifact{
		LocalPath:  outputPath,
		Duration:   timeline.Duration,
		ImagesUsed: len(localFiles),
		Tempo:      timeline.Tempo,
	}, nil
}

// fetchImage materializes one generated image into a local file, from
// its URL or inline payload.
func (a *VideoAssembler) fetchImage(ctx context.Context, img model.GeneratedImage, path string) error {
	if len(img.Data) > 0 {
		return os.WriteFile(path, img.Data, 0644)
	}
	if img.URL == "" {
		return fmt.Errorf("image has neither URL nor payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", img.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeConcatList writes an ffmpeg concat demuxer list holding each image
// for the computed duration. The final entry is repeated without a
// duration, per the demuxer's convention.
func writeConcatList(listPath string, files []string, imageDuration float64) error {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "file '%s'\n", f)
		fmt.Fprintf(&b, "duration %.6f\n", imageDuration)
	}
	fmt.Fprintf(&b, "file '%s'\n", files[len(files)-1])

	if err := os.WriteFile(listPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// mux combines the image track and the audio track at a fixed frame rate
// and codec. Output is written to a .part file and renamed only on
// success.
func (a *VideoAssembler) mux(ctx context.Context, listPath, audioPath, outputPath string) error {
	partPath := outputPath + ".part"

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-r", fmt.Sprintf("%d", outputFPS),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		"-f", "mp4",
		partPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(partPath)
		return fmt.Errorf("ffmpeg mux failed: %w\nOutput: %s", err, string(output))
	}

	if err := os.Rename(partPath, outputPath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to finalize %s: %w", outputPath, err)
	}
	return nil
}
