package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/quickmv/videoworker/internal/model"
)

const (
	// AnalysisSampleRate is the fixed mono sample rate audio is decoded to
	AnalysisSampleRate = 22050

	frameSize = 1024
	hopSize   = 512
)

// BeatAnalyzer derives tempo and a beat timeline from an audio file.
// Analysis is a pure function of the input file.
type BeatAnalyzer struct {
	sampleRate int
}

func NewBeatAnalyzer() *BeatAnalyzer {
	return &BeatAnalyzer{sampleRate: AnalysisSampleRate}
}

// Analyze decodes the audio file and runs beat tracking over its onset
// envelope. Zero or one detected beat is a valid, non-error outcome;
// a decode failure is fatal for the track.
func (a *BeatAnalyzer) Analyze(ctx context.Context, audioPath string) (*model.BeatTimeline, error) {
	samples, err := a.decodePCM(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio %s: %w", audioPath, err)
	}

	duration := float64(len(samples)) / float64(a.sampleRate)
	frameRate := float64(a.sampleRate) / float64(hopSize)

	env := OnsetEnvelope(samples)
	tempo := EstimateTempo(env, frameRate)
	beatFrames := TrackBeats(env, frameRate, tempo)

	beatTimes := make([]float64, 0, len(beatFrames))
	for _, f := range beatFrames {
		t := float64(f*hopSize) / float64(a.sampleRate)
		if t > duration {
			t = duration
		}
		beatTimes = append(beatTimes, t)
	}

	timeline := &model.BeatTimeline{
		Tempo:     tempo,
		BeatTimes: beatTimes,
		Duration:  duration,
	}
	if err := timeline.Validate(); err != nil {
		return nil, fmt.Errorf("beat tracking produced invalid timeline: %w", err)
	}
	return timeline, nil
}

// decodePCM decodes any ffmpeg-supported audio file to mono float64
// samples at the analysis sample rate.
func (a *BeatAnalyzer) decodePCM(ctx context.Context, audioPath string) ([]float64, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", audioPath,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(a.sampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	data, readErr := io.ReadAll(bufio.NewReader(stdout))
	waitErr := cmd.Wait()
	if waitErr != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %v: %s", waitErr, stderr.String())
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read decoded audio: %w", readErr)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	samples := make([]float64, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float64(s) / 32768.0
	}
	return samples, nil
}
