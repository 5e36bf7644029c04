package model

import "fmt"

// Preferences holds the user preferences collected by the upstream
// preference phase. Only the video section is consumed here.
type Preferences struct {
	Video VideoPreferences `json:"video"`
}

// VideoPreferences describes the requested look of the generated video
type VideoPreferences struct {
	Style       string `json:"style" validate:"omitempty,max=200"`
	ColorScheme string `json:"colorScheme,omitempty" validate:"omitempty,oneof=vibrant pastel dark monochrome neon warm cool earth_tones rainbow"`
	Resolution  string `json:"resolution,omitempty" validate:"omitempty,oneof=720p 1080p 4k"`
}

// StylePrompt returns the base prompt text for image generation,
// falling back to a sensible default when no style was chosen.
func (p VideoPreferences) StylePrompt() string {
	style := p.Style
	if style == "" {
		style = "cinematic music video"
	}
	if p.ColorScheme != "" {
		style = fmt.Sprintf("%s, %s colors", style, p.ColorScheme)
	}
	return style
}

// TrackDescriptor references an audio track produced by the upstream
// music-generation phase. Consumed read-only.
type TrackDescriptor struct {
	ID       string  `json:"id"`
	Key      string  `json:"key"` // object key in the artifact store
	Duration float64 `json:"duration"`
}

// BeatTimeline is the rhythmic analysis of one audio track.
type BeatTimeline struct {
	Tempo     float64   `json:"tempo"` // beats per minute
	BeatTimes []float64 `json:"beatTimes"`
	Duration  float64   `json:"duration"` // seconds
}

// TotalBeats returns the number of detected beats.
func (t *BeatTimeline) TotalBeats() int {
	return len(t.BeatTimes)
}

// Validate checks the timeline invariants: timestamps are non-decreasing,
// the first is non-negative, and none exceeds the total duration.
func (t *BeatTimeline) Validate() error {
	for i, bt := range t.BeatTimes {
		if bt < 0 {
			return fmt.Errorf("beat %d is negative: %f", i, bt)
		}
		if bt > t.Duration {
			return fmt.Errorf("beat %d exceeds duration %.3f: %f", i, t.Duration, bt)
		}
		if i > 0 && bt < t.BeatTimes[i-1] {
			return fmt.Errorf("beat %d decreases: %f < %f", i, bt, t.BeatTimes[i-1])
		}
	}
	return nil
}

// ImagePrompt is one scene's prompt. Ordering is significant and is
// preserved through batch generation.
type ImagePrompt struct {
	Scene int    `json:"scene"`
	Text  string `json:"text"`
}

// GeneratedImage is positionally correlated to its originating prompt.
// Exactly one of URL or Data is set on success; Failed marks a
// per-request failure without aborting the batch.
type GeneratedImage struct {
	Scene  int    `json:"scene"`
	URL    string `json:"url,omitempty"`
	Data   []byte `json:"-"`
	Failed bool   `json:"failed,omitempty"`
	Err    string `json:"error,omitempty"`
}

// VideoArtifact describes one assembled video file. Never mutated after
// creation.
type VideoArtifact struct {
	LocalPath  string  `json:"localPath"`
	Duration   float64 `json:"duration"`
	ImagesUsed int     `json:"imagesUsed"`
	Tempo      float64 `json:"tempo"`
}

// VideoResult is the per-track result descriptor persisted on completion
type VideoResult struct {
	ID         string  `json:"id"`
	Key        string  `json:"key"`
	URL        string  `json:"url"`
	Duration   float64 `json:"duration"`
	ImagesUsed int     `json:"imagesUsed"`
	Tempo      float64 `json:"tempo"`
}

// CompletionEvent is published once per completed job
type CompletionEvent struct {
	JobID      string `json:"jobId"`
	VideoCount int    `json:"videoCount"`
}
