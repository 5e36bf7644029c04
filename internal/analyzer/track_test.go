package analyzer

import (
	"math"
	"testing"
)

// clickTrain synthesizes audio with a short burst every interval seconds.
func clickTrain(durationSec, intervalSec float64) []float64 {
	n := int(durationSec * AnalysisSampleRate)
	samples := make([]float64, n)
	step := int(intervalSec * AnalysisSampleRate)
	for start := 0; start < n; start += step {
		for i := 0; i < 512 && start+i < n; i++ {
			samples[start+i] = 0.9
		}
	}
	return samples
}

func envFrameRate() float64 {
	return float64(AnalysisSampleRate) / float64(hopSize)
}

func TestEstimateTempoClickTrain(t *testing.T) {
	samples := clickTrain(12.0, 0.5) // 120 BPM
	env := OnsetEnvelope(samples)
	if env == nil {
		t.Fatal("expected non-nil envelope")
	}

	tempo := EstimateTempo(env, envFrameRate())
	if math.Abs(tempo-120.0) > 8.0 {
		t.Errorf("tempo = %.2f, want 120 +/- 8", tempo)
	}
}

func TestTrackBeatsSpacing(t *testing.T) {
	samples := clickTrain(12.0, 0.5)
	env := OnsetEnvelope(samples)
	fr := envFrameRate()

	tempo := EstimateTempo(env, fr)
	beats := TrackBeats(env, fr, tempo)
	if len(beats) < 8 {
		t.Fatalf("got %d beats, want at least 8", len(beats))
	}

	var sum float64
	for i := 1; i < len(beats); i++ {
		if beats[i] <= beats[i-1] {
			t.Fatalf("beat frames not increasing at %d: %d <= %d", i, beats[i], beats[i-1])
		}
		sum += float64(beats[i]-beats[i-1]) / fr
	}
	mean := sum / float64(len(beats)-1)
	if mean < 0.4 || mean > 0.6 {
		t.Errorf("mean beat interval = %.3fs, want about 0.5s", mean)
	}
}

func TestOnsetEnvelopeSilence(t *testing.T) {
	samples := make([]float64, 8*AnalysisSampleRate)
	env := OnsetEnvelope(samples)
	if env == nil {
		t.Fatal("expected non-nil envelope for silent input")
	}
	for i, v := range env {
		if v != 0 {
			t.Fatalf("env[%d] = %f, want 0 for silence", i, v)
		}
	}

	if tempo := EstimateTempo(env, envFrameRate()); tempo != 0 {
		t.Errorf("tempo for silence = %.2f, want 0", tempo)
	}
	if beats := TrackBeats(env, envFrameRate(), 120); len(beats) != 0 {
		t.Errorf("got %d beats for silence, want 0", len(beats))
	}
}

func TestOnsetEnvelopeTooShort(t *testing.T) {
	if env := OnsetEnvelope(make([]float64, frameSize-1)); env != nil {
		t.Errorf("expected nil envelope for input shorter than one frame")
	}
}

func TestEstimateTempoEmptyEnvelope(t *testing.T) {
	if tempo := EstimateTempo(nil, envFrameRate()); tempo != 0 {
		t.Errorf("tempo = %.2f, want 0 for empty envelope", tempo)
	}
}

func TestTrackBeatsInvalidTempo(t *testing.T) {
	env := OnsetEnvelope(clickTrain(6.0, 0.5))
	if beats := TrackBeats(env, envFrameRate(), 0); beats != nil {
		t.Errorf("expected no beats for zero tempo")
	}
	if beats := TrackBeats(env, envFrameRate(), -60); beats != nil {
		t.Errorf("expected no beats for negative tempo")
	}
}
