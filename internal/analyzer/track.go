package analyzer

import "math"

const (
	minBPM = 30.0
	maxBPM = 240.0

	// tightness penalizes deviation from the estimated beat period in the
	// dynamic-programming pass
	tightness = 100.0

	silenceFloor = 1e-8
)

// OnsetEnvelope computes a normalized onset-strength envelope: the
// half-wave rectified first difference of per-frame log energy.
func OnsetEnvelope(samples []float64) []float64 {
	if len(samples) < frameSize {
		return nil
	}

	numFrames := (len(samples)-frameSize)/hopSize + 1
	logEnergy := make([]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		var sum float64
		offset := t * hopSize
		for i := 0; i < frameSize; i++ {
			s := samples[offset+i]
			sum += s * s
		}
		logEnergy[t] = math.Log10(sum/frameSize + 1e-10)
	}

	env := make([]float64, numFrames)
	var max float64
	for t := 1; t < numFrames; t++ {
		d := logEnergy[t] - logEnergy[t-1]
		if d > 0 {
			env[t] = d
			if d > max {
				max = d
			}
		}
	}

	if max < silenceFloor {
		return make([]float64, numFrames)
	}
	for t := range env {
		env[t] /= max
	}
	return env
}

// EstimateTempo picks the global tempo from the autocorrelation of the
// onset envelope, biased toward 120 BPM with a log-gaussian prior.
// Returns 0 for a silent or too-short envelope.
func EstimateTempo(env []float64, frameRate float64) float64 {
	if len(env) == 0 {
		return 0
	}

	var mean, activity float64
	for _, v := range env {
		mean += v
		activity += v * v
	}
	mean /= float64(len(env))
	if activity < silenceFloor {
		return 0
	}

	minLag := int(frameRate * 60.0 / maxBPM)
	maxLag := int(frameRate * 60.0 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if maxLag < minLag {
		return 0
	}

	bestScore := math.Inf(-1)
	bestLag := 0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for t := lag; t < len(env); t++ {
			corr += (env[t] - mean) * (env[t-lag] - mean)
		}
		corr /= float64(len(env) - lag)

		bpm := 60.0 * frameRate / float64(lag)
		bias := math.Exp(-0.5 * math.Pow(math.Log2(bpm/120.0), 2))
		score := corr * bias
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	if bestLag == 0 || bestScore <= 0 {
		return 0
	}
	return 60.0 * frameRate / float64(bestLag)
}

// TrackBeats runs a dynamic-programming beat-tracking pass over the onset
// envelope and returns the chosen beat frame indices in increasing order.
// The cumulative score rewards onset strength and penalizes the squared
// log deviation of each inter-beat interval from the tempo period.
func TrackBeats(env []float64, frameRate, bpm float64) []int {
	if bpm <= 0 || len(env) == 0 {
		return nil
	}
	period := 60.0 / bpm * frameRate
	if period < 1 {
		return nil
	}

	var maxEnv float64
	for _, v := range env {
		if v > maxEnv {
			maxEnv = v
		}
	}
	if maxEnv < silenceFloor {
		return nil
	}

	n := len(env)
	score := make([]float64, n)
	backlink := make([]int, n)

	for t := 0; t < n; t++ {
		backlink[t] = -1
		score[t] = env[t]

		hi := t - int(math.Round(period/2))
		lo := t - int(math.Round(2*period))
		if hi < 0 {
			continue
		}
		if lo < 0 {
			lo = 0
		}

		best := math.Inf(-1)
		bestIdx := -1
		for p := lo; p <= hi; p++ {
			interval := float64(t - p)
			penalty := -tightness * math.Pow(math.Log(interval/period), 2)
			if s := score[p] + penalty; s > best {
				best = s
				bestIdx = p
			}
		}
		if bestIdx >= 0 && best > 0 {
			score[t] = env[t] + best
			backlink[t] = bestIdx
		}
	}

	// The chain ends at the best-scoring frame within the final period.
	start := n - int(math.Round(period))
	if start < 0 {
		start = 0
	}
	bestEnd := start
	for t := start; t < n; t++ {
		if score[t] > score[bestEnd] {
			bestEnd = t
		}
	}

	var beats []int
	for t := bestEnd; t >= 0; {
		beats = append(beats, t)
		prev := backlink[t]
		if prev < 0 {
			break
		}
		t = prev
	}
	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}

	return trimWeakBeats(env, beats)
}

// trimWeakBeats drops leading and trailing beats that fall on near-silent
// frames; the DP pass can extend the chain into silence at either edge.
func trimWeakBeats(env []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	var peak float64
	for _, b := range beats {
		if env[b] > peak {
			peak = env[b]
		}
	}
	threshold := 0.1 * peak

	lo := 0
	for lo < len(beats) && env[beats[lo]] < threshold {
		lo++
	}
	hi := len(beats)
	for hi > lo && env[beats[hi-1]] < threshold {
		hi--
	}
	return beats[lo:hi]
}
