package audio

import (
	"math"
	"sort"
	"time"
)

// TrimConfig controls removal of the dead air that closes every utterance.
type TrimConfig struct {
	Window    time.Duration // scan window, 100ms
	Pad       time.Duration // audio kept after the last loud window, 200ms
	Threshold float64       // dB; windows below this are dead air
}

// DefaultTrimConfig returns the trim settings used by the transcriber
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		Window:    100 * time.Millisecond,
		Pad:       200 * time.Millisecond,
		Threshold: -50,
	}
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(d * time.Duration(sampleRate) / time.Second)
}

// TrimTrailingSilence scans backward in fixed windows for the last window at or
// above the threshold and cuts the signal Pad after it. An entirely quiet signal
// trims to zero length.
func TrimTrailingSilence(samples []float32, sampleRate int, cfg TrimConfig) []float32 {
	win := samplesFor(cfg.Window, sampleRate)
	if win <= 0 || len(samples) == 0 {
		return samples
	}
	pad := samplesFor(cfg.Pad, sampleRate)

	for end := len(samples); end > 0; end -= win {
		start := end - win
		if start < 0 {
			start = 0
		}
		if LoudnessFloat(samples[start:end]) >= cfg.Threshold {
			cut := end + pad
			if cut > len(samples) {
				cut = len(samples)
			}
			return samples[:cut]
		}
	}
	return samples[:0]
}

// noise gate parameters
const (
	noiseWindow     = 20 * time.Millisecond
	noisePercentile = 0.1
	noiseMargin     = 2.0 // windows within 6dB of the floor are attenuated
	noiseGain       = 0.1 // -20dB
)

// ReduceNoise estimates the noise floor from the quietest windows and attenuates
// every window that does not rise clearly above it. The input is not modified.
func ReduceNoise(samples []float32, sampleRate int) []float32 {
	win := samplesFor(noiseWindow, sampleRate)
	out := make([]float32, len(samples))
	copy(out, samples)
	if win <= 0 || len(samples) < win*2 {
		return out
	}

	n := (len(samples) + win - 1) / win
	levels := make([]float64, n)
	for i := 0; i < n; i++ {
		start, end := i*win, (i+1)*win
		if end > len(samples) {
			end = len(samples)
		}
		levels[i] = rms(samples[start:end])
	}

	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)
	floor := sorted[int(float64(len(sorted)-1)*noisePercentile)]
	if floor <= 0 {
		return out
	}

	for i, level := range levels {
		if level > floor*noiseMargin {
			continue
		}
		start, end := i*win, (i+1)*win
		if end > len(out) {
			end = len(out)
		}
		for j := start; j < end; j++ {
			out[j] *= noiseGain
		}
	}
	return out
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
