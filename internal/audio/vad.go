package audio

import (
	"math"
)

// loudnessEpsilon keeps log10 finite for digital silence.
const loudnessEpsilon = 1e-10

// GateConfig holds configuration for the voice activity gate
type GateConfig struct {
	// SilenceThreshold is the loudness in dB below which a frame counts as silent.
	// Typical values: -60 (very sensitive) to -30 (noisy rooms)
	SilenceThreshold float64
}

// DefaultGateConfig returns a default gate configuration
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SilenceThreshold: -50,
	}
}

// Gate classifies frames as silent or voiced by loudness and counts the
// consecutive silent frames since the last voiced one.
type Gate struct {
	config       GateConfig
	silentFrames int
	lastLevel    float64
}

// NewGate creates a new voice activity gate
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config, lastLevel: math.Inf(-1)}
}

// Observe classifies a frame and updates the silent run. It returns true when
// the frame is silent.
func (g *Gate) Observe(samples []int16) bool {
	g.lastLevel = Loudness(samples)
	if g.lastLevel < g.config.SilenceThreshold {
		g.silentFrames++
		return true
	}
	g.silentFrames = 0
	return false
}

// IsSilent classifies a frame without touching the silent run.
func (g *Gate) IsSilent(samples []int16) bool {
	return Loudness(samples) < g.config.SilenceThreshold
}

// SilentFrames returns the length of the current silent run.
func (g *Gate) SilentFrames() int {
	return g.silentFrames
}

// Level returns the loudness of the last observed frame in dB.
func (g *Gate) Level() float64 {
	return g.lastLevel
}

// Threshold returns the configured silence threshold in dB.
func (g *Gate) Threshold() float64 {
	return g.config.SilenceThreshold
}

// Reset clears the silent run
func (g *Gate) Reset() {
	g.silentFrames = 0
	g.lastLevel = math.Inf(-1)
}

// Loudness returns 20·log10(rms+ε) of 16-bit samples normalized to [-1, 1].
func Loudness(samples []int16) float64 {
	if len(samples) == 0 {
		return 20 * math.Log10(loudnessEpsilon)
	}
	var sum float64
	for _, s := range samples {
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}
	return toDecibels(math.Sqrt(sum / float64(len(samples))))
}

// LoudnessFloat is Loudness for already normalized samples.
func LoudnessFloat(samples []float32) float64 {
	if len(samples) == 0 {
		return 20 * math.Log10(loudnessEpsilon)
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return toDecibels(math.Sqrt(sum / float64(len(samples))))
}

func toDecibels(rms float64) float64 {
	return 20 * math.Log10(rms+loudnessEpsilon)
}
