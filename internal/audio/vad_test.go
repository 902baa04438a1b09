package audio

import (
	"math"
	"testing"
)

func constant(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestLoudness(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"digital silence", constant(1280, 0), -200},
		{"empty", nil, -200},
		{"tenth of full scale", constant(1280, 3277), -20},
		{"full scale", constant(1280, -32768), 0},
		{"near silence", constant(1280, 3), -80.77},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Loudness(tt.samples); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("Loudness = %.3f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestGateCountsSilentRun(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	quiet, loud := constant(1280, 3), constant(1280, 3000)

	if !g.Observe(quiet) || !g.Observe(quiet) {
		t.Fatal("quiet frame classified as voiced")
	}
	if g.SilentFrames() != 2 {
		t.Fatalf("SilentFrames = %d, want 2", g.SilentFrames())
	}
	if g.Observe(loud) {
		t.Fatal("loud frame classified as silent")
	}
	if g.SilentFrames() != 0 {
		t.Errorf("voiced frame did not reset the run: %d", g.SilentFrames())
	}

	g.Observe(quiet)
	if g.IsSilent(loud) || g.SilentFrames() != 1 {
		t.Errorf("IsSilent changed the run: %d", g.SilentFrames())
	}
	g.Reset()
	if g.SilentFrames() != 0 || !math.IsInf(g.Level(), -1) {
		t.Errorf("Reset left run=%d level=%v", g.SilentFrames(), g.Level())
	}
}

func TestGateThresholdIsStrict(t *testing.T) {
	// exactly at the threshold counts as voiced
	level := Loudness(constant(1280, 3277))
	g := NewGate(GateConfig{SilenceThreshold: level})
	if g.Observe(constant(1280, 3277)) {
		t.Error("frame at the threshold classified as silent")
	}
}
