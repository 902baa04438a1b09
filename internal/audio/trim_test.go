package audio

import (
	"math"
	"testing"
)

func floats(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestTrimTrailingSilence(t *testing.T) {
	cfg := DefaultTrimConfig()
	tests := []struct {
		name    string
		samples []float32
		want    int
	}{
		{"speech then silence", append(floats(16000, 0.5), floats(16000, 0)...), 16000 + 3200},
		{"silence shorter than pad", append(floats(16000, 0.5), floats(1000, 0)...), 17000},
		{"all quiet", floats(8000, 0), 0},
		{"empty", nil, 0},
		{"no trailing silence", floats(4800, 0.5), 4800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(TrimTrailingSilence(tt.samples, 16000, cfg)); got != tt.want {
				t.Errorf("len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReduceNoise(t *testing.T) {
	in := append(floats(16000, 0.5), floats(16000, 0.01)...)
	out := ReduceNoise(in, 16000)

	if in[len(in)-1] != 0.01 {
		t.Fatal("input modified")
	}
	if out[0] != 0.5 {
		t.Errorf("speech attenuated: %v", out[0])
	}
	if math.Abs(float64(out[len(out)-1])-0.001) > 1e-6 {
		t.Errorf("noise not attenuated: %v", out[len(out)-1])
	}

	short := floats(100, 0.3)
	if got := ReduceNoise(short, 16000); got[0] != 0.3 {
		t.Error("short input changed")
	}
}
