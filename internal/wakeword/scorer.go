// Package wakeword scores audio frames for the presence of a wake word.
//
// A Scorer is streaming: each Predict call consumes one frame and updates the
// scorer's rolling state. Reset discards that state so a new listening cycle
// starts without history from the previous one.
package wakeword

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultThreshold is the activation threshold on the 0-1 score scale.
const DefaultThreshold = 0.3

// Scorer is a streaming wake-word classifier.
type Scorer interface {
	// Predict consumes one frame and returns the latest score per model.
	Predict(samples []int16) (map[string]float64, error)

	// Reset clears all rolling state.
	Reset()
}

// Best returns the model with the highest score.
func Best(scores map[string]float64) (string, float64) {
	var (
		best      string
		bestScore float64
		found     bool
	)
	for name, s := range scores {
		if !found || s > bestScore || (s == bestScore && name < best) {
			best, bestScore, found = name, s, true
		}
	}
	return best, bestScore
}

// ModelName derives a model name from its file path ("hey_jarvis_v0.1.onnx" -> "hey_jarvis_v0.1").
func ModelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// History keeps a bounded score history per model.
type History struct {
	mu     sync.RWMutex
	size   int
	scores map[string][]float64
}

// NewHistory creates a history keeping at most size scores per model.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size, scores: make(map[string][]float64)}
}

// Add records a score for model, evicting the oldest when full.
func (h *History) Add(model string, score float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.scores[model], score)
	if len(s) > h.size {
		s = s[len(s)-h.size:]
	}
	h.scores[model] = s
}

// Latest returns the most recent score for model, or 0.
func (h *History) Latest(model string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.scores[model]
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// LatestAll returns the most recent score of every model.
func (h *History) LatestAll() map[string]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]float64, len(h.scores))
	for model, s := range h.scores {
		if len(s) > 0 {
			out[model] = s[len(s)-1]
		}
	}
	return out
}

// Scores returns a copy of the history for model, oldest first.
func (h *History) Scores(model string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]float64(nil), h.scores[model]...)
}

// Models returns the recorded model names in sorted order.
func (h *History) Models() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.scores))
	for name := range h.scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every recorded score.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scores = make(map[string][]float64)
}
