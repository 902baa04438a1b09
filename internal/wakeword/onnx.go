package wakeword

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// openWakeWord feature pipeline dimensions.
const (
	chunkSamples  = 1280 // 80ms at 16kHz
	melBins       = 32
	nMelFrames    = 5  // mel frames produced per chunk
	melWindowSize = 76 // mel frames per embedding
	melStepSize   = 8
	embeddingDim  = 96
	defaultFrames = 16 // embeddings per classifier input
)

// Config configures an ONNXScorer.
type Config struct {
	// Models are wake-word classifier paths. Each one is scored every frame.
	Models []string

	// MelspecModel and EmbeddingModel are the shared feature models.
	MelspecModel   string
	EmbeddingModel string

	// Library is the onnxruntime shared library. Empty uses the loader default.
	Library string

	// HistorySize bounds the per-model score history.
	HistorySize int
}

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

func initRuntime(library string) error {
	runtimeOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

type session struct {
	in   *ort.Tensor[float32]
	out  *ort.Tensor[float32]
	sess *ort.AdvancedSession
}

func newSession(path string, inShape, outShape ort.Shape) (*session, error) {
	in, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, err
	}
	out, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		in.Destroy()
		return nil, err
	}
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, err
	}
	sess, err := ort.NewAdvancedSession(path,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{in}, []ort.Value{out},
		nil,
	)
	if err != nil {
		in.Destroy()
		out.Destroy()
		return nil, err
	}
	return &session{in: in, out: out, sess: sess}, nil
}

func (s *session) destroy() {
	if s == nil {
		return
	}
	s.sess.Destroy()
	s.in.Destroy()
	s.out.Destroy()
}

type classifier struct {
	name   string
	frames int
	*session
}

// classifierFrames reads the embedding window a classifier expects from its
// input shape (1, frames, 96).
func classifierFrames(path string) int {
	inInfo, _, err := ort.GetInputOutputInfo(path)
	if err != nil || len(inInfo) == 0 {
		return defaultFrames
	}
	dims := inInfo[0].Dimensions
	if len(dims) == 3 && dims[1] > 0 {
		return int(dims[1])
	}
	return defaultFrames
}

// ONNXScorer runs the openWakeWord pipeline: melspectrogram, embedding and one
// classifier per wake-word model.
type ONNXScorer struct {
	log *slog.Logger

	mu          sync.Mutex
	melspec     *session
	embedding   *session
	classifiers []*classifier

	remainder   []int16
	melBuffer   []float32
	embedBuffer []float32
	maxFrames   int
	embeddings  int
	history     *History
}

var _ Scorer = (*ONNXScorer)(nil)

// NewONNXScorer loads the feature and classifier models.
func NewONNXScorer(cfg Config, log *slog.Logger) (*ONNXScorer, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("wakeword: no models configured")
	}
	if cfg.MelspecModel == "" || cfg.EmbeddingModel == "" {
		return nil, errors.New("wakeword: melspectrogram and embedding models are required")
	}
	if err := initRuntime(cfg.Library); err != nil {
		return nil, fmt.Errorf("wakeword: init onnxruntime: %w", err)
	}

	s := &ONNXScorer{log: log, history: NewHistory(cfg.HistorySize)}

	var err error
	s.melspec, err = newSession(cfg.MelspecModel,
		ort.NewShape(1, chunkSamples), ort.NewShape(1, 1, nMelFrames, melBins))
	if err != nil {
		return nil, fmt.Errorf("wakeword: load melspectrogram model: %w", err)
	}
	s.embedding, err = newSession(cfg.EmbeddingModel,
		ort.NewShape(1, melWindowSize, melBins, 1), ort.NewShape(1, 1, 1, embeddingDim))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("wakeword: load embedding model: %w", err)
	}

	for _, path := range cfg.Models {
		frames := classifierFrames(path)
		sess, err := newSession(path,
			ort.NewShape(1, int64(frames), embeddingDim), ort.NewShape(1, 1))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("wakeword: load model %s: %w", path, err)
		}
		s.classifiers = append(s.classifiers, &classifier{name: ModelName(path), frames: frames, session: sess})
		if frames > s.maxFrames {
			s.maxFrames = frames
		}
		log.Debug("wakeword model loaded", "model", ModelName(path), "frames", frames)
	}

	s.embedBuffer = make([]float32, s.maxFrames*embeddingDim)
	s.melBuffer = make([]float32, 0, 2*melWindowSize*melBins)
	return s, nil
}

// Predict feeds one frame through the pipeline.
func (s *ONNXScorer) Predict(samples []int16) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remainder = append(s.remainder, samples...)
	for len(s.remainder) >= chunkSamples {
		chunk := s.remainder[:chunkSamples]
		if err := s.processChunk(chunk); err != nil {
			return nil, err
		}
		n := copy(s.remainder, s.remainder[chunkSamples:])
		s.remainder = s.remainder[:n]
	}

	scores := make(map[string]float64, len(s.classifiers))
	for _, c := range s.classifiers {
		scores[c.name] = s.history.Latest(c.name)
	}
	return scores, nil
}

func (s *ONNXScorer) processChunk(chunk []int16) error {
	in := s.melspec.in.GetData()
	for i, v := range chunk {
		in[i] = float32(v)
	}
	if err := s.melspec.sess.Run(); err != nil {
		return fmt.Errorf("wakeword: melspectrogram: %w", err)
	}
	for _, v := range s.melspec.out.GetData()[:nMelFrames*melBins] {
		s.melBuffer = append(s.melBuffer, v/10.0+2.0)
	}

	newEmbedding := false
	for len(s.melBuffer)/melBins >= melWindowSize {
		copy(s.embedding.in.GetData(), s.melBuffer[:melWindowSize*melBins])
		if err := s.embedding.sess.Run(); err != nil {
			return fmt.Errorf("wakeword: embedding: %w", err)
		}
		copy(s.embedBuffer, s.embedBuffer[embeddingDim:])
		copy(s.embedBuffer[(s.maxFrames-1)*embeddingDim:], s.embedding.out.GetData()[:embeddingDim])
		s.embeddings++
		newEmbedding = true

		n := copy(s.melBuffer, s.melBuffer[melStepSize*melBins:])
		s.melBuffer = s.melBuffer[:n]
	}
	if !newEmbedding {
		return nil
	}

	for _, c := range s.classifiers {
		if s.embeddings < c.frames {
			s.history.Add(c.name, 0)
			continue
		}
		offset := (s.maxFrames - c.frames) * embeddingDim
		copy(c.in.GetData(), s.embedBuffer[offset:])
		if err := c.sess.Run(); err != nil {
			return fmt.Errorf("wakeword: score %s: %w", c.name, err)
		}
		s.history.Add(c.name, float64(c.out.GetData()[0]))
	}
	return nil
}

// Reset clears buffered audio, features and score history.
func (s *ONNXScorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remainder = s.remainder[:0]
	s.melBuffer = s.melBuffer[:0]
	for i := range s.embedBuffer {
		s.embedBuffer[i] = 0
	}
	s.embeddings = 0
	s.history.Reset()
}

// Close destroys all sessions and tensors.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.classifiers {
		c.destroy()
	}
	s.classifiers = nil
	s.embedding.destroy()
	s.melspec.destroy()
	s.embedding, s.melspec = nil, nil
	return nil
}
