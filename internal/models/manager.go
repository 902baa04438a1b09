// Package models knows which speech and wake-word models exist, where they live
// on disk and how to download them.
package models

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the model family
type Kind string

const (
	KindWhisper  Kind = "whisper"
	KindVosk     Kind = "vosk"
	KindWakeWord Kind = "wakeword"
)

// Model describes a downloadable model
type Model struct {
	Name        string
	Kind        Kind
	Language    string
	Size        string
	URL         string
	Description string

	// Archive models are zip files extracted into a directory named Name.
	Archive bool
}

// FileName is the on-disk name of the model inside the models directory.
func (m Model) FileName() string {
	switch {
	case m.Archive:
		return m.Name
	case m.Kind == KindWhisper:
		return m.Name + ".bin"
	default:
		return m.Name + ".onnx"
	}
}

const (
	whisperBaseURL  = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"
	voskBaseURL     = "https://alphacephei.com/vosk/models/"
	wakeWordBaseURL = "https://github.com/dscripka/openWakeWord/releases/download/v0.5.1/"
)

func whisper(version, size, desc string) Model {
	name := WhisperModelName(version)
	return Model{Name: name, Kind: KindWhisper, Language: "multi", Size: size, URL: whisperBaseURL + name + ".bin", Description: desc}
}

func vosk(name, size, desc string) Model {
	return Model{Name: name, Kind: KindVosk, Language: "en-US", Size: size, URL: voskBaseURL + name + ".zip", Description: desc, Archive: true}
}

func wakeWord(name, size, desc string) Model {
	return Model{Name: name, Kind: KindWakeWord, Size: size, URL: wakeWordBaseURL + name + ".onnx", Description: desc}
}

// AvailableModels is the download catalog
var AvailableModels = []Model{
	whisper("tiny", "75M", "Fastest whisper model, lowest accuracy"),
	whisper("tiny.en", "75M", "English-only tiny model"),
	whisper("base", "142M", "Good balance of speed and accuracy"),
	whisper("base.en", "142M", "English-only base model"),
	whisper("small", "466M", "Slower, noticeably more accurate"),
	whisper("medium", "1.5G", "High accuracy, needs a fast CPU or GPU"),
	whisper("large-v3", "2.9G", "Best accuracy, slowest"),
	vosk("vosk-model-small-en-us-0.15", "40M", "Lightweight English model, fast but less accurate"),
	vosk("vosk-model-en-us-0.22-lgraph", "128M", "Medium English model, balanced speed and accuracy"),
	vosk("vosk-model-en-us-0.22", "1.8G", "Large English model, slower but more accurate"),
	wakeWord("melspectrogram", "1M", "openWakeWord feature extractor"),
	wakeWord("embedding_model", "1M", "openWakeWord speech embedding"),
	wakeWord("hey_jarvis_v0.1", "1M", "Wake word \"hey jarvis\""),
	wakeWord("alexa_v0.1", "1M", "Wake word \"alexa\""),
	wakeWord("hey_mycroft_v0.1", "1M", "Wake word \"hey mycroft\""),
}

// DefaultWhisperVersion is used when no model version is configured
const DefaultWhisperVersion = "base"

// WhisperModelName maps a version ("base") to its model name ("ggml-base").
func WhisperModelName(version string) string {
	if version == "" {
		version = DefaultWhisperVersion
	}
	return "ggml-" + strings.TrimPrefix(version, "ggml-")
}

// FindModel finds a model by name in the catalog
func FindModel(name string) (Model, bool) {
	for _, model := range AvailableModels {
		if model.Name == name {
			return model, true
		}
	}
	return Model{}, false
}

// ModelsOfKind returns the catalog entries of one kind
func ModelsOfKind(kind Kind) []Model {
	var out []Model
	for _, m := range AvailableModels {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// ResolveDir returns dir, or ./models when dir is empty.
func ResolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, "models"), nil
}

// Manager stores models in one directory
type Manager struct {
	dir    string
	client *http.Client
	log    *slog.Logger
}

// NewManager creates a manager for dir
func NewManager(dir string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{dir: dir, client: http.DefaultClient, log: log}
}

// WithHTTPClient replaces the download client
func (m *Manager) WithHTTPClient(c *http.Client) *Manager {
	m.client = c
	return m
}

// Dir returns the models directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns where model is stored, downloaded or not.
func (m *Manager) Path(model Model) string {
	return filepath.Join(m.dir, model.FileName())
}

// IsDownloaded checks if a model is present on disk
func (m *Manager) IsDownloaded(model Model) (bool, error) {
	info, err := os.Stat(m.Path(model))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir() == model.Archive, nil
}

// Resolve returns the path of a downloaded catalog model.
func (m *Manager) Resolve(name string) (string, error) {
	model, ok := FindModel(name)
	if !ok {
		return "", fmt.Errorf("unknown model: %s", name)
	}
	downloaded, err := m.IsDownloaded(model)
	if err != nil {
		return "", err
	}
	if !downloaded {
		return "", fmt.Errorf("model not found: %s (download it with --download-model %s)", name, name)
	}
	return m.Path(model), nil
}

// WhisperPath returns the ggml file of a whisper version.
func (m *Manager) WhisperPath(version string) string {
	return filepath.Join(m.dir, WhisperModelName(version)+".bin")
}

// Download fetches a catalog model into the models directory. Archives are
// extracted and removed. progress may be nil.
func (m *Manager) Download(ctx context.Context, name string, progress func(downloaded, total int64)) error {
	model, ok := FindModel(name)
	if !ok {
		return fmt.Errorf("unknown model: %s", name)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	m.log.Info("downloading model", "model", name, "size", model.Size, "url", model.URL)

	tmp, err := os.CreateTemp(m.dir, "."+name+"-*.part")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.fetch(ctx, model.URL, tmp, progress); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if model.Archive {
		if err := extractZip(tmp.Name(), m.dir); err != nil {
			return fmt.Errorf("failed to extract model: %w", err)
		}
	} else if err := os.Rename(tmp.Name(), m.Path(model)); err != nil {
		return fmt.Errorf("failed to store model: %w", err)
	}

	m.log.Info("model downloaded", "model", name, "path", m.Path(model))
	return nil
}

func (m *Manager) fetch(ctx context.Context, url string, out io.Writer, progress func(downloaded, total int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	total := resp.ContentLength
	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("failed to write file: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("download error: %w", err)
		}
	}
}

// extractZip extracts a zip file to the specified directory
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		fpath := filepath.Join(destDir, f.Name)

		// ZipSlip
		if !strings.HasPrefix(fpath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path: %s", fpath)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, os.ModePerm); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
			return err
		}
		if err := extractFile(f, fpath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, path string) error {
	outFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(outFile, rc)
	return err
}

// ListDownloaded lists the catalog models present on disk, sorted by name
func (m *Manager) ListDownloaded() ([]Model, error) {
	var out []Model
	for _, model := range AvailableModels {
		ok, err := m.IsDownloaded(model)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, model)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
