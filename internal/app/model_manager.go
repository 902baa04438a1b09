package app

import (
	"context"
	"fmt"
	"io"

	"github.com/emmett/voxwake/internal/models"
)

// ModelManager prints and downloads the model catalog for the CLI.
type ModelManager struct {
	mgr *models.Manager
	out io.Writer
}

func NewModelManager(mgr *models.Manager, out io.Writer) *ModelManager {
	return &ModelManager{mgr: mgr, out: out}
}

func (m *ModelManager) ListModels() error {
	for _, kind := range []models.Kind{models.KindWhisper, models.KindVosk, models.KindWakeWord} {
		fmt.Fprintf(m.out, "%s models:\n", kind)
		for _, model := range models.ModelsOfKind(kind) {
			status := "not downloaded"
			if ok, _ := m.mgr.IsDownloaded(model); ok {
				status = "downloaded"
			}
			fmt.Fprintf(m.out, "  %-30s %6s  %-15s %s\n", model.Name, model.Size, status, model.Description)
		}
		fmt.Fprintln(m.out)
	}
	fmt.Fprintf(m.out, "Models directory: %s\n", m.mgr.Dir())
	fmt.Fprintln(m.out, "To download a model, use:")
	fmt.Fprintln(m.out, "  voxwake --download-model <model-name>")
	return nil
}

func (m *ModelManager) ListDownloaded() error {
	downloaded, err := m.mgr.ListDownloaded()
	if err != nil {
		return fmt.Errorf("error listing models: %w", err)
	}
	if len(downloaded) == 0 {
		fmt.Fprintln(m.out, "No models downloaded yet.")
		return nil
	}
	fmt.Fprintf(m.out, "Downloaded models (%d):\n", len(downloaded))
	for i, model := range downloaded {
		fmt.Fprintf(m.out, "%d. %s\n   Path: %s\n", i+1, model.Name, m.mgr.Path(model))
	}
	return nil
}

// Download fetches name unless it is already present
func (m *ModelManager) Download(ctx context.Context, name string) error {
	model, ok := models.FindModel(name)
	if !ok {
		return fmt.Errorf("unknown model: %s (use --list-models to see available models)", name)
	}
	downloaded, err := m.mgr.IsDownloaded(model)
	if err != nil {
		return fmt.Errorf("error checking model: %w", err)
	}
	if downloaded {
		fmt.Fprintf(m.out, "Model '%s' is already downloaded.\nLocation: %s\n", name, m.mgr.Path(model))
		return nil
	}

	fmt.Fprintf(m.out, "Downloading model: %s (%s)\n", model.Name, model.Size)
	err = m.mgr.Download(ctx, name, func(downloaded, total int64) {
		if total > 0 {
			percent := float64(downloaded) / float64(total) * 100
			fmt.Fprintf(m.out, "\rProgress: %.1f%% (%d/%d bytes)", percent, downloaded, total)
		}
	})
	if err != nil {
		return fmt.Errorf("error downloading model: %w", err)
	}
	fmt.Fprintln(m.out)
	fmt.Fprintf(m.out, "Model '%s' downloaded to %s\n", name, m.mgr.Path(model))
	return nil
}

// EnsureWakeWord downloads the feature models and the named wake word
// models that are missing.
func (m *ModelManager) EnsureWakeWord(ctx context.Context, names []string) error {
	if len(names) == 0 {
		names = []string{DefaultWakeWordModel}
	}
	all := append([]string{melspecModelName, embeddingModelName}, names...)
	for _, name := range all {
		model, ok := models.FindModel(name)
		if !ok {
			continue
		}
		if ok, _ := m.mgr.IsDownloaded(model); ok {
			continue
		}
		if err := m.Download(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
