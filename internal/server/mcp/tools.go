package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/models"
)

type NoArgs struct{}

type RecentArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of transcriptions to return, default 10"`
}

type TranscribeArgs struct {
	Audio string `json:"audio" jsonschema:"base64-encoded audio data (16kHz mono 16-bit PCM)"`
}

type ListModelsArgs struct {
	Kind string `json:"kind,omitempty" jsonschema:"whisper, vosk or wakeword; all kinds when empty"`
}

func textResult(lines ...string) *sdk.CallToolResult {
	content := make([]sdk.Content, 0, len(lines))
	for _, l := range lines {
		content = append(content, &sdk.TextContent{Text: l})
	}
	return &sdk.CallToolResult{Content: content}
}

func (s *Server) handleStartListening(ctx context.Context, req *sdk.CallToolRequest, _ NoArgs) (*sdk.CallToolResult, any, error) {
	// the detector outlives the tool call
	if err := s.service.StartListening(context.WithoutCancel(ctx)); err != nil {
		return nil, nil, fmt.Errorf("start listening: %w", err)
	}
	return textResult("listening"), nil, nil
}

func (s *Server) handleStopListening(ctx context.Context, req *sdk.CallToolRequest, _ NoArgs) (*sdk.CallToolResult, any, error) {
	if err := s.service.StopListening(); err != nil {
		return nil, nil, fmt.Errorf("stop listening: %w", err)
	}
	return textResult("stopped"), nil, nil
}

func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, _ NoArgs) (*sdk.CallToolResult, any, error) {
	data, err := json.Marshal(s.service.Status())
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(data)), nil, nil
}

func (s *Server) handleRecent(ctx context.Context, req *sdk.CallToolRequest, args RecentArgs) (*sdk.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	events := s.service.Recent(limit)
	if len(events) == 0 {
		return textResult("No transcriptions yet."), nil, nil
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		ts := ev.Timestamp.Format("15:04:05")
		if ev.Type == detect.EventTranscriptionFailed {
			lines = append(lines, fmt.Sprintf("[%s] (failed) %s", ts, ev.Error))
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", ts, ev.Text))
	}
	return textResult(lines...), nil, nil
}

func (s *Server) handleTranscribeAudio(ctx context.Context, req *sdk.CallToolRequest, args TranscribeArgs) (*sdk.CallToolResult, any, error) {
	audioData, err := base64.StdEncoding.DecodeString(args.Audio)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	if len(audioData)%2 != 0 {
		return nil, nil, fmt.Errorf("audio must be 16-bit PCM, got an odd number of bytes (%d)", len(audioData))
	}

	text, err := s.service.TranscribePCM(ctx, audio.BytesToSamples(audioData))
	if err != nil {
		return nil, nil, fmt.Errorf("transcription failed: %w", err)
	}
	seconds := float64(len(audioData)/2) / float64(s.service.SampleRate())
	return textResult(text, fmt.Sprintf("Duration: %.2fs", seconds)), nil, nil
}

func (s *Server) handleListModels(ctx context.Context, req *sdk.CallToolRequest, args ListModelsArgs) (*sdk.CallToolResult, any, error) {
	catalog := models.AvailableModels
	if args.Kind != "" {
		catalog = models.ModelsOfKind(models.Kind(strings.ToLower(args.Kind)))
		if len(catalog) == 0 {
			return nil, nil, fmt.Errorf("unknown model kind: %s", args.Kind)
		}
	}

	lines := []string{fmt.Sprintf("Models (%d):", len(catalog))}
	for _, model := range catalog {
		status := ""
		if s.models != nil {
			if ok, _ := s.models.IsDownloaded(model); ok {
				status = " [downloaded]"
			}
		}
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)%s", model.Name, model.Kind, model.Size, status))
	}
	return textResult(lines...), nil, nil
}
