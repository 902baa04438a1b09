// Package mcp exposes the detector to MCP clients as a set of tools.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/models"
)

type Config struct {
	ServerName    string
	ServerVersion string
}

type Server struct {
	config    Config
	mcpServer *sdk.Server
	service   *app.Service
	models    *models.Manager
	log       *slog.Logger
}

// NewServer registers the detector tools. mgr may be nil, in which case
// list_models only reports the catalog.
func NewServer(cfg Config, svc *app.Service, mgr *models.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "voxwake-mcp"
	}
	s := &Server{
		config:  cfg,
		service: svc,
		models:  mgr,
		log:     log,
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	s.registerTools()
	return s
}

// Start serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Start(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves one session over transport
func (s *Server) Connect(ctx context.Context, transport sdk.Transport) (*sdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "start_listening",
		Description: "Start listening for the wake word on the microphone",
	}, s.handleStartListening)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "stop_listening",
		Description: "Stop listening and release the microphone",
	}, s.handleStopListening)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "detector_status",
		Description: "Report whether the detector is listening, its state and counters",
	}, s.handleStatus)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "recent_transcriptions",
		Description: "Return the most recent utterances transcribed after the wake word",
	}, s.handleRecent)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "transcribe_audio",
		Description: "Transcribe base64 16-bit little-endian mono PCM at the detector sample rate",
	}, s.handleTranscribeAudio)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "list_models",
		Description: "List speech and wake word models and whether they are downloaded",
	}, s.handleListModels)
}
