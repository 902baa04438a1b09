package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/config"
	"github.com/emmett/voxwake/internal/observe"
	"github.com/emmett/voxwake/internal/server/mcp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.voxwakerc or /etc/voxwake/config.yaml)")
	listen      = flag.Bool("listen", false, "Start listening for the wake word immediately")
	printConfig = flag.Bool("print-config", false, "Print MCP client configuration and exit")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxwake MCP v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if *printConfig {
		execPath, err := os.Executable()
		if err != nil {
			execPath = "voxwake-mcp"
		}
		var args []string
		if *configFile != "" {
			args = append(args, "--config", *configFile)
		}
		if err := mcp.PrintClientConfig(os.Stdout, "voxwake", execPath, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		return err
	}

	// stdout carries the protocol, so logs go to stderr
	log := observe.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := app.Build(ctx, cfg, app.Deps{Log: log})
	if err != nil {
		return err
	}
	defer p.Close()

	go p.Service.Run(ctx)
	if *listen {
		if err := p.Service.StartListening(ctx); err != nil {
			return err
		}
	}

	log.Info("MCP server ready on stdin/stdout", "version", Version)
	server := mcp.NewServer(mcp.Config{ServerName: "voxwake-mcp", ServerVersion: Version}, p.Service, p.Models, log)
	return server.Start(ctx)
}
