package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/config"
	"github.com/emmett/voxwake/internal/observe"
	"github.com/emmett/voxwake/internal/output"
	"github.com/emmett/voxwake/internal/server/feed"
	grpcserver "github.com/emmett/voxwake/internal/server/grpc"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.voxwakerc or /etc/voxwake/config.yaml)")
	port        = flag.Int("port", 0, "gRPC server port (default from config: 50051)")
	httpAddr    = flag.String("http", "", "HTTP listen address for the event feed and metrics")
	listen      = flag.Bool("listen", false, "Start listening for the wake word immediately")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxwake server v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.GRPCPort = *port
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}

	log := observe.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting voxwake server", "version", Version, "commit", GitCommit)

	var (
		metrics  *observe.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Telemetry.Enabled {
		reg := prometheus.NewRegistry()
		m, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "voxwake",
			ServiceVersion: Version,
			Registerer:     reg,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer shutdown(context.Background())
		metrics, gatherer = m, reg
	}

	var deps app.Deps
	deps.Log = log
	deps.Metrics = metrics
	if cfg.Output.File != "" {
		f, err := os.OpenFile(cfg.Output.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer f.Close()
		// a server appends one JSON document per line
		deps.Formatter = output.NewJSONFormatter(f, false)
	}

	p, err := app.Build(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer p.Close()

	if *listen {
		if err := p.Service.StartListening(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Service.Run(ctx)
	})
	g.Go(func() error {
		srv := grpcserver.NewServer(grpcserver.Config{Host: cfg.Server.Host, Port: cfg.Server.GRPCPort}, p.Service, log)
		return srv.Start(ctx)
	})
	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error {
			return feed.New(p.Service, gatherer, log).ListenAndServe(ctx, cfg.Server.HTTPAddr)
		})
	}

	err = g.Wait()
	log.Info("shutting down")
	return err
}
