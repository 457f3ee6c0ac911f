package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/dmmcquay/chess-arbiter/internal/arbiter"
	"github.com/dmmcquay/chess-arbiter/internal/book"
	"github.com/dmmcquay/chess-arbiter/internal/bot"
	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/health"
	"github.com/dmmcquay/chess-arbiter/internal/lichess"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	mcptools "github.com/dmmcquay/chess-arbiter/internal/mcp"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
	"github.com/dmmcquay/chess-arbiter/internal/ratelimit"
	"github.com/dmmcquay/chess-arbiter/internal/scheduler"
	httpserver "github.com/dmmcquay/chess-arbiter/internal/server"
	"github.com/dmmcquay/chess-arbiter/internal/shutdown"
	"github.com/dmmcquay/chess-arbiter/internal/uci"
)

var (
	// Version information injected at build time.
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var (
		showVersion bool
		configPath  string
		enableMCP   bool
	)
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVar(&configPath, "config", "", "Path to config.json (default: $ARBITER_CONFIG, ./config.json, ~/.chess-arbiter/config.json)")
	flag.BoolVar(&enableMCP, "mcp", false, "Serve operator tools over MCP on stdio")
	flag.Parse()

	if showVersion {
		fmt.Printf("chess-arbiter version %s\n", config.Default().Server.Version)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		os.Exit(0)
	}

	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLoggerFromConfig(&logging.Config{
		Level:   cfg.Logging.Level,
		Format:  logging.LogFormat(cfg.Logging.Format),
		Service: cfg.Server.Name,
		Version: cfg.Server.Version,
		Prefix:  cfg.Logging.Prefix,
		File:    &cfg.Logging.File,
	})
	logger.Info("Starting chess-arbiter",
		"version", cfg.Server.Version,
		"commit", GitCommit,
		"built", BuildTime,
		"strategy", cfg.Arbiter.Strategy,
		"veto_cp", cfg.Arbiter.VetoCP,
	)

	if err := run(cfg, logger, logCloser, enableMCP || cfg.MCP.Enabled); err != nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.ContextLogger, logCloser io.Closer, enableMCP bool) error {
	manager := shutdown.NewManager(logger)
	if logCloser != nil {
		manager.Register("logfile", func(ctx context.Context) error {
			return logCloser.Close()
		})
	}
	defer func() { _ = manager.Shutdown(shutdownTimeout) }()

	ctx, cancel := manager.HandleSignals(context.Background())
	defer cancel()

	primary := uci.NewEngine(cfg.Primary, logger)
	secondary := uci.NewEngine(cfg.Secondary, logger)
	manager.Register("engines", func(ctx context.Context) error {
		return errors.Join(primary.Stop(), secondary.Stop())
	})

	// The engines outlive the signal context so the shutdown hook can send
	// them "quit" instead of having them killed.
	var g errgroup.Group
	for _, eng := range []*uci.Engine{primary, secondary} {
		eng := eng
		g.Go(func() error { return eng.Start(context.WithoutCancel(ctx)) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("engine start-up failed: %w", err)
	}

	openings, err := book.Load(cfg.Book.Path, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(cfg.Challenge, logger)
	b := bot.New(bot.Deps{
		Client:    lichess.NewClient(cfg.BaseURL, cfg.Token, logger),
		Scheduler: sched,
		Decider:   arbiter.New(primary, secondary, cfg.Arbiter, logger),
		Book:      openings,
		Engines:   []uci.EngineInterface{primary, secondary},
		Stats:     metrics.NewCollector(),
	}, bot.SessionOptions(cfg), logger)

	checker := health.NewChecker(logger, cfg.Server.Version, GitCommit)
	checker.RegisterCheck("engine:"+primary.Name(), health.EngineCheck(primary))
	checker.RegisterCheck("engine:"+secondary.Name(), health.EngineCheck(secondary))
	checker.RegisterCheck("event_stream", health.StreamCheck(b.Streaming))

	httpServer := httpserver.NewHTTPServer(cfg.Server.HealthAddr, logger, checker)
	if err := httpServer.Start(); err != nil {
		return err
	}
	manager.Register("http", httpServer.Stop)

	if enableMCP {
		limiter := ratelimit.NewLimiter(&cfg.RateLimit, logger)
		manager.Register("ratelimit", func(ctx context.Context) error {
			limiter.Close()
			return nil
		})
		go serveMCP(cfg, b, limiter, logger)
	}

	runErr := b.Run(ctx)
	cancel()
	b.Wait()

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// serveMCP blocks until stdin closes. Ending the MCP session does not stop
// the bot.
func serveMCP(cfg *config.Config, b *bot.Bot, limiter *ratelimit.Limiter, logger logging.ContextLogger) {
	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithLogging(),
	)

	tools := mcptools.NewToolsHandler(b, limiter, logger)
	tools.SetMiddleware(mcptools.NewMiddleware(logger, limiter))
	tools.RegisterTools(mcpServer)

	logger.Info("MCP operator tools ready on stdio")
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("MCP server error", "error", err)
		return
	}
	logger.Info("MCP session ended")
}
