package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/codeintel/internal/config"
	"github.com/dshills/codeintel/internal/embedder"
	"github.com/dshills/codeintel/internal/indexer"
	"github.com/dshills/codeintel/internal/metrics"
	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/internal/searcher"
	"github.com/dshills/codeintel/internal/status"
	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Globals are flags shared by every command
type Globals struct {
	Config   string `help:"Path to YAML config file" type:"path" env:"CODEINTEL_CONFIG"`
	LogLevel string `help:"Log level override (debug, info, warn, error)" env:"CODEINTEL_LOG_LEVEL"`
	DataDir  string `help:"Data directory override" env:"CODEINTEL_DATA_DIR"`
}

// CLI is the command tree
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Run the REST API and metrics endpoint"`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Serve the MCP tools on stdio"`
	Search  SearchCmd  `cmd:"" help:"Search code, memories, plans and sessions"`
	Index   IndexCmd   `cmd:"" help:"Index a Go codebase"`
	Import  ImportCmd  `cmd:"" help:"Import memories, plans, sessions and activities from JSON lines"`
	Status  StatusCmd  `cmd:"" help:"Show row and vector counts"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func main() {
	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("codeintel"),
		kong.Description("Unified retrieval over code, memories, plans and sessions"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig loads the config file and applies flag overrides
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	g.applyOverrides(cfg)
	return cfg, nil
}

func (g *Globals) applyOverrides(cfg *config.Config) {
	if g.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(g.LogLevel)
	}
	if g.DataDir != "" {
		cfg.Storage.DataDir = g.DataDir
	}
}

// newLogger writes to stderr; stdout carries MCP and command output
func newLogger(cfg config.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
	}), nil
}

// app holds the long-lived components shared by the commands
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *storage.SQLiteStorage
	vectors  *vectorstore.Store
	embedder embedder.Embedder
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

// setup opens the stores and the embedding provider
func setup(g *Globals) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.DataDir != "" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	vectors, err := vectorstore.Open(cfg.VectorPath(), cfg.Storage.CompressVectors, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig(), logger)
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	logger.Debug("Initialized",
		"db", cfg.DBPath(),
		"vectors", cfg.VectorPath(),
		"provider", emb.Provider(),
		"model", emb.Model(),
		"driver", storage.DriverName)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		vectors:  vectors,
		embedder: m.InstrumentEmbedder(emb),
		metrics:  m,
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("Failed to close embedder", "error", err)
	}
	if err := a.vectors.Close(); err != nil {
		a.logger.Warn("Failed to close vector store", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close storage", "error", err)
	}
}

// newEngine builds an engine from cfg over the already open stores
func (a *app) newEngine(cfg *config.Config) (*retrieval.Engine, error) {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	return retrieval.NewEngine(engineCfg, a.embedder, searcher.All(a.vectors, a.store),
		retrieval.WithLogger(a.logger),
		retrieval.WithRecorder(a.metrics))
}

func (a *app) reporter() *status.Reporter {
	info := status.EmbedderInfo{
		Provider:  a.embedder.Provider(),
		Model:     a.embedder.Model(),
		Dimension: a.embedder.Dimension(),
	}
	return status.NewReporter(a.store, a.vectors, info, version)
}

func (a *app) indexer() *indexer.Indexer {
	return indexer.New(a.store, a.vectors, a.embedder, a.logger)
}

// indexConfig is the configured indexing run
func (a *app) indexConfig() indexer.Config {
	return indexer.Config{
		Workers:      a.cfg.Index.Workers,
		BatchSize:    a.cfg.Index.BatchSize,
		IncludeTests: a.cfg.Index.IncludeTests,
	}
}
