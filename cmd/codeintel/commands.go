package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeintel/internal/api"
	"github.com/dshills/codeintel/internal/config"
	"github.com/dshills/codeintel/internal/mcp"
	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/pkg/types"
)

// documentsInterval is how often the documents gauge is refreshed
const documentsInterval = 30 * time.Second

// ServeCmd runs the REST API
type ServeCmd struct {
	Addr  string `help:"Listen address override"`
	Watch bool   `help:"Reload retrieval settings when the config file changes" default:"true" negatable:""`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.newEngine(a.cfg)
	if err != nil {
		return err
	}
	holder := retrieval.NewHolder(engine)

	opts := []api.Option{api.WithLogger(a.logger)}
	if a.cfg.Metrics.Enabled {
		handler := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})
		opts = append(opts, api.WithMetrics(a.metrics, a.cfg.Metrics.Path, handler))
	}
	srv := api.NewServer(holder, a.reporter(), opts...)

	httpCfg := a.cfg.HTTP
	if c.Addr != "" {
		httpCfg.Addr = c.Addr
	}

	// Built before any task starts so a failure leaves nothing running
	watcher, err := c.configWatcher(g, a, holder)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	ctx, cancel := signalContext()
	defer cancel()
	g2, gctx := errgroup.WithContext(ctx)

	g2.Go(func() error { return srv.Run(gctx, httpCfg) })
	g2.Go(func() error {
		a.refreshDocuments(gctx)
		return nil
	})
	if watcher != nil {
		g2.Go(func() error { return watcher.Watch(gctx) })
	}

	if err := g2.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// configWatcher returns a watcher that swaps the engine in holder after each
// config reload, or nil when reloading is off
func (c *ServeCmd) configWatcher(g *Globals, a *app, holder *retrieval.Holder) (*config.Watcher, error) {
	if !c.Watch || g.Config == "" {
		return nil, nil
	}
	watcher, err := config.NewWatcher(g.Config, config.WithWatcherLogger(a.logger))
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(cfg *config.Config) {
		g.applyOverrides(cfg)
		next, err := a.newEngine(cfg)
		if err != nil {
			a.logger.Error("Rejected reloaded retrieval config", "error", err)
			return
		}
		holder.Swap(next)
		a.logger.Info("Retrieval config reloaded; storage and embedding changes need a restart")
	})
	return watcher, nil
}

// refreshDocuments keeps the documents gauge current until ctx is done
func (a *app) refreshDocuments(ctx context.Context) {
	ticker := time.NewTicker(documentsInterval)
	defer ticker.Stop()
	for {
		a.metrics.SetDocuments(a.vectors.Counts())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// MCPCmd serves the MCP tools on stdio
type MCPCmd struct {
	ReadOnly bool `help:"Do not expose the index_codebase and import_records tools"`
}

func (c *MCPCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.newEngine(a.cfg)
	if err != nil {
		return err
	}

	opts := []mcp.Option{mcp.WithLogger(a.logger)}
	if !c.ReadOnly {
		opts = append(opts, mcp.WithIndexer(a.indexer(), a.indexConfig()))
	}
	server := mcp.NewServer(retrieval.NewHolder(engine), a.reporter(), version, opts...)

	ctx, cancel := signalContext()
	defer cancel()
	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// SearchCmd runs one query and prints the ranked results
type SearchCmd struct {
	Query    []string          `arg:"" help:"Search query"`
	DocTypes []string          `help:"Doc types to search (code, memory, plan, session)" short:"t" sep:","`
	Limit    int               `help:"Maximum number of results" short:"n"`
	Filter   map[string]string `help:"Filters as key=value (path, symbol_kind, package, memory_type, tags, session_id, status, since, until)" short:"f"`
	JSON     bool              `help:"Print the JSON response"`
}

func (c *SearchCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.newEngine(a.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	resp, err := engine.Search(ctx, retrieval.Query{
		Text:     strings.Join(c.Query, " "),
		DocTypes: c.DocTypes,
		Limit:    c.Limit,
		Filters:  types.Filters(c.Filter),
	})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewSearchResponse(resp))
	}
	printResults(os.Stdout, resp)
	return nil
}

// printResults writes one line per result, then any failed doc types
func printResults(w io.Writer, resp *retrieval.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%d.\t%s\t%.3f\t%s\n", r.Rank, r.DocType, r.Confidence, describe(r.Metadata))
	}
	_ = tw.Flush()

	if resp.Partial() {
		fmt.Fprintf(w, "\nWarning: partial results; failed doc types:")
		for _, o := range resp.Outcomes {
			if o.Outcome == retrieval.OutcomeFailed {
				fmt.Fprintf(w, " %s (%s)", o.DocType, o.Reason)
			}
		}
		fmt.Fprintln(w)
	}
}

// describe renders metadata as a one-line summary
func describe(m types.Metadata) string {
	switch md := m.(type) {
	case types.CodeMetadata:
		s := fmt.Sprintf("%s:%d-%d", md.FilePath, md.StartLine, md.EndLine)
		if md.SymbolName != "" {
			s += " " + md.SymbolName
		}
		return s
	case types.MemoryMetadata:
		return fmt.Sprintf("[%s/%s] %s", md.MemoryType, md.Importance, truncate(md.Observation, 80))
	case types.PlanMetadata:
		return fmt.Sprintf("[%s/%s] %s", md.Status, md.Importance, md.Title)
	case types.SessionMetadata:
		return fmt.Sprintf("[%s] %s (%d activities)", md.Status, md.Title, md.ActivityCount)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// IndexCmd indexes a Go codebase
type IndexCmd struct {
	Path          string `arg:"" help:"Project root" type:"existingdir" default:"."`
	Force         bool   `help:"Re-embed every declaration"`
	SkipTests     bool   `help:"Do not index *_test.go files"`
	IncludeVendor bool   `help:"Index the vendor directory"`
	Workers       int    `help:"Parse workers (default from config)"`
}

func (c *IndexCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.indexConfig()
	cfg.Force = c.Force
	cfg.IncludeVendor = c.IncludeVendor
	if c.SkipTests {
		cfg.IncludeTests = false
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}

	ctx, cancel := signalContext()
	defer cancel()
	stats, err := a.indexer().IndexCode(ctx, c.Path, &cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d files (%d unchanged, %d failed, %d removed) in %v\n",
		stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesRemoved,
		stats.Duration.Round(time.Millisecond))
	fmt.Printf("Chunks: %d written, %d deleted; %d symbols\n",
		stats.ChunksCreated, stats.ChunksDeleted, stats.SymbolsExtracted)
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(os.Stderr, "  %s\n", msg)
	}
	return nil
}

// ImportCmd imports JSON-lines records from a file or stdin
type ImportCmd struct {
	File string `arg:"" help:"JSON-lines file, or - for stdin" default:"-"`
}

func (c *ImportCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	ctx, cancel := signalContext()
	defer cancel()
	stats, err := a.indexer().Import(ctx, r)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d memories, %d plans, %d sessions, %d activities (%d failed)\n",
		stats.Memories, stats.Plans, stats.Sessions, stats.Activities, stats.Failed)
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(os.Stderr, "  %s\n", msg)
	}
	return nil
}

// StatusCmd prints row and vector counts
type StatusCmd struct {
	JSON bool `help:"Print the JSON report"`
}

func (c *StatusCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.reporter().Report(context.Background())
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Embedder: %s %s (%d dims)\n", report.Embedder.Provider, report.Embedder.Model, report.Embedder.Dimension)
	fmt.Printf("Schema:   %s (%s, %s)\n\n", report.Storage.SchemaVersion, report.Storage.Driver, report.Storage.BuildMode)

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "DOC TYPE\tROWS\tVECTORS")
	for _, dt := range types.AllDocTypes {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", dt, rowCount(report.Storage, dt), report.Vectors[dt])
	}
	_ = tw.Flush()
	fmt.Printf("\nFiles: %d  Activities: %d\n", report.Storage.Files, report.Storage.Activities)

	if stale := report.Stale(); len(stale) > 0 {
		fmt.Printf("Warning: rows and vectors disagree: %v\n", stale)
	}
	return nil
}

func rowCount(s *storage.Status, dt types.DocType) int {
	switch dt {
	case types.DocTypeCode:
		return s.CodeChunks
	case types.DocTypeMemory:
		return s.Memories
	case types.DocTypePlan:
		return s.Plans
	case types.DocTypeSession:
		return s.Sessions
	}
	return 0
}

// VersionCmd prints build information
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Printf("codeintel %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Build Mode: %s\n", storage.BuildMode)
	fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
	return nil
}
