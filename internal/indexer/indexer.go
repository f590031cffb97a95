package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeintel/internal/embedder"
	"github.com/dshills/codeintel/internal/parser"
	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
	"github.com/dshills/codeintel/pkg/types"
)

// ErrIndexingInProgress is returned when another indexing run holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

// maxEmbedChars bounds the text sent to the embedder for one chunk
const maxEmbedChars = 8000

// VectorWriter is the write side of the vector store
type VectorWriter interface {
	Upsert(ctx context.Context, dt types.DocType, id, text string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, dt types.DocType, ids ...string) error
}

// Indexer coordinates the ingestion pipeline: parse -> chunk -> embed -> store
type Indexer struct {
	parser   *parser.Parser
	storage  storage.Storage
	vectors  VectorWriter
	embedder embedder.Embedder
	logger   *log.Logger
	lock     IndexLock
}

// Config contains configuration for a code indexing run
type Config struct {
	Workers       int  // Number of concurrent parse workers (default: runtime.NumCPU())
	BatchSize     int  // Number of chunks per embedding request (default: 32)
	IncludeTests  bool // Whether to index test files
	IncludeVendor bool // Whether to index vendor directory
	Force         bool // Re-embed chunks even when their content is unchanged
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed        int           `json:"files_indexed"`
	FilesSkipped        int           `json:"files_skipped"`
	FilesFailed         int           `json:"files_failed"`
	FilesRemoved        int           `json:"files_removed"`
	SymbolsExtracted    int           `json:"symbols_extracted"`
	ChunksCreated       int           `json:"chunks_created"`
	ChunksDeleted       int           `json:"chunks_deleted"`
	EmbeddingsGenerated int           `json:"embeddings_generated"`
	Duration            time.Duration `json:"duration_ns"`
	ErrorMessages       []string      `json:"errors,omitempty"`
}

// New creates a new Indexer instance
func New(store storage.Storage, vectors VectorWriter, emb embedder.Embedder, logger *log.Logger) *Indexer {
	return &Indexer{
		parser:   parser.New(),
		storage:  store,
		vectors:  vectors,
		embedder: emb,
		logger:   logger,
	}
}

// fileWork is the per-file state carried through the pipeline
type fileWork struct {
	relPath string
	chunks  []*storage.CodeChunk
	pending []int // Indexes into chunks that need embedding
	moved   []int // Indexes into chunks with unchanged content at new lines
	vectors [][]float32
	stale   []string // Chunk ids stored for this file that are no longer produced
	symbols int
	failed  error
}

func (w *fileWork) changed() bool {
	return len(w.pending) > 0 || len(w.moved) > 0 || len(w.stale) > 0
}

// IndexCode walks root and brings the code collection in line with its Go files
func (idx *Indexer) IndexCode(ctx context.Context, root string, config *Config) (*Statistics, error) {
	cfg := Config{IncludeTests: true}
	if config != nil {
		cfg = *config
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}

	if holder, ok := idx.lock.TryAcquire(absRoot); !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexingInProgress, holder)
	}
	defer idx.lock.Release()

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	files, err := discoverFiles(absRoot, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	idx.logger.Info("Indexing codebase", "root", absRoot, "files", len(files), "workers", cfg.Workers)

	work, err := idx.prepareFiles(ctx, absRoot, files, &cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.embedPending(ctx, work, cfg.BatchSize, cfg.Workers); err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(work))
	for _, w := range work {
		present[w.relPath] = true
		stats.SymbolsExtracted += w.symbols

		switch {
		case w.failed != nil:
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", w.relPath, w.failed))
			continue
		case !w.changed():
			stats.FilesSkipped++
			continue
		}

		if err := idx.writeFile(ctx, w); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", w.relPath, err))
			continue
		}
		stats.FilesIndexed++
		stats.ChunksCreated += len(w.pending)
		stats.EmbeddingsGenerated += len(w.pending)
		stats.ChunksDeleted += len(w.stale)
	}

	removedFiles, removedChunks, err := idx.removeMissing(ctx, present)
	if err != nil {
		return nil, fmt.Errorf("failed to remove deleted files: %w", err)
	}
	stats.FilesRemoved = removedFiles
	stats.ChunksDeleted += removedChunks

	stats.Duration = time.Since(startTime)
	idx.logger.Info("Indexing complete",
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"removed", stats.FilesRemoved,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration)
	return stats, nil
}

// discoverFiles finds all Go files under rootPath
func discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			// Skip vendor unless explicitly included
			if !config.IncludeVendor && d.Name() == "vendor" {
				return filepath.SkipDir
			}
			// Skip hidden directories and testdata
			if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "testdata" {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// prepareFiles parses files concurrently and diffs their chunks against the store
func (idx *Indexer) prepareFiles(ctx context.Context, root string, files []string, cfg *Config) ([]*fileWork, error) {
	work := make([]*fileWork, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, err := idx.prepareFile(gctx, root, path, cfg.Force)
			if err != nil {
				return err
			}
			work[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return work, nil
}

// prepareFile builds the chunks of one file. Storage errors are fatal;
// read errors mark the file failed.
func (idx *Indexer) prepareFile(ctx context.Context, root, path string, force bool) (*fileWork, error) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}
	w := &fileWork{relPath: filepath.ToSlash(relPath)}

	parsed, err := idx.parser.ParseFile(path)
	if err != nil {
		w.failed = err
		return w, nil
	}
	if parsed.Err != nil {
		idx.logger.Warn("Parse errors, indexing recovered symbols", "file", w.relPath, "error", parsed.Err)
	}

	w.symbols = len(parsed.Symbols)
	w.chunks = buildChunks(w.relPath, parsed)

	existing, err := idx.storage.ListCodeChunkIDs(ctx, w.relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for %s: %w", w.relPath, err)
	}
	ids := make([]string, len(w.chunks))
	produced := make(map[string]bool, len(w.chunks))
	for i, c := range w.chunks {
		ids[i] = c.ID
		produced[c.ID] = true
	}
	for _, id := range existing {
		if !produced[id] {
			w.stale = append(w.stale, id)
		}
	}

	stored := map[string]*storage.CodeChunk{}
	if !force && len(existing) > 0 {
		stored, err = idx.storage.GetCodeChunks(ctx, ids, storage.CodeFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to read chunks for %s: %w", w.relPath, err)
		}
	}
	for i, c := range w.chunks {
		prev, ok := stored[c.ID]
		switch {
		case !ok || prev.ContentHash != c.ContentHash:
			w.pending = append(w.pending, i)
		case prev.StartLine != c.StartLine || prev.EndLine != c.EndLine:
			w.moved = append(w.moved, i)
		}
	}
	return w, nil
}

// buildChunks makes one chunk per top-level symbol
func buildChunks(relPath string, parsed *parser.File) []*storage.CodeChunk {
	chunks := make([]*storage.CodeChunk, 0, len(parsed.Symbols))
	seen := make(map[string]int, len(parsed.Symbols))

	for i := range parsed.Symbols {
		sym := &parsed.Symbols[i]
		body := sourceLines(parsed.Lines, sym.Start.Line, sym.End.Line)
		if strings.TrimSpace(body) == "" {
			continue
		}

		// Blank identifiers and repeated init funcs share a name
		name := string(sym.Kind) + ":" + sym.QualifiedName()
		seen[name]++
		if n := seen[name]; n > 1 {
			name += "#" + strconv.Itoa(n)
		}

		content := fmt.Sprintf("// %s\npackage %s\n\n%s", relPath, parsed.Package, body)
		chunks = append(chunks, &storage.CodeChunk{
			ID:          chunkID(relPath, name),
			FilePath:    relPath,
			Package:     parsed.Package,
			SymbolName:  sym.QualifiedName(),
			SymbolKind:  sym.Kind,
			Signature:   sym.Signature,
			StartLine:   sym.Start.Line,
			EndLine:     sym.End.Line,
			Content:     content,
			ContentHash: contentHash(content),
		})
	}
	return chunks
}

// sourceLines returns lines start..end, 1-based and inclusive
func sourceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func chunkID(relPath, name string) string {
	sum := sha256.Sum256([]byte(relPath + "\x00" + name))
	return hex.EncodeToString(sum[:16])
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// embedPending embeds every pending chunk in batches. A failed batch marks
// the files it touched as failed and indexing continues.
func (idx *Indexer) embedPending(ctx context.Context, work []*fileWork, batchSize, workers int) error {
	type ref struct {
		file  *fileWork
		chunk int
	}
	var refs []ref
	for _, w := range work {
		if w.failed != nil {
			continue
		}
		w.vectors = make([][]float32, len(w.pending))
		for i := range w.pending {
			refs = append(refs, ref{file: w, chunk: i})
		}
	}
	if len(refs) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(refs); start += batchSize {
		batch := refs[start:min(start+batchSize, len(refs))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, r := range batch {
				texts[i] = embedText(r.file.chunks[r.file.pending[r.chunk]].Content)
			}

			vectors, err := idx.embedder.EmbedBatch(gctx, texts)
			if err == nil && len(vectors) != len(batch) {
				err = fmt.Errorf("%w: got %d embeddings for %d texts", embedder.ErrDimensionMismatch, len(vectors), len(batch))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				idx.logger.Warn("Embedding batch failed", "chunks", len(batch), "error", err)
				for _, r := range batch {
					if r.file.failed == nil {
						r.file.failed = fmt.Errorf("embedding failed: %w", err)
					}
				}
				return nil
			}
			for i, r := range batch {
				r.file.vectors[r.chunk] = vectors[i]
			}
			return nil
		})
	}
	return g.Wait()
}

func embedText(content string) string {
	if len(content) <= maxEmbedChars {
		return content
	}
	// Cut on a rune boundary
	cut := maxEmbedChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

// writeFile stores vectors first, then rows in one transaction, then drops
// stale vectors. A vector without a row is never returned by search.
func (idx *Indexer) writeFile(ctx context.Context, w *fileWork) error {
	for i, ci := range w.pending {
		c := w.chunks[ci]
		meta := map[string]string{
			vectorstore.MetaFilePath:   c.FilePath,
			vectorstore.MetaSymbol:     c.SymbolName,
			vectorstore.MetaSymbolKind: string(c.SymbolKind),
			vectorstore.MetaPackage:    c.Package,
		}
		if err := idx.vectors.Upsert(ctx, types.DocTypeCode, c.ID, c.Content, w.vectors[i], meta); err != nil {
			return fmt.Errorf("failed to store vector: %w", err)
		}
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, ci := range append(w.pending, w.moved...) {
		c := w.chunks[ci]
		c.IndexedAt = now
		if err := tx.UpsertCodeChunk(ctx, c); err != nil {
			return err
		}
	}
	if len(w.stale) > 0 {
		if _, err := tx.DeleteCodeChunks(ctx, w.stale); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(w.stale) > 0 {
		if err := idx.vectors.Delete(ctx, types.DocTypeCode, w.stale...); err != nil {
			idx.logger.Warn("Failed to delete stale vectors", "file", w.relPath, "error", err)
		}
	}
	return nil
}

// removeMissing deletes chunks of files that are no longer under the root
func (idx *Indexer) removeMissing(ctx context.Context, present map[string]bool) (int, int, error) {
	stored, err := idx.storage.ListCodeFiles(ctx)
	if err != nil {
		return 0, 0, err
	}

	files, chunks := 0, 0
	for _, path := range stored {
		if present[path] {
			continue
		}
		ids, err := idx.storage.ListCodeChunkIDs(ctx, path)
		if err != nil {
			return files, chunks, err
		}
		n, err := idx.storage.DeleteCodeChunks(ctx, ids)
		if err != nil {
			return files, chunks, err
		}
		if err := idx.vectors.Delete(ctx, types.DocTypeCode, ids...); err != nil {
			idx.logger.Warn("Failed to delete vectors of removed file", "file", path, "error", err)
		}
		idx.logger.Debug("Removed deleted file", "file", path, "chunks", n)
		files++
		chunks += n
	}
	return files, chunks, nil
}
