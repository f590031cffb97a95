package searcher

import (
	"context"
	"strings"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
	"github.com/dshills/codeintel/pkg/types"
)

// snippetLines bounds the code excerpt carried in hit metadata
const snippetLines = 12

// globMeta are the SQLite GLOB special characters
const globMeta = "*?["

// CodeSearcher searches indexed code chunks.
// Filters: path (GLOB), symbol_kind, package.
type CodeSearcher struct {
	vectors VectorQuerier
	rows    storage.Reader
}

// NewCodeSearcher creates a code searcher
func NewCodeSearcher(vectors VectorQuerier, rows storage.Reader) *CodeSearcher {
	return &CodeSearcher{vectors: vectors, rows: rows}
}

func (s *CodeSearcher) DocType() types.DocType { return types.DocTypeCode }

func (s *CodeSearcher) Find(ctx context.Context, vector []float32, filters types.Filters, limit int) ([]types.CandidateHit, error) {
	filter := storage.CodeFilter{
		SymbolKind: strings.ToLower(filters.Get(types.FilterSymbolKind)),
		Package:    filters.Get(types.FilterPackage),
	}
	if p := filters.Get(types.FilterPath); p != "" {
		filter.PathGlob = types.NormalizePath(p)
	}

	// A pattern without glob syntax names one file
	exactPath := ""
	if !strings.ContainsAny(filter.PathGlob, globMeta) {
		exactPath = filter.PathGlob
	}

	q := search[*storage.CodeChunk]{
		dt: types.DocTypeCode,
		where: equal(
			vectorstore.MetaSymbolKind, filter.SymbolKind,
			vectorstore.MetaPackage, filter.Package,
			vectorstore.MetaFilePath, exactPath,
		),
		load: func(ctx context.Context, ids []string) (map[string]*storage.CodeChunk, error) {
			return s.rows.GetCodeChunks(ctx, ids, filter)
		},
		meta: func(c *storage.CodeChunk) types.Metadata {
			return types.CodeMetadata{
				FilePath:   c.FilePath,
				SymbolName: c.SymbolName,
				SymbolKind: c.SymbolKind,
				Package:    c.Package,
				StartLine:  c.StartLine,
				EndLine:    c.EndLine,
				Snippet:    snippet(c.Content, snippetLines),
			}
		},
	}
	return q.run(ctx, s.vectors, vector, limit)
}

func snippet(content string, maxLines int) string {
	lines := strings.SplitN(content, "\n", maxLines+1)
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "...")
	}
	return strings.Join(lines, "\n")
}
