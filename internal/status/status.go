// Package status assembles the health summary shown by the CLI, the REST
// API and the MCP get_status tool.
package status

import (
	"context"
	"fmt"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/pkg/types"
)

// RowSource reports relational row counts
type RowSource interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// VectorSource reports vector counts per doc type
type VectorSource interface {
	Counts() map[types.DocType]int
}

// EmbedderInfo describes the active embedding provider
type EmbedderInfo struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Report is a point-in-time status snapshot
type Report struct {
	Storage  *storage.Status       `json:"storage"`
	Vectors  map[types.DocType]int `json:"vectors"`
	Embedder EmbedderInfo          `json:"embedder"`
	Version  string                `json:"version,omitempty"`
}

// Stale returns, per doc type, how many vectors have no relational row.
// Negative values mean rows that were never embedded.
func (r *Report) Stale() map[types.DocType]int {
	rows := map[types.DocType]int{
		types.DocTypeCode:    r.Storage.CodeChunks,
		types.DocTypeMemory:  r.Storage.Memories,
		types.DocTypePlan:    r.Storage.Plans,
		types.DocTypeSession: r.Storage.Sessions,
	}
	out := make(map[types.DocType]int, len(rows))
	for dt, n := range rows {
		if d := r.Vectors[dt] - n; d != 0 {
			out[dt] = d
		}
	}
	return out
}

// Reporter builds reports from the stores
type Reporter struct {
	rows     RowSource
	vectors  VectorSource
	embedder EmbedderInfo
	version  string
}

// NewReporter creates a Reporter
func NewReporter(rows RowSource, vectors VectorSource, embedder EmbedderInfo, version string) *Reporter {
	return &Reporter{rows: rows, vectors: vectors, embedder: embedder, version: version}
}

// Report gathers the current counts
func (r *Reporter) Report(ctx context.Context) (*Report, error) {
	st, err := r.rows.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage status: %w", err)
	}
	return &Report{
		Storage:  st,
		Vectors:  r.vectors.Counts(),
		Embedder: r.embedder,
		Version:  r.version,
	}, nil
}
