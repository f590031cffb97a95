package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/pkg/types"
)

type mockRows struct {
	status *storage.Status
	err    error
}

func (m mockRows) GetStatus(context.Context) (*storage.Status, error) {
	return m.status, m.err
}

type mockVectors map[types.DocType]int

func (m mockVectors) Counts() map[types.DocType]int {
	return m
}

func TestReporter_Report(t *testing.T) {
	rows := mockRows{status: &storage.Status{CodeChunks: 10, Memories: 3, Plans: 1, Sessions: 2, SchemaVersion: "1.1.0"}}
	vectors := mockVectors{types.DocTypeCode: 10, types.DocTypeMemory: 4, types.DocTypePlan: 1, types.DocTypeSession: 1}
	info := EmbedderInfo{Provider: "local", Model: "hashed-bow", Dimension: 384}

	r := NewReporter(rows, vectors, info, "v1.2.3")
	rep, err := r.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.1.0", rep.Storage.SchemaVersion)
	assert.Equal(t, 4, rep.Vectors[types.DocTypeMemory])
	assert.Equal(t, info, rep.Embedder)
	assert.Equal(t, "v1.2.3", rep.Version)
	assert.Equal(t, map[types.DocType]int{types.DocTypeMemory: 1, types.DocTypeSession: -1}, rep.Stale())
}

func TestReporter_StorageError(t *testing.T) {
	boom := errors.New("database is locked")
	r := NewReporter(mockRows{err: boom}, mockVectors{}, EmbedderInfo{}, "")

	_, err := r.Report(context.Background())
	assert.ErrorIs(t, err, boom)
}
