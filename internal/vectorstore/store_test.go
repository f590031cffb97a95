package vectorstore

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeintel/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", false, log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func TestStore_QueryOrdersBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "near", "near", []float32{1, 0.1, 0}, nil))
	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "far", "far", []float32{0, 1, 0}, nil))
	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "opposite", "opposite", []float32{-1, 0, 0}, map[string]string{"k": "v"}))

	matches, err := s.Query(ctx, types.DocTypeMemory, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "near", matches[0].ID)
	assert.Greater(t, matches[0].Similarity, 0.9)
	assert.Equal(t, "opposite", matches[2].ID)
	assert.Equal(t, 0.0, matches[2].Similarity, "negative similarity clamps to zero")
	assert.Equal(t, "v", matches[2].Metadata["k"])

	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.0)
		assert.LessOrEqual(t, m.Similarity, 1.0)
	}
}

func TestStore_QueryLimits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	matches, err := s.Query(ctx, types.DocTypePlan, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches, "empty collection")

	require.NoError(t, s.Upsert(ctx, types.DocTypePlan, "a", "", []float32{1, 0}, nil))
	require.NoError(t, s.Upsert(ctx, types.DocTypePlan, "b", "", []float32{0, 1}, nil))

	matches, err = s.Query(ctx, types.DocTypePlan, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = s.Query(ctx, types.DocTypePlan, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = s.Query(ctx, types.DocTypePlan, []float32{0, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestStore_QueryWhere(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "near", "", []float32{1, 0}, map[string]string{MetaSessionID: "s1"}))
	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "mid", "", []float32{1, 1}, map[string]string{MetaSessionID: "s1"}))
	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "far", "", []float32{0, 1}, map[string]string{MetaSessionID: "s2"}))
	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "bare", "", []float32{1, 0.1}, nil))

	matches, err := s.Query(ctx, types.DocTypeMemory, []float32{1, 0}, 1, map[string]string{MetaSessionID: "s2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "far", matches[0].ID, "where applies before the top n cut")

	matches, err = s.Query(ctx, types.DocTypeMemory, []float32{1, 0}, 4, map[string]string{MetaSessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, matches, 2, "fewer matches than n when where is selective")
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "mid", matches[1].ID)

	matches, err = s.Query(ctx, types.DocTypeMemory, []float32{1, 0}, 4, map[string]string{MetaSessionID: "none"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.Query(ctx, types.DocTypeMemory, []float32{1, 0}, 4, map[string]string{})
	require.NoError(t, err)
	assert.Len(t, matches, 4, "empty where matches everything")
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, types.DocTypeCode, "x", "", []float32{1, 0}, nil))
	assert.Equal(t, 1, s.Count(types.DocTypeCode))
	assert.Equal(t, 0, s.Count(types.DocTypeSession))

	matches, err := s.Query(ctx, types.DocTypeSession, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = s.Query(ctx, types.DocType("bogus"), []float32{1, 0}, 3, nil)
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestStore_UpsertReplacesAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := []float32{3, 4}
	require.NoError(t, s.Upsert(ctx, types.DocTypeCode, "x", "v1", vec, nil))
	assert.Equal(t, []float32{3, 4}, vec, "caller slice is not modified")

	require.NoError(t, s.Upsert(ctx, types.DocTypeCode, "x", "v2", []float32{0, 1}, nil))
	assert.Equal(t, 1, s.Count(types.DocTypeCode))

	matches, err := s.Query(ctx, types.DocTypeCode, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "v2", matches[0].Content)

	require.NoError(t, s.Delete(ctx, types.DocTypeCode, "x", "missing"))
	assert.Equal(t, 0, s.Count(types.DocTypeCode))
	require.NoError(t, s.Delete(ctx, types.DocTypeCode))

	assert.ErrorIs(t, s.Upsert(ctx, types.DocTypeCode, "z", "", []float32{0, 0}, nil), ErrZeroVector)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, false, log.New(io.Discard))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, types.DocTypeMemory, "m1", "remember", []float32{1, 2, 3}, nil))

	reopened, err := Open(dir, false, log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count(types.DocTypeMemory))
	assert.Equal(t, 1, reopened.Counts()[types.DocTypeMemory])
}
