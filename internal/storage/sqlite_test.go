package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeintel/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

var day0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)

	status, err := storage.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.Equal(t, DriverName, status.Driver)
	assert.Equal(t, BuildMode, status.BuildMode)
	assert.Zero(t, status.CodeChunks)
}

func TestMigrations_Rollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err := currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version.String())

	// Re-applying brings the schema back to current
	require.NoError(t, ApplyMigrations(ctx, storage.db))
	version, err = currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestCodeChunks(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	chunks := []*CodeChunk{
		{ID: "c1", FilePath: "internal/auth/login.go", Package: "auth", SymbolName: "Login", SymbolKind: types.KindFunction, StartLine: 10, EndLine: 20, Content: "func Login()", ContentHash: "h1"},
		{ID: "c2", FilePath: "internal/auth/token.go", Package: "auth", SymbolName: "Token", SymbolKind: types.KindStruct, StartLine: 5, EndLine: 9, Content: "type Token struct{}", ContentHash: "h2"},
		{ID: "c3", FilePath: "cmd/app/main.go", Package: "main", SymbolName: "main", SymbolKind: types.KindFunction, StartLine: 1, EndLine: 4, Content: "func main()", ContentHash: "h3"},
	}
	for _, c := range chunks {
		require.NoError(t, storage.UpsertCodeChunk(ctx, c))
	}
	ids := []string{"c1", "c2", "c3", "missing"}

	tests := []struct {
		name   string
		filter CodeFilter
		want   []string
	}{
		{"no filter", CodeFilter{}, []string{"c1", "c2", "c3"}},
		{"path glob", CodeFilter{PathGlob: "internal/*"}, []string{"c1", "c2"}},
		{"path glob single file", CodeFilter{PathGlob: "*/token.go"}, []string{"c2"}},
		{"symbol kind", CodeFilter{SymbolKind: "function"}, []string{"c1", "c3"}},
		{"package", CodeFilter{Package: "main"}, []string{"c3"}},
		{"combined", CodeFilter{PathGlob: "internal/*", SymbolKind: "function"}, []string{"c1"}},
		{"no match", CodeFilter{Package: "nope"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.GetCodeChunks(ctx, ids, tt.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, keys(got))
		})
	}

	got, err := storage.GetCodeChunks(ctx, []string{"c1"}, CodeFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Login", got["c1"].SymbolName)
	assert.Equal(t, types.KindFunction, got["c1"].SymbolKind)
	assert.Equal(t, 10, got["c1"].StartLine)

	listed, err := storage.ListCodeChunkIDs(ctx, "internal/auth/login.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, listed)

	files, err := storage.ListCodeFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd/app/main.go", "internal/auth/login.go", "internal/auth/token.go"}, files)

	n, err := storage.DeleteCodeChunks(ctx, []string{"c1", "c2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.CodeChunks)
	assert.Equal(t, 1, status.Files)
}

func TestCodeChunks_Upsert(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	chunk := &CodeChunk{ID: "c1", FilePath: "a.go", SymbolName: "A", StartLine: 1, EndLine: 2, Content: "v1", ContentHash: "h1"}
	require.NoError(t, storage.UpsertCodeChunk(ctx, chunk))
	chunk.Content = "v2"
	require.NoError(t, storage.UpsertCodeChunk(ctx, chunk))

	got, err := storage.GetCodeChunks(ctx, []string{"c1"}, CodeFilter{})
	require.NoError(t, err)
	assert.Equal(t, "v2", got["c1"].Content)

	err = storage.UpsertCodeChunk(ctx, &CodeChunk{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidRow)
}

func TestCodeChunks_LargeBatch(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ids := make([]string, 0, maxBatchIDs+25)
	for i := 0; i < maxBatchIDs+25; i++ {
		id := fmt.Sprintf("c%04d", i)
		ids = append(ids, id)
		require.NoError(t, storage.UpsertCodeChunk(ctx, &CodeChunk{ID: id, FilePath: "big.go", StartLine: i, EndLine: i, Content: id, ContentHash: id}))
	}

	got, err := storage.GetCodeChunks(ctx, ids, CodeFilter{})
	require.NoError(t, err)
	assert.Len(t, got, len(ids))

	n, err := storage.DeleteCodeChunks(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, len(ids), n)
}

func TestMemories(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	memories := []*Memory{
		{ID: "m1", MemoryType: "decision", Observation: "use JWT", Importance: types.ImportanceHigh, Tags: []string{"auth", "security"}, SessionID: "s1", CreatedAt: day0},
		{ID: "m2", MemoryType: "gotcha", Observation: "100% of tests", Importance: types.ImportanceLow, Tags: []string{"testing"}, CreatedAt: day0.AddDate(0, 0, 5)},
		{ID: "m3", MemoryType: "decision", Observation: "cache tokens", Importance: types.ImportanceMedium, Tags: []string{"auth_cache"}, CreatedAt: day0.AddDate(0, 0, 10)},
	}
	for _, m := range memories {
		require.NoError(t, storage.UpsertMemory(ctx, m))
	}
	ids := []string{"m1", "m2", "m3"}

	tests := []struct {
		name   string
		filter MemoryFilter
		want   []string
	}{
		{"no filter", MemoryFilter{}, []string{"m1", "m2", "m3"}},
		{"memory type", MemoryFilter{MemoryType: "decision"}, []string{"m1", "m3"}},
		{"single tag", MemoryFilter{Tags: []string{"auth"}}, []string{"m1"}},
		{"any tag", MemoryFilter{Tags: []string{"auth", "testing"}}, []string{"m1", "m2"}},
		{"underscore is literal", MemoryFilter{Tags: []string{"auth_cache"}}, []string{"m3"}},
		{"session", MemoryFilter{SessionID: "s1"}, []string{"m1"}},
		{"since inclusive", MemoryFilter{Since: day0.AddDate(0, 0, 5)}, []string{"m2", "m3"}},
		{"until inclusive", MemoryFilter{Until: day0.AddDate(0, 0, 5)}, []string{"m1", "m2"}},
		{"range", MemoryFilter{Since: day0.AddDate(0, 0, 1), Until: day0.AddDate(0, 0, 9)}, []string{"m2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.GetMemories(ctx, ids, tt.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, keys(got))
		})
	}

	got, err := storage.GetMemories(ctx, []string{"m1"}, MemoryFilter{})
	require.NoError(t, err)
	m := got["m1"]
	require.NotNil(t, m)
	assert.Equal(t, []string{"auth", "security"}, m.Tags)
	assert.Equal(t, types.ImportanceHigh, m.Importance)
	assert.Equal(t, "s1", m.SessionID)
	assert.True(t, day0.Equal(m.CreatedAt))

	require.NoError(t, storage.DeleteMemory(ctx, "m1"))
	assert.ErrorIs(t, storage.DeleteMemory(ctx, "m1"), ErrNotFound)
}

func TestPlans(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.UpsertPlan(ctx, &Plan{ID: "p1", Title: "Auth rewrite", Status: PlanActive, Importance: types.ImportanceHigh, CreatedAt: day0}))
	require.NoError(t, storage.UpsertPlan(ctx, &Plan{ID: "p2", Title: "Docs", CreatedAt: day0.AddDate(0, 1, 0)}))

	got, err := storage.GetPlans(ctx, []string{"p1", "p2"}, PlanFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, PlanDraft, got["p2"].Status)
	assert.Equal(t, types.ImportanceLow, got["p2"].Importance)

	got, err = storage.GetPlans(ctx, []string{"p1", "p2"}, PlanFilter{Status: PlanActive})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1"}, keys(got))

	got, err = storage.GetPlans(ctx, []string{"p1", "p2"}, PlanFilter{Since: day0.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p2"}, keys(got))

	assert.ErrorIs(t, storage.UpsertPlan(ctx, &Plan{ID: "p3"}), ErrInvalidRow)
	require.NoError(t, storage.DeletePlan(ctx, "p2"))
	assert.ErrorIs(t, storage.DeletePlan(ctx, "p2"), ErrNotFound)
}

func TestSessionsAndActivities(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ended := day0.Add(2 * time.Hour)
	require.NoError(t, storage.UpsertSession(ctx, &Session{ID: "s1", Title: "Auth work", Status: SessionCompleted, StartedAt: day0, EndedAt: &ended}))
	require.NoError(t, storage.UpsertSession(ctx, &Session{ID: "s2", Title: "Docs", StartedAt: day0.AddDate(0, 0, 3)}))

	for i := 0; i < 3; i++ {
		require.NoError(t, storage.InsertActivity(ctx, &Activity{SessionID: "s1", Kind: "edit", Content: fmt.Sprintf("step %d", i), CreatedAt: day0.Add(time.Duration(i) * time.Minute)}))
	}

	got, err := storage.GetSessions(ctx, []string{"s1", "s2"}, SessionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got["s1"].ActivityCount)
	assert.Equal(t, 0, got["s2"].ActivityCount)
	require.NotNil(t, got["s1"].EndedAt)
	assert.True(t, ended.Equal(*got["s1"].EndedAt))
	assert.Nil(t, got["s2"].EndedAt)
	assert.Equal(t, SessionActive, got["s2"].Status)

	got, err = storage.GetSessions(ctx, []string{"s1", "s2"}, SessionFilter{Status: SessionCompleted})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1"}, keys(got))

	got, err = storage.GetSessions(ctx, []string{"s1", "s2"}, SessionFilter{SessionID: "s2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s2"}, keys(got))

	got, err = storage.GetSessions(ctx, []string{"s1", "s2"}, SessionFilter{Until: day0.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1"}, keys(got))

	activities, err := storage.ListActivities(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, activities, 3)
	assert.Equal(t, "step 0", activities[0].Content)
	assert.Greater(t, activities[0].ID, int64(0))

	// Activities require an existing session
	err = storage.InsertActivity(ctx, &Activity{SessionID: "nope", Kind: "edit"})
	assert.Error(t, err)

	// Deleting a session cascades to its activities
	require.NoError(t, storage.DeleteSession(ctx, "s1"))
	activities, err = storage.ListActivities(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertMemory(ctx, &Memory{ID: "m1", MemoryType: "decision", Observation: "x"}))
	require.NoError(t, tx.Rollback())

	got, err := storage.GetMemories(ctx, []string{"m1"}, MemoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertMemory(ctx, &Memory{ID: "m1", MemoryType: "decision", Observation: "x"}))
	require.NoError(t, tx.Commit())

	got, err = storage.GetMemories(ctx, []string{"m1"}, MemoryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEncodeTags(t *testing.T) {
	assert.Equal(t, "", encodeTags(nil))
	assert.Equal(t, ",a,b,", encodeTags([]string{" a ", "", "b"}))
	assert.Equal(t, []string{"a", "b"}, decodeTags(",a,b,"))
	assert.Nil(t, decodeTags(""))
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
