package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidRow is returned when a row is missing required fields
	ErrInvalidRow = errors.New("invalid row")
)

// maxBatchIDs keeps IN lists under SQLite's bound parameter limit
const maxBatchIDs = 500

// nowFunc is replaced in tests
var nowFunc = time.Now

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
	queries
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, queries: queries{q: db}}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, queries: queries{q: tx}}, nil
}

// GetStatus returns row counts and build information
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Driver: DriverName, BuildMode: BuildMode}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM code_chunks", &status.CodeChunks},
		{"SELECT COUNT(DISTINCT file_path) FROM code_chunks", &status.Files},
		{"SELECT COUNT(*) FROM memories", &status.Memories},
		{"SELECT COUNT(*) FROM plans", &status.Plans},
		{"SELECT COUNT(*) FROM sessions", &status.Sessions},
		{"SELECT COUNT(*) FROM activities", &status.Activities},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()
	return status, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
	queries
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// queries holds the statements shared by the database and transactions
type queries struct {
	q querier
}

// Code chunk operations

const codeChunkColumns = `id, file_path, package_name, symbol_name, symbol_kind, signature,
	start_line, end_line, content, content_hash, indexed_at`

func (r queries) UpsertCodeChunk(ctx context.Context, chunk *CodeChunk) error {
	if chunk.ID == "" || chunk.FilePath == "" {
		return fmt.Errorf("%w: code chunk requires id and file path", ErrInvalidRow)
	}
	if chunk.IndexedAt.IsZero() {
		chunk.IndexedAt = nowFunc()
	}
	query := `
		INSERT INTO code_chunks (` + codeChunkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			package_name = excluded.package_name,
			symbol_name = excluded.symbol_name,
			symbol_kind = excluded.symbol_kind,
			signature = excluded.signature,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			content = excluded.content,
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at
	`
	_, err := r.q.ExecContext(ctx, query,
		chunk.ID, chunk.FilePath, chunk.Package, chunk.SymbolName, string(chunk.SymbolKind),
		chunk.Signature, chunk.StartLine, chunk.EndLine, chunk.Content, chunk.ContentHash,
		toMillis(chunk.IndexedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert code chunk: %w", err)
	}
	return nil
}

func (r queries) GetCodeChunks(ctx context.Context, ids []string, filter CodeFilter) (map[string]*CodeChunk, error) {
	var where predicates
	if filter.PathGlob != "" {
		where.add("file_path GLOB ?", filter.PathGlob)
	}
	if filter.SymbolKind != "" {
		where.add("symbol_kind = ?", filter.SymbolKind)
	}
	if filter.Package != "" {
		where.add("package_name = ?", filter.Package)
	}

	result := make(map[string]*CodeChunk, len(ids))
	err := forEachBatch(ids, func(batch []string) error {
		query, args := where.selectByIDs("SELECT "+codeChunkColumns+" FROM code_chunks", batch)
		rows, err := r.q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query code chunks: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var c CodeChunk
			var kind string
			var indexedAt int64
			if err := rows.Scan(&c.ID, &c.FilePath, &c.Package, &c.SymbolName, &kind, &c.Signature,
				&c.StartLine, &c.EndLine, &c.Content, &c.ContentHash, &indexedAt); err != nil {
				return err
			}
			c.SymbolKind = symbolKind(kind)
			c.IndexedAt = fromMillis(indexedAt)
			result[c.ID] = &c
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r queries) ListCodeChunkIDs(ctx context.Context, filePath string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id FROM code_chunks WHERE file_path = ? ORDER BY start_line", filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListCodeFiles returns every file path that has at least one chunk
func (r queries) ListCodeFiles(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT DISTINCT file_path FROM code_chunks ORDER BY file_path")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (r queries) DeleteCodeChunks(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	err := forEachBatch(ids, func(batch []string) error {
		query, args := predicates{}.selectByIDs("DELETE FROM code_chunks", batch)
		res, err := r.q.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete code chunks: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted += int(n)
		return nil
	})
	return deleted, err
}

// Memory operations

const memoryColumns = `id, memory_type, observation, importance, tags, session_id, created_at, updated_at`

func (r queries) UpsertMemory(ctx context.Context, memory *Memory) error {
	if memory.ID == "" || memory.MemoryType == "" {
		return fmt.Errorf("%w: memory requires id and type", ErrInvalidRow)
	}
	now := nowFunc()
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = now
	}
	memory.UpdatedAt = now
	query := `
		INSERT INTO memories (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			memory_type = excluded.memory_type,
			observation = excluded.observation,
			importance = excluded.importance,
			tags = excluded.tags,
			session_id = excluded.session_id,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		memory.ID, memory.MemoryType, memory.Observation, string(memory.Importance),
		encodeTags(memory.Tags), nullString(memory.SessionID),
		toMillis(memory.CreatedAt), toMillis(memory.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}

func (r queries) GetMemories(ctx context.Context, ids []string, filter MemoryFilter) (map[string]*Memory, error) {
	var where predicates
	if filter.MemoryType != "" {
		where.add("memory_type = ?", filter.MemoryType)
	}
	if filter.SessionID != "" {
		where.add("session_id = ?", filter.SessionID)
	}
	where.anyTag(filter.Tags)
	where.timeRange("created_at", filter.Since, filter.Until)

	result := make(map[string]*Memory, len(ids))
	err := forEachBatch(ids, func(batch []string) error {
		query, args := where.selectByIDs("SELECT "+memoryColumns+" FROM memories", batch)
		rows, err := r.q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query memories: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var m Memory
			var importance, tags string
			var sessionID sql.NullString
			var createdAt, updatedAt int64
			if err := rows.Scan(&m.ID, &m.MemoryType, &m.Observation, &importance, &tags,
				&sessionID, &createdAt, &updatedAt); err != nil {
				return err
			}
			m.Importance = importanceOf(importance)
			m.Tags = decodeTags(tags)
			m.SessionID = sessionID.String
			m.CreatedAt = fromMillis(createdAt)
			m.UpdatedAt = fromMillis(updatedAt)
			result[m.ID] = &m
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r queries) DeleteMemory(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "memories", id)
}

// Plan operations

const planColumns = `id, title, content, status, importance, created_at, updated_at`

func (r queries) UpsertPlan(ctx context.Context, plan *Plan) error {
	if plan.ID == "" || plan.Title == "" {
		return fmt.Errorf("%w: plan requires id and title", ErrInvalidRow)
	}
	if plan.Status == "" {
		plan.Status = PlanDraft
	}
	now := nowFunc()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			status = excluded.status,
			importance = excluded.importance,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		plan.ID, plan.Title, plan.Content, plan.Status, string(plan.Importance),
		toMillis(plan.CreatedAt), toMillis(plan.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

func (r queries) GetPlans(ctx context.Context, ids []string, filter PlanFilter) (map[string]*Plan, error) {
	var where predicates
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	where.timeRange("created_at", filter.Since, filter.Until)

	result := make(map[string]*Plan, len(ids))
	err := forEachBatch(ids, func(batch []string) error {
		query, args := where.selectByIDs("SELECT "+planColumns+" FROM plans", batch)
		rows, err := r.q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query plans: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var p Plan
			var importance string
			var createdAt, updatedAt int64
			if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Status, &importance,
				&createdAt, &updatedAt); err != nil {
				return err
			}
			p.Importance = importanceOf(importance)
			p.CreatedAt = fromMillis(createdAt)
			p.UpdatedAt = fromMillis(updatedAt)
			result[p.ID] = &p
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r queries) DeletePlan(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "plans", id)
}

// Session operations

const sessionColumns = `id, title, summary, status, started_at, ended_at, updated_at,
	(SELECT COUNT(*) FROM activities a WHERE a.session_id = sessions.id)`

func (r queries) UpsertSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return fmt.Errorf("%w: session requires id", ErrInvalidRow)
	}
	if session.Status == "" {
		session.Status = SessionActive
	}
	now := nowFunc()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	session.UpdatedAt = now

	var endedAt sql.NullInt64
	if session.EndedAt != nil {
		endedAt = sql.NullInt64{Int64: toMillis(*session.EndedAt), Valid: true}
	}
	query := `
		INSERT INTO sessions (id, title, summary, status, started_at, ended_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		session.ID, session.Title, session.Summary, session.Status,
		toMillis(session.StartedAt), endedAt, toMillis(session.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r queries) GetSessions(ctx context.Context, ids []string, filter SessionFilter) (map[string]*Session, error) {
	var where predicates
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.SessionID != "" {
		where.add("id = ?", filter.SessionID)
	}
	where.timeRange("started_at", filter.Since, filter.Until)

	result := make(map[string]*Session, len(ids))
	err := forEachBatch(ids, func(batch []string) error {
		query, args := where.selectByIDs("SELECT "+sessionColumns+" FROM sessions", batch)
		rows, err := r.q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query sessions: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var s Session
			var startedAt, updatedAt int64
			var endedAt sql.NullInt64
			if err := rows.Scan(&s.ID, &s.Title, &s.Summary, &s.Status, &startedAt, &endedAt,
				&updatedAt, &s.ActivityCount); err != nil {
				return err
			}
			s.StartedAt = fromMillis(startedAt)
			s.UpdatedAt = fromMillis(updatedAt)
			if endedAt.Valid {
				t := fromMillis(endedAt.Int64)
				s.EndedAt = &t
			}
			result[s.ID] = &s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r queries) DeleteSession(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "sessions", id)
}

func (r queries) InsertActivity(ctx context.Context, activity *Activity) error {
	if activity.SessionID == "" || activity.Kind == "" {
		return fmt.Errorf("%w: activity requires session id and kind", ErrInvalidRow)
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = nowFunc()
	}
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO activities (session_id, kind, content, created_at) VALUES (?, ?, ?, ?)",
		activity.SessionID, activity.Kind, activity.Content, toMillis(activity.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	activity.ID = id

	// Activity bumps the session's last-active time
	_, err = r.q.ExecContext(ctx, "UPDATE sessions SET updated_at = MAX(updated_at, ?) WHERE id = ?",
		toMillis(activity.CreatedAt), activity.SessionID)
	return err
}

func (r queries) ListActivities(ctx context.Context, sessionID string) ([]*Activity, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, kind, content, created_at
		FROM activities
		WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	activities := make([]*Activity, 0)
	for rows.Next() {
		var a Activity
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &a.Content, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(createdAt)
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}

func (r queries) deleteByID(ctx context.Context, table, id string) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// predicates accumulates AND-ed WHERE clauses and their arguments
type predicates struct {
	clauses []string
	args    []interface{}
}

func (p *predicates) add(clause string, args ...interface{}) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

// anyTag matches rows carrying at least one of tags
func (p *predicates) anyTag(tags []string) {
	var ors []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		ors = append(ors, `tags LIKE ? ESCAPE '\'`)
		p.args = append(p.args, "%,"+escapeLike(tag)+",%")
	}
	if len(ors) > 0 {
		p.clauses = append(p.clauses, "("+strings.Join(ors, " OR ")+")")
	}
}

// timeRange bounds column inclusively; zero times are open ends
func (p *predicates) timeRange(column string, since, until time.Time) {
	if !since.IsZero() {
		p.add(column+" >= ?", toMillis(since))
	}
	if !until.IsZero() {
		p.add(column+" <= ?", toMillis(until))
	}
}

// selectByIDs builds "<prefix> WHERE id IN (...) AND ..." for one batch of ids
func (p predicates) selectByIDs(prefix string, ids []string) (string, []interface{}) {
	args := make([]interface{}, 0, len(ids)+len(p.args))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, p.args...)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" WHERE id IN (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","))
	b.WriteString(")")
	for _, clause := range p.clauses {
		b.WriteString(" AND ")
		b.WriteString(clause)
	}
	return b.String(), args
}

// forEachBatch calls fn with consecutive slices of at most maxBatchIDs ids
func forEachBatch(ids []string, fn func([]string) error) error {
	for start := 0; start < len(ids); start += maxBatchIDs {
		end := start + maxBatchIDs
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}
