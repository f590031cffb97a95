package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/philippgille/chromem-go"

	"github.com/dshills/codeintel/pkg/types"
)

// ErrUnknownCollection is returned for a doc type without a collection
var ErrUnknownCollection = errors.New("unknown collection")

// ErrZeroVector is returned for a vector with no direction
var ErrZeroVector = errors.New("zero vector")

// errNoEmbedding backs the collection embedding func; every document is
// added with a precomputed vector
var errNoEmbedding = errors.New("vectorstore: documents must carry an embedding")

// Metadata keys written with each document. Query where maps match them
// exactly.
const (
	MetaFilePath   = "file_path"
	MetaSymbol     = "symbol"
	MetaSymbolKind = "symbol_kind"
	MetaPackage    = "package"
	MetaMemoryType = "memory_type"
	MetaSessionID  = "session_id"
	MetaStatus     = "status"
)

// Match is one nearest-neighbour result
type Match struct {
	ID         string
	Similarity float64 // Cosine similarity clamped to [0, 1]
	Content    string
	Metadata   map[string]string
}

// Store implements vector storage on chromem-go
type Store struct {
	db          *chromem.DB
	collections map[types.DocType]*chromem.Collection
	logger      *log.Logger
}

// Open opens a persistent store under dir, or an in-memory store when dir
// is empty
func Open(dir string, compress bool, logger *log.Logger) (*Store, error) {
	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		dbPath := filepath.Join(dir, "chromem-go")
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create chromem database: %w", err)
		}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errNoEmbedding
	}

	s := &Store{
		db:          db,
		collections: make(map[types.DocType]*chromem.Collection, len(types.AllDocTypes)),
		logger:      logger,
	}
	for _, dt := range types.AllDocTypes {
		c, err := db.GetOrCreateCollection(dt.String(), nil, embed)
		if err != nil {
			return nil, fmt.Errorf("failed to create collection %s: %w", dt, err)
		}
		s.collections[dt] = c
	}

	logger.Info("Opened vector store",
		"path", dir,
		"code", s.Count(types.DocTypeCode),
		"memory", s.Count(types.DocTypeMemory),
		"plan", s.Count(types.DocTypePlan),
		"session", s.Count(types.DocTypeSession))

	return s, nil
}

func (s *Store) collection(dt types.DocType) (*chromem.Collection, error) {
	c, ok := s.collections[dt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, dt)
	}
	return c, nil
}

// Upsert stores or replaces the embedding for id
func (s *Store) Upsert(ctx context.Context, dt types.DocType, id, text string, vector []float32, metadata map[string]string) error {
	c, err := s.collection(dt)
	if err != nil {
		return err
	}
	if len(vector) == 0 {
		return errNoEmbedding
	}
	if isZero(vector) {
		return ErrZeroVector
	}

	// The collection may normalize in place; copy so the caller's slice is untouched
	embedding := make([]float32, len(vector))
	copy(embedding, vector)

	doc, err := chromem.NewDocument(ctx, id, metadata, embedding, text, nil)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	if err := c.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add document to collection: %w", err)
	}

	s.logger.Debug("Stored embedding", "doc_type", dt, "id", id)
	return nil
}

// Delete removes ids from the collection, ignoring ids that are not present
func (s *Store) Delete(ctx context.Context, dt types.DocType, ids ...string) error {
	c, err := s.collection(dt)
	if err != nil {
		return err
	}

	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := c.GetByID(ctx, id); err == nil {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := c.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Query returns up to n nearest neighbours of vector, most similar first.
// Only documents whose metadata holds every where pair are considered; a nil
// where considers them all. An empty collection yields no matches.
func (s *Store) Query(ctx context.Context, dt types.DocType, vector []float32, n int, where map[string]string) ([]Match, error) {
	c, err := s.collection(dt)
	if err != nil {
		return nil, err
	}

	count := c.Count()
	if n <= 0 || count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	if isZero(vector) {
		return nil, ErrZeroVector
	}

	query := make([]float32, len(vector))
	copy(query, vector)

	if len(where) == 0 {
		where = nil
	}
	results, err := c.QueryEmbedding(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:         r.ID,
			Similarity: clampSimilarity(float64(r.Similarity)),
			Content:    r.Content,
			Metadata:   r.Metadata,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

// Count returns the number of documents of a doc type
func (s *Store) Count(dt types.DocType) int {
	c, ok := s.collections[dt]
	if !ok {
		return 0
	}
	return c.Count()
}

// Counts returns document counts for every doc type
func (s *Store) Counts() map[types.DocType]int {
	out := make(map[types.DocType]int, len(s.collections))
	for dt, c := range s.collections {
		out[dt] = c.Count()
	}
	return out
}

// Close is a no-op; chromem persists on every write
func (s *Store) Close() error {
	return nil
}

func isZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}
	return true
}

func clampSimilarity(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
