// Package index persists vector index entries in the similarity store and
// runs filtered KNN queries against them.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campushq/coursedex/internal/db"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/filter"
)

// Timestamp metadata fields indexed for range filtering.
var timestampFields = []string{
	"due_timestamp",
	"posted_timestamp",
	"start_timestamp",
	"updated_timestamp",
}

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config holds the index repository settings.
type Config struct {
	KeyPrefix       string
	VectorDim       int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo implements the vector index repository over a db.Store.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector index repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

func (r *Repo) docKey(id string) string {
	return r.cfg.KeyPrefix + "doc:" + id
}

func (r *Repo) keyPattern() string {
	return r.cfg.KeyPrefix + "doc:*"
}

func (r *Repo) indexName() string {
	return r.cfg.KeyPrefix + "doc:idx"
}

// EnsureIndex creates the FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	builder := db.NewIndex(r.indexName()).
		Prefix(r.cfg.KeyPrefix+"doc:").
		Tag(fieldID).
		Tag(fieldType).
		Tag(fieldCourseID).
		Tag(fieldModuleID)
	for _, f := range timestampFields {
		builder = builder.Numeric(f)
	}
	def, err := builder.
		VectorHNSW(fieldVector, r.cfg.VectorDim, db.DistanceCosine, r.cfg.HNSWM, r.cfg.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// ListIDs returns every document id currently present in the vector index.
func (r *Repo) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.keyPattern())
	if err != nil {
		return nil, fmt.Errorf("scan index keys: %w", err)
	}

	prefix := r.cfg.KeyPrefix + "doc:"
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, prefix)
		// the index definition itself lives under the same prefix
		if id == "idx" || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpsertBatch writes entries into the store in one pipelined call. Existing
// entries with the same id are overwritten, making retries idempotent.
func (r *Repo) UpsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(entries))
	for i := range entries {
		items[i] = db.HashSetItem{
			Key:    r.docKey(entries[i].ID),
			Fields: entryFields(&entries[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}

// DeleteBatch removes the given ids from the index.
func (r *Repo) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}

	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// Query runs a filtered KNN search and returns hits ordered by similarity
// descending (the store returns nearest first).
func (r *Repo) Query(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]Hit, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldID, fieldType, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}

	hits := make([]Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := entry.Fields[fieldID]
		if id == "" {
			id = strings.TrimPrefix(entry.Key, r.cfg.KeyPrefix+"doc:")
		}
		hits = append(hits, Hit{
			ID:         id,
			Similarity: entry.Score,
			Type:       document.Type(entry.Fields[fieldType]),
		})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
