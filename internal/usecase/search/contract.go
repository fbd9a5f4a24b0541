package search

import (
	"context"

	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/filter"
	"github.com/campushq/coursedex/internal/repository/index"
)

// DocumentSource is the local document store view the engine needs.
type DocumentSource interface {
	Get(id string) (*document.Document, error)
	Documents() []*document.Document
	Related(ids []string) []*document.Document
}

// IndexRepository runs filtered KNN queries against the vector index.
type IndexRepository interface {
	Query(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]index.Hit, error)
}

// Embedder embeds query text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// PassageFormatter renders documents for keyword matching.
type PassageFormatter interface {
	Format(doc *document.Document) string
}

// ContentFetcher hydrates file contents on demand.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
