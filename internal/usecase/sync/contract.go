package sync

import (
	"context"

	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/repository/index"
)

// DocumentSource is the local document store view the synchronizer needs.
type DocumentSource interface {
	IDs() []string
	Get(id string) (*document.Document, error)
}

// IndexRepository is the vector index contract for synchronization.
type IndexRepository interface {
	EnsureIndex(ctx context.Context) error
	ListIDs(ctx context.Context) ([]string, error)
	UpsertBatch(ctx context.Context, entries []index.Entry) error
	DeleteBatch(ctx context.Context, ids []string) error
}

// PassageFormatter renders a document into its embedding text.
type PassageFormatter interface {
	Format(doc *document.Document) string
}

// Embedder is re-declared here so the service depends only on what it uses.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
