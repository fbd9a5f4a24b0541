// Package sync reconciles the local document store against the vector index.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/metrics"
	"github.com/campushq/coursedex/internal/repository/index"
)

// DefaultRetryBatchSize is the sub-batch size used when a bulk upsert fails.
const DefaultRetryBatchSize = 50

// Report summarizes one synchronization run. Failed counts documents whose
// sub-batch upsert still failed after retry; they stay absent from the index
// until the next run.
type Report struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`
	Degraded int `json:"degraded"`
}

// Service synchronizes documents into the vector index. Runs are serialized;
// concurrent Synchronize calls queue behind the mutex.
type Service struct {
	docs      DocumentSource
	repo      IndexRepository
	formatter PassageFormatter
	embedder  Embedder

	retryBatchSize int
	logger         *zap.Logger

	mu gosync.Mutex
}

// New creates a synchronizer.
func New(
	docs DocumentSource,
	repo IndexRepository,
	formatter PassageFormatter,
	embedder Embedder,
	retryBatchSize int,
	logger *zap.Logger,
) *Service {
	if retryBatchSize <= 0 {
		retryBatchSize = DefaultRetryBatchSize
	}
	return &Service{
		docs:           docs,
		repo:           repo,
		formatter:      formatter,
		embedder:       embedder,
		retryBatchSize: retryBatchSize,
		logger:         logger,
	}
}

// Synchronize reconciles the vector index with the document store: stale
// entries are deleted, missing documents are embedded and upserted. The
// operation is idempotent; re-running after a partial failure completes the
// remainder.
func (s *Service) Synchronize(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	report, err := s.synchronize(ctx)
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return report, err
	}
	metrics.SyncRunsTotal.WithLabelValues("success").Inc()
	metrics.SyncDocumentsTotal.WithLabelValues("upserted").Add(float64(report.Upserted))
	metrics.SyncDocumentsTotal.WithLabelValues("deleted").Add(float64(report.Deleted))
	metrics.SyncDocumentsTotal.WithLabelValues("failed").Add(float64(report.Failed))
	return report, nil
}

func (s *Service) synchronize(ctx context.Context) (Report, error) {
	var report Report

	if err := s.repo.EnsureIndex(ctx); err != nil {
		return report, fmt.Errorf("ensure index: %w", err)
	}

	indexedIDs, err := s.repo.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list indexed ids: %w", err)
	}

	localIDs := s.docs.IDs()
	local := make(map[string]bool, len(localIDs))
	for _, id := range localIDs {
		local[id] = true
	}

	var stale []string
	indexed := make(map[string]bool, len(indexedIDs))
	for _, id := range indexedIDs {
		indexed[id] = true
		if !local[id] {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		if err := s.repo.DeleteBatch(ctx, stale); err != nil {
			return report, fmt.Errorf("delete stale entries: %w", err)
		}
		report.Deleted = len(stale)
		s.logger.Info("deleted stale index entries", zap.Int("count", len(stale)))
	}

	var missing []*document.Document
	for _, id := range localIDs {
		if indexed[id] {
			continue
		}
		doc, err := s.docs.Get(id)
		if err != nil {
			continue
		}
		missing = append(missing, doc)
	}
	if len(missing) == 0 {
		return report, nil
	}

	passages := make([]string, len(missing))
	for i, doc := range missing {
		passages[i] = s.formatter.Format(doc)
	}

	embRes, err := s.embedder.EmbedBatch(ctx, passages)
	if err != nil {
		return report, fmt.Errorf("embed passages: %w", err)
	}
	report.Degraded = embRes.Degraded

	entries := make([]index.Entry, len(missing))
	for i, doc := range missing {
		entries[i] = index.Entry{
			ID:      doc.ID,
			Passage: passages[i],
			Vector:  embRes.Embeddings[i],
			Meta:    buildMetadata(doc),
		}
	}

	upserted, failed := s.upsertWithRetry(ctx, entries)
	report.Upserted = upserted
	report.Failed = failed

	s.logger.Info("synchronization finished",
		zap.Int("upserted", report.Upserted),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
		zap.Int("degraded", report.Degraded))
	return report, nil
}

// upsertWithRetry tries one bulk upsert; on failure it falls back to fixed
// sub-batches so one bad entry cannot sink the whole run. Sub-batches that
// fail are counted, not rolled back.
func (s *Service) upsertWithRetry(ctx context.Context, entries []index.Entry) (upserted, failed int) {
	if err := s.repo.UpsertBatch(ctx, entries); err == nil {
		return len(entries), 0
	} else {
		s.logger.Warn("bulk upsert failed, retrying in sub-batches",
			zap.Int("entries", len(entries)),
			zap.Int("sub_batch_size", s.retryBatchSize),
			zap.Error(err))
	}

	for start := 0; start < len(entries); start += s.retryBatchSize {
		if ctx.Err() != nil {
			failed += len(entries) - start
			return upserted, failed
		}

		end := min(start+s.retryBatchSize, len(entries))
		batch := entries[start:end]

		if err := s.repo.UpsertBatch(ctx, batch); err != nil {
			s.logger.Error("sub-batch upsert failed",
				zap.Int("offset", start),
				zap.Int("size", len(batch)),
				zap.Error(err))
			failed += len(batch)
			continue
		}
		upserted += len(batch)
	}
	return upserted, failed
}

// buildMetadata derives the flat filterable record for one document. An
// unparseable date leaves the timestamp unset rather than failing.
func buildMetadata(doc *document.Document) index.Metadata {
	meta := index.Metadata{
		Type:     doc.Type,
		CourseID: doc.CourseID,
		ModuleID: doc.ModuleID,
	}

	field, raw := doc.TimestampField()
	if field == "" || raw == "" {
		return meta
	}
	t, err := document.ParseSnapshotTime(raw)
	if err != nil {
		return meta
	}
	meta.TimestampField = field
	meta.Timestamp = t.Unix()
	return meta
}
