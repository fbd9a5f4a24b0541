// Package search implements the hybrid retrieval engine: filtered vector
// search fused with BM25 and keyword matching, plus related-document
// expansion and post-processing.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campushq/coursedex/internal/bm25"
	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/filter"
	"github.com/campushq/coursedex/internal/domain/search/request"
	"github.com/campushq/coursedex/internal/domain/search/result"
	"github.com/campushq/coursedex/internal/metrics"
	"github.com/campushq/coursedex/internal/usecase/postprocess"
)

// Result count bounds and scaling factors.
const (
	minTopK = 1
	maxTopK = 30

	allCoursesScale = 1.5
	nearTermScale   = 0.8

	maxConcurrentFetches = 4
)

// Config holds the tunable retrieval constants.
type Config struct {
	// MinScore drops semantic hits below this similarity.
	MinScore float64
	// FusionAlpha weights semantic vs lexical scores during fusion.
	FusionAlpha float64
	// KeywordScore is the fixed similarity assigned to literal keyword hits.
	KeywordScore float64
	BM25K1       float64
	BM25B        float64
}

// Service is the hybrid search engine.
type Service struct {
	docs      DocumentSource
	repo      IndexRepository
	embedder  Embedder
	formatter PassageFormatter
	fetcher   ContentFetcher
	courses   postprocess.CourseLookup
	cfg       Config
	logger    *zap.Logger
}

// New creates a search service. fetcher may be nil to disable file content
// hydration.
func New(
	docs DocumentSource,
	repo IndexRepository,
	embedder Embedder,
	formatter PassageFormatter,
	fetcher ContentFetcher,
	courses postprocess.CourseLookup,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		docs:      docs,
		repo:      repo,
		embedder:  embedder,
		formatter: formatter,
		fetcher:   fetcher,
		courses:   courses,
		cfg:       cfg,
		logger:    logger,
	}
}

// Search runs the full hybrid retrieval pipeline and returns ranked results,
// at most topK of them.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	start := time.Now()

	results, err := s.search(ctx, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	metrics.SearchDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.Observe(float64(len(results)))
	return results, nil
}

func (s *Service) search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err)
	}

	now := time.Now()
	w := resolveWindow(req, now)
	filters, err := buildFilter(req, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err)
	}

	topK := s.topK(req)

	semantic, err := s.vectorSearch(ctx, req, filters, topK)
	if err != nil {
		return nil, err
	}

	// BM25 runs over the locally filtered candidate space so both retrieval
	// paths see the same documents.
	candidates := s.filteredDocuments(req, w)
	var fused []result.Result
	if req.Query != "" && len(candidates) > 0 {
		scorer := bm25.NewScorer(candidates, s.cfg.BM25K1, s.cfg.BM25B)
		lexical := scorer.Search(req.Query, nil, topK)
		fused = bm25.Fuse(semantic, lexical, s.cfg.FusionAlpha)
	} else {
		fused = semantic
	}

	merged := mergeResults(fused, s.keywordMatches(req, w, candidates))

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})

	if req.IncludeRelated {
		merged = s.expandRelated(req, merged)
	}

	if err := s.hydrateFiles(ctx, merged); err != nil {
		return nil, err
	}

	merged = postprocess.Reorder(merged, req.Query)
	merged = postprocess.Augment(merged, s.courses)

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// topK derives the candidate count from generality and request shape.
func (s *Service) topK(req *request.Request) int {
	base := req.Generality.Count()
	if req.ExplicitTopK > 0 {
		base = req.ExplicitTopK
	}

	k := float64(base)
	if req.AllCoursesRequested() {
		k *= allCoursesScale
	}
	if req.TimeRange.IsNearTerm() {
		k *= nearTermScale
	}

	switch {
	case k < minTopK:
		return minTopK
	case k > maxTopK:
		return maxTopK
	default:
		return int(k)
	}
}

// vectorSearch embeds the query and runs the KNN query, degrading through a
// fallback chain when the store rejects a filter: full filter, course only,
// no filter, then empty results. Hits below MinScore are dropped.
func (s *Service) vectorSearch(
	ctx context.Context, req *request.Request, filters filter.Expression, topK int,
) ([]result.Result, error) {
	if req.Query == "" {
		return nil, nil
	}

	embRes, err := s.embedder.EmbedBatch(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vector := embRes.Embeddings[0]
	if domain.IsZeroVector(vector) {
		s.logger.Warn("query embedding degraded, skipping vector search")
		return nil, nil
	}

	hits, err := s.repo.Query(ctx, vector, filters, topK)
	if err != nil && !req.AllCoursesRequested() {
		s.logger.Warn("filtered vector query failed, retrying with course filter only", zap.Error(err))
		if courseOnly, ferr := courseOnlyFilter(req.CourseID); ferr == nil {
			hits, err = s.repo.Query(ctx, vector, courseOnly, topK)
		}
	}
	if err != nil {
		s.logger.Warn("vector query failed, retrying unfiltered", zap.Error(err))
		hits, err = s.repo.Query(ctx, vector, filter.Expression{}, topK)
	}
	if err != nil {
		s.logger.Error("vector search unavailable", zap.Error(err))
		return nil, nil
	}

	var results []result.Result
	for _, hit := range hits {
		if hit.Similarity < s.cfg.MinScore {
			continue
		}
		doc, err := s.docs.Get(hit.ID)
		if err != nil {
			// indexed but gone from the store; next sync removes it
			continue
		}
		results = append(results, result.New(doc, hit.Similarity, result.MatchSemantic))
	}
	return results, nil
}

func courseOnlyFilter(courseID string) (filter.Expression, error) {
	c, err := filter.NewMatch("course_id", courseID)
	if err != nil {
		return filter.Expression{}, err
	}
	return filter.NewExpression([]filter.Condition{c}, nil), nil
}

// filteredDocuments returns store documents passing the request filter.
func (s *Service) filteredDocuments(req *request.Request, w window) []*document.Document {
	var out []*document.Document
	for _, doc := range s.docs.Documents() {
		if matchesLocally(doc, req, w) {
			out = append(out, doc)
		}
	}
	return out
}

// keywordMatches finds documents whose formatted text literally contains any
// requested keyword. Hits carry a fixed high similarity so embedding-space
// imprecision cannot bury them.
func (s *Service) keywordMatches(
	req *request.Request, w window, candidates []*document.Document,
) []result.Result {
	if len(req.Keywords) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil
	}

	var out []result.Result
	for _, doc := range candidates {
		text := strings.ToLower(s.formatter.Format(doc))
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				out = append(out, result.New(doc, s.cfg.KeywordScore, result.MatchKeyword))
				break
			}
		}
	}
	return out
}

// mergeResults deduplicates by document id, keeping the higher score. The
// kind of the kept entry follows the winning score.
func mergeResults(base, extra []result.Result) []result.Result {
	byID := make(map[string]int, len(base))
	out := make([]result.Result, 0, len(base)+len(extra))

	for _, r := range base {
		if i, ok := byID[r.ID()]; ok {
			if r.Score() > out[i].Score() {
				out[i] = r
			}
			continue
		}
		byID[r.ID()] = len(out)
		out = append(out, r)
	}
	for _, r := range extra {
		if i, ok := byID[r.ID()]; ok {
			if r.Score() > out[i].Score() {
				out[i] = r
			}
			continue
		}
		byID[r.ID()] = len(out)
		out = append(out, r)
	}
	return out
}

// expandRelated appends each result's related documents at the minimum score
// floor, re-applying the course and type filter but not the time window.
func (s *Service) expandRelated(req *request.Request, results []result.Result) []result.Result {
	ids := make([]string, len(results))
	present := make(map[string]bool, len(results))
	for i, r := range results {
		ids[i] = r.ID()
		present[r.ID()] = true
	}

	for _, doc := range s.docs.Related(ids) {
		if present[doc.ID] {
			continue
		}
		if !matchesLocally(doc, req, window{}) {
			continue
		}
		present[doc.ID] = true
		results = append(results, result.New(doc, s.cfg.MinScore, result.MatchRelated))
	}
	return results
}

// hydrateFiles fetches extracted text for file results that have none yet.
// Fetch failures degrade to metadata-only results.
func (s *Service) hydrateFiles(ctx context.Context, results []result.Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, r := range results {
		doc := r.Document()
		if s.fetcher == nil || doc.Type != document.TypeFile || doc.Content != "" || doc.URL == "" {
			continue
		}

		g.Go(func() error {
			text, err := s.fetcher.Fetch(gctx, doc.URL)
			if err != nil {
				s.logger.Warn("file content hydration failed",
					zap.String("id", doc.ID),
					zap.Error(err))
				return nil
			}
			hydrated := *doc
			hydrated.Content = text
			results[i] = result.New(&hydrated, r.Score(), r.Kind())
			return nil
		})
	}

	return g.Wait()
}
