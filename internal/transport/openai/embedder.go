// Package openai implements the embedding provider over the OpenAI-compatible
// embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/metrics"
)

// Defaults applied when the config leaves a knob unset.
const (
	DefaultBatchSize = 32
	DefaultMaxChars  = 8000

	maxConcurrentBatches = 4
)

// Embedder is a batch embedding provider using the OpenAI-compatible API
// (e.g. Nebius). A failed batch degrades to zero vectors instead of failing
// the whole call.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	batchSize  int
	maxChars   int
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	MaxChars   int
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible batch embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		maxChars:   maxChars,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// EmbedBatch implements domain.BatchEmbedder. It always returns exactly
// len(texts) vectors in input order; vectors of a failed batch are zero
// vectors and counted in Degraded.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncate(t, e.maxChars)
	}

	type batchOut struct {
		embeddings   [][]float32
		promptTokens int
		totalTokens  int
		failed       bool
	}

	batches := chunk(truncated, e.batchSize)
	outs := make([]batchOut, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for i, batch := range batches {
		g.Go(func() error {
			vecs, prompt, total, err := e.embedOne(gctx, batch)
			if err != nil {
				if e.logger != nil {
					e.logger.Warn("embedding batch degraded to zero vectors",
						zap.Int("batch", i),
						zap.Int("size", len(batch)),
						zap.Error(err))
				}
				metrics.EmbeddingDegradedTotal.WithLabelValues(e.provider, string(e.model)).Add(float64(len(batch)))
				outs[i] = batchOut{embeddings: zeroVectors(len(batch), e.dimensions), failed: true}
				return nil
			}
			outs[i] = batchOut{embeddings: vecs, promptTokens: prompt, totalTokens: total}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	res := domain.BatchEmbeddingResult{
		Embeddings: make([][]float32, 0, len(texts)),
	}
	for _, out := range outs {
		res.Embeddings = append(res.Embeddings, out.embeddings...)
		res.PromptTokens += out.promptTokens
		res.TotalTokens += out.totalTokens
		if out.failed {
			res.Degraded += len(out.embeddings)
		}
	}
	return res, nil
}

// embedOne sends a single batch and reconciles the vector count with the
// input count: short responses are padded with zero vectors, long ones cut.
func (e *Embedder) embedOne(ctx context.Context, batch []string) ([][]float32, int, int, error) {
	req := openai.EmbeddingRequest{
		Input:          batch,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "api_error").Inc()
		return nil, 0, 0, parseAPIError(err)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(resp.Usage.TotalTokens))
	}

	vecs := make([][]float32, 0, len(batch))
	for _, d := range resp.Data {
		vecs = append(vecs, d.Embedding)
	}

	if len(vecs) > len(batch) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "count_mismatch").Inc()
		vecs = vecs[:len(batch)]
	}
	for len(vecs) < len(batch) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "count_mismatch").Inc()
		vecs = append(vecs, domain.ZeroVector(e.dimensions))
	}

	return vecs, resp.Usage.PromptTokens, resp.Usage.TotalTokens, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	// Back off a multi-byte rune straddling the cut so the tail stays valid UTF-8.
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func chunk(texts []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batches = append(batches, texts[start:end])
	}
	return batches
}

func zeroVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = domain.ZeroVector(dim)
	}
	return vecs
}

// parseAPIError extracts a human-readable error from the API response.
// Rate limits map to domain.ErrRateLimited; everything else wraps
// domain.ErrEmbeddingProviderError.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap := wrapFor(reqErr.HTTPStatusCode)
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrapFor(apiErr.HTTPStatusCode))
	}

	return fmt.Errorf("embedding request failed: %w", domain.ErrEmbeddingProviderError)
}

func wrapFor(status int) error {
	if status == 429 {
		return domain.ErrRateLimited
	}
	return domain.ErrEmbeddingProviderError
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
