// Package hydrate fetches file contents over HTTP and extracts plain text,
// caching extractions so repeated searches do not re-download.
package hydrate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/passage"
)

const (
	defaultCacheSize = 256
	defaultMaxBytes  = 4 << 20
	defaultTimeout   = 15 * time.Second
)

// Extractor converts a fetched payload into plain text. contentType is the
// response Content-Type header, possibly with parameters.
type Extractor interface {
	Extract(contentType string, data []byte) (string, error)
}

// Fetcher downloads file contents and caches extracted text by URL.
type Fetcher struct {
	client    *http.Client
	cache     *lru.Cache[string, string]
	extractor Extractor
	maxBytes  int64
	logger    *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithExtractor overrides the text extractor.
func WithExtractor(e Extractor) Option {
	return func(f *Fetcher) { f.extractor = e }
}

// WithMaxBytes caps the downloaded payload size.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// NewFetcher creates a content fetcher with an LRU extraction cache.
func NewFetcher(cacheSize int, logger *zap.Logger, opts ...Option) (*Fetcher, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create content cache: %w", err)
	}

	f := &Fetcher{
		client:    &http.Client{Timeout: defaultTimeout},
		cache:     cache,
		extractor: textExtractor{},
		maxBytes:  defaultMaxBytes,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch returns the extracted text for url, downloading it on a cache miss.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("empty url")
	}

	if text, ok := f.cache.Get(url); ok {
		return text, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text, err := f.extractor.Extract(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	f.cache.Add(url, text)
	return text, nil
}

// textExtractor handles plain text and HTML payloads. Binary formats return
// an empty string rather than garbage bytes.
type textExtractor struct{}

func (textExtractor) Extract(contentType string, data []byte) (string, error) {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))

	switch {
	case strings.HasPrefix(mediaType, "text/html"), strings.HasSuffix(mediaType, "+html"):
		return passage.StripMarkup(string(data)), nil
	case strings.HasPrefix(mediaType, "text/"), mediaType == "application/json":
		return passage.NormalizeText(string(data)), nil
	default:
		return "", nil
	}
}
