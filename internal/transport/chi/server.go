// Package chi exposes the HTTP API: hybrid search, index synchronization,
// course listing and health.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/request"
	"github.com/campushq/coursedex/internal/domain/search/result"
	"github.com/campushq/coursedex/internal/metrics"
	healthuc "github.com/campushq/coursedex/internal/usecase/health"
	syncuc "github.com/campushq/coursedex/internal/usecase/sync"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeRateLimited      = "rate_limited"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// Searcher is the search engine contract for the HTTP layer.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// Synchronizer reconciles the vector index.
type Synchronizer interface {
	Synchronize(ctx context.Context) (syncuc.Report, error)
}

// CourseSource lists known courses.
type CourseSource interface {
	Courses() []*document.Course
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API server.
type Server struct {
	search  Searcher
	sync    Synchronizer
	courses CourseSource
	health  HealthChecker
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	sync Synchronizer,
	courses CourseSource,
	healthSvc HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:  search,
		sync:    sync,
		courses: courses,
		health:  healthSvc,
		logger:  logger,
	}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/sync", s.handleSync)
		r.Get("/courses", s.handleCourses)
	})

	return r
}

type searchRequest struct {
	Query          string   `json:"query"`
	CourseID       string   `json:"course_id"`
	ItemTypes      []string `json:"item_types,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	SpecificDates  []string `json:"specific_dates,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Generality     string   `json:"generality,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	IncludeRelated bool     `json:"include_related,omitempty"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
	Count   int                `json:"count"`
}

// searchResultItem is an enriched document plus its match provenance.
// Internal similarity scores are not exposed.
type searchResultItem struct {
	Document *document.Document `json:"document"`
	Match    string             `json:"match"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	req, err := searchRequestToDomain(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			Document: res.Document(),
			Match:    matchLabel(res),
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: items, Count: len(items)})
}

// matchLabel exposes keyword hits under their document type so callers see
// what kind of item matched, not the retrieval internals.
func matchLabel(res result.Result) string {
	if res.Kind() == result.MatchKeyword {
		return string(res.Document().Type)
	}
	return string(res.Kind())
}

func searchRequestToDomain(body *searchRequest) (*request.Request, error) {
	tr, err := request.ParseTimeRange(body.TimeRange)
	if err != nil {
		return nil, err
	}

	types := make([]document.Type, 0, len(body.ItemTypes))
	for _, raw := range body.ItemTypes {
		t, err := document.ParseType(raw)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	req := &request.Request{
		Query:          body.Query,
		CourseID:       body.CourseID,
		ItemTypes:      types,
		TimeRange:      tr,
		SpecificDates:  body.SpecificDates,
		Keywords:       body.Keywords,
		Generality:     request.Generality(body.Generality),
		ExplicitTopK:   body.TopK,
		IncludeRelated: body.IncludeRelated,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.sync.Synchronize(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type courseItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code,omitempty"`
}

func (s *Server) handleCourses(w http.ResponseWriter, _ *http.Request) {
	courses := s.courses.Courses()
	items := make([]courseItem, len(courses))
	for i, c := range courses {
		items[i] = courseItem{ID: c.ID, Name: c.Name, CourseCode: c.CourseCode}
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": items, "count": len(items)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrCourseNotFound,
		domain.ErrInvalidRequest,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrSnapshotMalformed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeValidationFailed, msg)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrCourseNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, msg)
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, msg)
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, codeProviderError, msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
