package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/filter"
	"github.com/campushq/coursedex/internal/domain/search/request"
	"github.com/campushq/coursedex/internal/domain/search/result"
	"github.com/campushq/coursedex/internal/repository/index"
)

type fakeSource struct {
	docs    []*document.Document
	related []*document.Document
}

func (f *fakeSource) Get(id string) (*document.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (f *fakeSource) Documents() []*document.Document { return f.docs }

func (f *fakeSource) Related([]string) []*document.Document { return f.related }

type fakeIndex struct {
	// errs holds the error for the n-th Query call; past the end, calls
	// succeed and return hits.
	errs    []error
	hits    []index.Hit
	filters []filter.Expression
	ks      []int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, filters filter.Expression, k int) ([]index.Hit, error) {
	call := len(f.filters)
	f.filters = append(f.filters, filters)
	f.ks = append(f.ks, k)
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return f.hits, nil
}

type fakeQueryEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeQueryEmbedder) EmbedBatch(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = f.vector
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

type fakeTextFormatter struct {
	texts map[string]string
}

func (f *fakeTextFormatter) Format(doc *document.Document) string {
	if t, ok := f.texts[doc.ID]; ok {
		return t
	}
	return doc.DisplayTitle()
}

type fakeFetcher struct {
	content string
	err     error
	urls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.content, f.err
}

type fakeCourses struct{}

func (fakeCourses) Course(string) (*document.Course, error) {
	return nil, domain.ErrCourseNotFound
}

func testConfig() Config {
	return Config{MinScore: 0.3, FusionAlpha: 0.7, KeywordScore: 0.93}
}

func newTestService(src *fakeSource, idx *fakeIndex, emb *fakeQueryEmbedder, fm *fakeTextFormatter, fetch ContentFetcher) *Service {
	if fm == nil {
		fm = &fakeTextFormatter{}
	}
	return New(src, idx, emb, fm, fetch, fakeCourses{}, testConfig(), zap.NewNop())
}

func TestSearch_InvalidRequest(t *testing.T) {
	svc := newTestService(&fakeSource{}, &fakeIndex{}, &fakeQueryEmbedder{}, nil, nil)

	tests := []struct {
		name string
		req  request.Request
	}{
		{"no query or keywords", request.Request{CourseID: "c1"}},
		{"missing course", request.Request{Query: "q"}},
		{"bad time range", request.Request{Query: "q", CourseID: "c1", TimeRange: "SOMEDAY"}},
		{"bad item type", request.Request{Query: "q", CourseID: "c1", ItemTypes: []document.Type{"widget"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), &tc.req)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestTopK(t *testing.T) {
	svc := newTestService(&fakeSource{}, &fakeIndex{}, &fakeQueryEmbedder{}, nil, nil)

	tests := []struct {
		name string
		req  request.Request
		want int
	}{
		{"low generality", request.Request{Generality: request.GeneralityLow, CourseID: "c1"}, 5},
		{"medium by default", request.Request{CourseID: "c1"}, 10},
		{"high generality", request.Request{Generality: request.GeneralityHigh, CourseID: "c1"}, 20},
		{"explicit override", request.Request{Generality: request.GeneralityHigh, ExplicitTopK: 8, CourseID: "c1"}, 8},
		{"all courses scales up", request.Request{Generality: request.GeneralityLow, CourseID: request.AllCourses}, 7},
		{"near term scales down", request.Request{Generality: request.GeneralityLow, CourseID: "c1", TimeRange: request.TimeNearFuture}, 4},
		{"both scales compose", request.Request{Generality: request.GeneralityLow, CourseID: request.AllCourses, TimeRange: request.TimeRecentPast}, 6},
		{"upper clamp", request.Request{ExplicitTopK: 40, CourseID: "c1"}, 30},
		{"lower clamp", request.Request{ExplicitTopK: 1, CourseID: "c1", TimeRange: request.TimeNearFuture}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.topK(&tc.req); got != tc.want {
				t.Errorf("topK() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSearch_SemanticResults(t *testing.T) {
	src := &fakeSource{docs: []*document.Document{
		{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Thermodynamics lab"},
		{ID: "a2", Type: document.TypeAssignment, CourseID: "c1", Name: "Optics lab"},
	}}
	idx := &fakeIndex{hits: []index.Hit{
		{ID: "a1", Similarity: 0.9},
		{ID: "a2", Similarity: 0.2},  // below MinScore
		{ID: "gone", Similarity: 0.8}, // indexed but absent from the store
	}}
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	results, err := svc.Search(context.Background(), &request.Request{Query: "zzz", CourseID: "c1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].ID() != "a1" {
		t.Errorf("result = %s, want a1", results[0].ID())
	}
}

func TestSearch_FallbackChain(t *testing.T) {
	src := &fakeSource{docs: []*document.Document{
		{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Lab report"},
	}}
	idx := &fakeIndex{
		errs: []error{errors.New("filter rejected"), errors.New("filter rejected")},
		hits: []index.Hit{{ID: "a1", Similarity: 0.9}},
	}
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	req := &request.Request{
		Query:     "zzz",
		CourseID:  "c1",
		ItemTypes: []document.Type{document.TypeAssignment},
	}
	results, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(idx.filters) != 3 {
		t.Fatalf("query calls = %d, want 3 (full, course-only, unfiltered)", len(idx.filters))
	}
	if got := len(idx.filters[0].Must()); got != 2 {
		t.Errorf("first call must conditions = %d, want 2", got)
	}
	if got := idx.filters[1].Must(); len(got) != 1 || got[0].Key() != "course_id" {
		t.Errorf("second call should filter by course only, got %v", got)
	}
	if !idx.filters[2].IsEmpty() {
		t.Error("third call should be unfiltered")
	}
	if len(results) != 1 || results[0].ID() != "a1" {
		t.Errorf("unexpected results after fallback: %v", results)
	}
}

func TestSearch_FallbackSkipsCourseRetryForAllCourses(t *testing.T) {
	src := &fakeSource{docs: []*document.Document{
		{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Lab report"},
	}}
	idx := &fakeIndex{
		errs: []error{errors.New("filter rejected")},
		hits: []index.Hit{{ID: "a1", Similarity: 0.9}},
	}
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	req := &request.Request{
		Query:     "zzz",
		CourseID:  request.AllCourses,
		TimeRange: request.TimeNearFuture,
	}
	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(idx.filters) != 2 {
		t.Errorf("query calls = %d, want 2 (no course-only retry for all courses)", len(idx.filters))
	}
}

func TestSearch_VectorStoreDownDegradesToLexical(t *testing.T) {
	src := &fakeSource{docs: []*document.Document{
		{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Quicksort homework", Description: "implement quicksort"},
		{ID: "a2", Type: document.TypeAssignment, CourseID: "c1", Name: "Essay", Description: "write about history"},
		{ID: "a3", Type: document.TypeAssignment, CourseID: "c1", Name: "Graph homework", Description: "search trees"},
	}}
	idx := &fakeIndex{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	results, err := svc.Search(context.Background(), &request.Request{Query: "quicksort", CourseID: "c1"})
	if err != nil {
		t.Fatalf("Search should degrade, not fail: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected lexical results while the vector store is down")
	}
	if results[0].ID() != "a1" {
		t.Errorf("top result = %s, want a1", results[0].ID())
	}
}

func TestSearch_DegradedQueryEmbeddingSkipsVectorSearch(t *testing.T) {
	src := &fakeSource{docs: []*document.Document{
		{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Lab"},
	}}
	idx := &fakeIndex{}
	emb := &fakeQueryEmbedder{vector: []float32{0, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	if _, err := svc.Search(context.Background(), &request.Request{Query: "zzz", CourseID: "c1"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(idx.filters) != 0 {
		t.Errorf("vector store queried %d times with a zero query vector", len(idx.filters))
	}
}

func TestSearch_EmbedErrorFails(t *testing.T) {
	svc := newTestService(&fakeSource{}, &fakeIndex{}, &fakeQueryEmbedder{err: errors.New("quota")}, nil, nil)
	if _, err := svc.Search(context.Background(), &request.Request{Query: "q", CourseID: "c1"}); err == nil {
		t.Error("expected error when query embedding fails")
	}
}

func TestSearch_KeywordMatches(t *testing.T) {
	src := &fakeSource{docs: []*document.Document{
		{ID: "s1", Type: document.TypeSyllabus, CourseID: "c1", Title: "Algorithms Syllabus"},
		{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Homework"},
	}}
	fm := &fakeTextFormatter{texts: map[string]string{
		"s1": "Algorithms Syllabus is a syllabus for Algorithms. Grading policy inside.",
		"a1": "Homework is a assignment for Algorithms.",
	}}

	svc := newTestService(src, &fakeIndex{}, &fakeQueryEmbedder{}, fm, nil)
	req := &request.Request{CourseID: "c1", Keywords: []string{"  Grading Policy "}}
	results, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].ID() != "s1" {
		t.Errorf("result = %s, want s1", results[0].ID())
	}
	if results[0].Kind() != result.MatchKeyword {
		t.Errorf("kind = %s, want keyword", results[0].Kind())
	}
	if results[0].Score() != testConfig().KeywordScore {
		t.Errorf("score = %f, want fixed keyword score", results[0].Score())
	}
}

func TestSearch_RelatedExpansion(t *testing.T) {
	hit := &document.Document{ID: "a1", Type: document.TypeAssignment, CourseID: "c1", Name: "Lab"}
	mate := &document.Document{ID: "a2", Type: document.TypeAssignment, CourseID: "c1", Name: "Lab 2"}
	foreign := &document.Document{ID: "x1", Type: document.TypeAssignment, CourseID: "c9", Name: "Other"}

	src := &fakeSource{
		docs:    []*document.Document{hit, mate},
		related: []*document.Document{mate, foreign},
	}
	idx := &fakeIndex{hits: []index.Hit{{ID: "a1", Similarity: 0.9}}}
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	req := &request.Request{Query: "zzz", CourseID: "c1", IncludeRelated: true}
	results, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	ids := make(map[string]result.MatchKind, len(results))
	for _, r := range results {
		ids[r.ID()] = r.Kind()
	}
	if _, ok := ids["a2"]; !ok {
		t.Error("related document a2 missing from results")
	}
	if ids["a2"] != result.MatchRelated {
		t.Errorf("a2 kind = %s, want related", ids["a2"])
	}
	if _, ok := ids["x1"]; ok {
		t.Error("related document from another course must be filtered out")
	}
}

func TestSearch_HydratesFileContent(t *testing.T) {
	file := &document.Document{
		ID: "f1", Type: document.TypeFile, CourseID: "c1",
		DisplayName: "Lab manual", URL: "https://files.example/f1",
	}
	src := &fakeSource{docs: []*document.Document{file}}
	fm := &fakeTextFormatter{texts: map[string]string{"f1": "lab manual file"}}
	fetch := &fakeFetcher{content: "extracted manual text"}

	svc := newTestService(src, &fakeIndex{}, &fakeQueryEmbedder{}, fm, fetch)
	req := &request.Request{CourseID: "c1", Keywords: []string{"manual"}}
	results, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(fetch.urls) != 1 || fetch.urls[0] != file.URL {
		t.Fatalf("fetched urls = %v", fetch.urls)
	}
	if len(results) != 1 || results[0].Document().Content != "extracted manual text" {
		t.Errorf("content not hydrated: %+v", results[0].Document())
	}
	// The store's canonical document stays untouched.
	if file.Content != "" {
		t.Errorf("canonical document mutated: %q", file.Content)
	}
}

func TestSearch_HydrationFailureDegrades(t *testing.T) {
	file := &document.Document{
		ID: "f1", Type: document.TypeFile, CourseID: "c1",
		DisplayName: "Lab manual", URL: "https://files.example/f1",
	}
	src := &fakeSource{docs: []*document.Document{file}}
	fm := &fakeTextFormatter{texts: map[string]string{"f1": "lab manual file"}}
	fetch := &fakeFetcher{err: errors.New("404")}

	svc := newTestService(src, &fakeIndex{}, &fakeQueryEmbedder{}, fm, fetch)
	req := &request.Request{CourseID: "c1", Keywords: []string{"manual"}}
	results, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search should not fail on a fetch error: %v", err)
	}
	if len(results) != 1 || results[0].Document().Content != "" {
		t.Errorf("expected a metadata-only result, got %+v", results[0].Document())
	}
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	var docs []*document.Document
	var hits []index.Hit
	for i := 0; i < 10; i++ {
		id := string(rune('a'+i)) + "1"
		docs = append(docs, &document.Document{ID: id, Type: document.TypeAssignment, CourseID: "c1", Name: "Doc " + id})
		hits = append(hits, index.Hit{ID: id, Similarity: 0.9})
	}
	src := &fakeSource{docs: docs}
	idx := &fakeIndex{hits: hits}
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}

	svc := newTestService(src, idx, emb, nil, nil)
	req := &request.Request{Query: "zzz", CourseID: "c1", ExplicitTopK: 3}
	results, err := svc.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
}

func TestMergeResults(t *testing.T) {
	d1 := &document.Document{ID: "d1"}
	d2 := &document.Document{ID: "d2"}

	base := []result.Result{
		result.New(d1, 0.5, result.MatchHybrid),
		result.New(d2, 0.4, result.MatchHybrid),
	}
	extra := []result.Result{
		result.New(d1, 0.93, result.MatchKeyword),
	}

	merged := mergeResults(base, extra)
	if len(merged) != 2 {
		t.Fatalf("merged = %d, want 2", len(merged))
	}
	if merged[0].ID() != "d1" || merged[0].Score() != 0.93 {
		t.Errorf("d1 should keep the higher keyword score, got %f", merged[0].Score())
	}
	if merged[0].Kind() != result.MatchKeyword {
		t.Errorf("kept kind = %s, want keyword", merged[0].Kind())
	}
}
