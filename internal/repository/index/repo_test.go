package index

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/campushq/coursedex/internal/db"
	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/filter"
)

type fakeStore struct {
	scanKeys  []string
	scanErr   error
	exists    bool
	existsErr error
	createErr error
	hsetErr   error
	searchRes *db.SearchResult
	searchErr error
	count     int
	countErr  error

	created   []*db.IndexDefinition
	hsetItems []db.HashSetItem
	deleted   []string
	knnQuery  *db.KNNQuery
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.hsetItems = append(f.hsetItems, items...)
	return f.hsetErr
}

func (f *fakeStore) DelMulti(_ context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeStore) Scan(context.Context, string) ([]string, error) { return f.scanKeys, f.scanErr }

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.created = append(f.created, def)
	return f.createErr
}

func (f *fakeStore) IndexExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.knnQuery = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchRes, nil
}

func (f *fakeStore) SearchCount(context.Context, string, string) (int, error) {
	return f.count, f.countErr
}

func testRepo(s *fakeStore) *Repo {
	return New(s, Config{KeyPrefix: "coursedex:", VectorDim: 4, HNSWM: 16, HNSWEFConstruct: 200})
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	s := &fakeStore{}
	if err := testRepo(s).EnsureIndex(t.Context()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	if len(s.created) != 1 {
		t.Fatalf("created %d indexes, want 1", len(s.created))
	}
	def := s.created[0]
	if def.Name != "coursedex:doc:idx" {
		t.Errorf("index name = %q", def.Name)
	}
	if !reflect.DeepEqual(def.Prefixes, []string{"coursedex:doc:"}) {
		t.Errorf("prefixes = %v", def.Prefixes)
	}
	// 4 tags + 4 timestamp numerics + 1 vector.
	if len(def.Fields) != 9 {
		t.Errorf("fields = %d, want 9", len(def.Fields))
	}
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	s := &fakeStore{exists: true}
	if err := testRepo(s).EnsureIndex(t.Context()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if len(s.created) != 0 {
		t.Errorf("index recreated despite existing")
	}
}

func TestEnsureIndex_ToleratesConcurrentCreate(t *testing.T) {
	s := &fakeStore{createErr: db.ErrIndexExists}
	if err := testRepo(s).EnsureIndex(t.Context()); err != nil {
		t.Errorf("concurrent create should not fail: %v", err)
	}
}

func TestListIDs(t *testing.T) {
	s := &fakeStore{scanKeys: []string{
		"coursedex:doc:a1",
		"coursedex:doc:idx",
		"coursedex:doc:syllabus_c1",
	}}
	ids, err := testRepo(s).ListIDs(t.Context())
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a1", "syllabus_c1"}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestUpsertBatch(t *testing.T) {
	s := &fakeStore{}
	entries := []Entry{
		{
			ID:      "a1",
			Passage: "Homework 1 is a assignment for Algorithms.",
			Vector:  []float32{1, 0, 0, 0},
			Meta: Metadata{
				Type:           document.TypeAssignment,
				CourseID:       "c1",
				ModuleID:       "m1",
				TimestampField: "due_timestamp",
				Timestamp:      1700000000,
			},
		},
	}
	if err := testRepo(s).UpsertBatch(t.Context(), entries); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	if len(s.hsetItems) != 1 {
		t.Fatalf("items = %d, want 1", len(s.hsetItems))
	}
	item := s.hsetItems[0]
	if item.Key != "coursedex:doc:a1" {
		t.Errorf("key = %q", item.Key)
	}
	for field, want := range map[string]string{
		"id":            "a1",
		"type":          "assignment",
		"course_id":     "c1",
		"module_id":     "m1",
		"due_timestamp": strconv.FormatInt(1700000000, 10),
		"__passage":     entries[0].Passage,
	} {
		if got := item.Fields[field]; got != want {
			t.Errorf("field %s = %q, want %q", field, got, want)
		}
	}
	if len(item.Fields["vector"]) != 16 {
		t.Errorf("vector blob = %d bytes, want 16", len(item.Fields["vector"]))
	}
}

func TestUpsertBatch_Empty(t *testing.T) {
	s := &fakeStore{}
	if err := testRepo(s).UpsertBatch(t.Context(), nil); err != nil {
		t.Fatal(err)
	}
	if len(s.hsetItems) != 0 {
		t.Error("empty upsert should not touch the store")
	}
}

func TestDeleteBatch(t *testing.T) {
	s := &fakeStore{}
	if err := testRepo(s).DeleteBatch(t.Context(), []string{"a1", "a2"}); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if !reflect.DeepEqual(s.deleted, []string{"coursedex:doc:a1", "coursedex:doc:a2"}) {
		t.Errorf("deleted = %v", s.deleted)
	}
}

func TestQuery(t *testing.T) {
	s := &fakeStore{searchRes: &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			{Key: "coursedex:doc:a1", Score: 0.95, Fields: map[string]string{"id": "a1", "type": "assignment"}},
			{Key: "coursedex:doc:q7", Score: 0.61, Fields: map[string]string{"type": "quiz"}},
		},
	}}

	f, err := filter.NewMatch("course_id", "c1")
	if err != nil {
		t.Fatal(err)
	}
	hits, err := testRepo(s).Query(t.Context(), []float32{1, 0, 0, 0}, filter.NewExpression([]filter.Condition{f}, nil), 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if s.knnQuery.IndexName != "coursedex:doc:idx" || s.knnQuery.K != 5 {
		t.Errorf("query = %+v", s.knnQuery)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].ID != "a1" || hits[0].Similarity != 0.95 || hits[0].Type != document.TypeAssignment {
		t.Errorf("first hit = %+v", hits[0])
	}
	// Entries without an id field fall back to the key suffix.
	if hits[1].ID != "q7" {
		t.Errorf("second hit id = %q, want q7", hits[1].ID)
	}
}

func TestQuery_Error(t *testing.T) {
	s := &fakeStore{searchErr: errors.New("syntax error")}
	if _, err := testRepo(s).Query(t.Context(), []float32{1}, filter.Expression{}, 5); err == nil {
		t.Error("expected query error to propagate")
	}
}

func TestCount(t *testing.T) {
	s := &fakeStore{count: 42}
	n, err := testRepo(s).Count(t.Context())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 42 {
		t.Errorf("Count = %d, want 42", n)
	}
}

func TestEntryFields_OmitsEmptyMetadata(t *testing.T) {
	e := &Entry{ID: "s1", Passage: "p", Vector: []float32{0, 0, 0, 0}, Meta: Metadata{Type: document.TypeSyllabus, CourseID: "c1"}}
	fields := entryFields(e)

	if _, ok := fields["module_id"]; ok {
		t.Error("empty module_id should be omitted")
	}
	for _, f := range timestampFields {
		if _, ok := fields[f]; ok {
			t.Errorf("unset timestamp field %s should be omitted", f)
		}
	}
}
