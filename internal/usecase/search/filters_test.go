package search

import (
	"testing"
	"time"

	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/request"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestResolveWindow_TimeRanges(t *testing.T) {
	nowTS := testNow.Unix()
	edge := testNow.AddDate(0, 0, timeWindowDays).Unix()
	pastEdge := testNow.AddDate(0, 0, -timeWindowDays).Unix()

	tests := []struct {
		name  string
		tr    request.TimeRange
		lower *int64
		upper *int64
	}{
		{"all time is open", request.TimeAll, nil, nil},
		{"empty defaults to open", request.TimeRange(""), nil, nil},
		{"near future", request.TimeNearFuture, &nowTS, &edge},
		{"future starts past the edge", request.TimeFuture, &edge, nil},
		{"recent past", request.TimeRecentPast, &pastEdge, &nowTS},
		{"past ends before the edge", request.TimePast, nil, &pastEdge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := resolveWindow(&request.Request{TimeRange: tc.tr}, testNow)
			checkBound(t, "lower", w.lower, tc.lower)
			checkBound(t, "upper", w.upper, tc.upper)
		})
	}
}

func checkBound(t *testing.T, name string, got, want *int64) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %d, want open", name, *got)
	case want != nil && got == nil:
		t.Errorf("%s is open, want %d", name, *want)
	case want != nil && *got != *want:
		t.Errorf("%s = %d, want %d", name, *got, *want)
	}
}

func TestResolveWindow_SpecificDatesWin(t *testing.T) {
	req := &request.Request{
		TimeRange:     request.TimeNearFuture,
		SpecificDates: []string{"2026-03-20"},
	}
	w := resolveWindow(req, testNow)

	day := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	if w.lower == nil || *w.lower != day.Unix() {
		t.Errorf("lower = %v, want start of 2026-03-20", w.lower)
	}
	wantUpper := day.Add(24*time.Hour - time.Second).Unix()
	if w.upper == nil || *w.upper != wantUpper {
		t.Errorf("upper = %v, want end of 2026-03-20", w.upper)
	}
}

func TestResolveWindow_MultipleDatesSpan(t *testing.T) {
	req := &request.Request{
		SpecificDates: []string{"2026-03-25", "2026-03-18", "2026-03-21"},
	}
	w := resolveWindow(req, testNow)

	first := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC)
	if w.lower == nil || *w.lower != first.Unix() {
		t.Errorf("lower = %v, want start of earliest date", w.lower)
	}
	if w.upper == nil || *w.upper != last.Add(24*time.Hour-time.Second).Unix() {
		t.Errorf("upper = %v, want end of latest date", w.upper)
	}
}

func TestResolveWindow_UnparseableDatesFallBack(t *testing.T) {
	req := &request.Request{
		TimeRange:     request.TimeNearFuture,
		SpecificDates: []string{"next tuesday", "soon"},
	}
	w := resolveWindow(req, testNow)

	// All dates unparseable: the time range applies instead.
	nowTS := testNow.Unix()
	if w.lower == nil || *w.lower != nowTS {
		t.Errorf("expected near-future fallback, lower = %v", w.lower)
	}
}

func TestBuildFilter(t *testing.T) {
	req := &request.Request{
		Query:     "homework",
		CourseID:  "c1",
		ItemTypes: []document.Type{document.TypeAssignment, document.TypeQuiz},
		TimeRange: request.TimeNearFuture,
	}
	w := resolveWindow(req, testNow)

	expr, err := buildFilter(req, w)
	if err != nil {
		t.Fatalf("buildFilter: %v", err)
	}

	must := expr.Must()
	if len(must) != 2 {
		t.Fatalf("must conditions = %d, want 2", len(must))
	}
	if must[0].Key() != "course_id" || must[0].Values()[0] != "c1" {
		t.Errorf("first must = %s %v", must[0].Key(), must[0].Values())
	}
	if must[1].Key() != "type" || len(must[1].Values()) != 2 {
		t.Errorf("second must = %s %v", must[1].Key(), must[1].Values())
	}

	// The time window fans out across every per-type timestamp field.
	should := expr.Should()
	if len(should) != len(timestampFields) {
		t.Fatalf("should conditions = %d, want %d", len(should), len(timestampFields))
	}
	for i, c := range should {
		if c.Key() != timestampFields[i] {
			t.Errorf("should[%d] key = %s, want %s", i, c.Key(), timestampFields[i])
		}
		r := c.Range()
		if r == nil || r.Lower() == nil || r.Upper() == nil {
			t.Errorf("should[%d] missing closed range", i)
		}
	}
}

func TestBuildFilter_AllCourses(t *testing.T) {
	req := &request.Request{Query: "q", CourseID: request.AllCourses}
	expr, err := buildFilter(req, window{})
	if err != nil {
		t.Fatalf("buildFilter: %v", err)
	}
	if !expr.IsEmpty() {
		t.Errorf("all-courses unconstrained request should build an empty filter, got %d must / %d should",
			len(expr.Must()), len(expr.Should()))
	}
}

func TestBuildFilter_OpenWindows(t *testing.T) {
	lo := int64(100)
	hi := int64(200)

	tests := []struct {
		name      string
		w         window
		wantLower bool
		wantUpper bool
	}{
		{"lower only", window{lower: &lo}, true, false},
		{"upper only", window{upper: &hi}, false, true},
		{"both", window{lower: &lo, upper: &hi}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := &request.Request{Query: "q", CourseID: request.AllCourses}
			expr, err := buildFilter(req, tc.w)
			if err != nil {
				t.Fatalf("buildFilter: %v", err)
			}
			r := expr.Should()[0].Range()
			if (r.Lower() != nil) != tc.wantLower {
				t.Errorf("lower present = %v, want %v", r.Lower() != nil, tc.wantLower)
			}
			if (r.Upper() != nil) != tc.wantUpper {
				t.Errorf("upper present = %v, want %v", r.Upper() != nil, tc.wantUpper)
			}
		})
	}
}

func TestMatchesLocally(t *testing.T) {
	due := testNow.Add(48 * time.Hour).Format(time.RFC3339)
	farDue := testNow.AddDate(0, 2, 0).Format(time.RFC3339)

	nearFuture := resolveWindow(&request.Request{TimeRange: request.TimeNearFuture}, testNow)

	tests := []struct {
		name string
		doc  document.Document
		req  request.Request
		w    window
		want bool
	}{
		{
			name: "course and type match",
			doc:  document.Document{Type: document.TypeAssignment, CourseID: "c1", DueAt: due},
			req:  request.Request{CourseID: "c1", ItemTypes: []document.Type{document.TypeAssignment}},
			want: true,
		},
		{
			name: "wrong course",
			doc:  document.Document{Type: document.TypeAssignment, CourseID: "c2"},
			req:  request.Request{CourseID: "c1"},
			want: false,
		},
		{
			name: "all courses matches anything",
			doc:  document.Document{Type: document.TypeFile, CourseID: "c2"},
			req:  request.Request{CourseID: request.AllCourses},
			want: true,
		},
		{
			name: "wrong type",
			doc:  document.Document{Type: document.TypeQuiz, CourseID: "c1"},
			req:  request.Request{CourseID: "c1", ItemTypes: []document.Type{document.TypeAssignment}},
			want: false,
		},
		{
			name: "inside time window",
			doc:  document.Document{Type: document.TypeAssignment, CourseID: "c1", DueAt: due},
			req:  request.Request{CourseID: "c1"},
			w:    nearFuture,
			want: true,
		},
		{
			name: "outside time window",
			doc:  document.Document{Type: document.TypeAssignment, CourseID: "c1", DueAt: farDue},
			req:  request.Request{CourseID: "c1"},
			w:    nearFuture,
			want: false,
		},
		{
			name: "windowed request drops undated documents",
			doc:  document.Document{Type: document.TypeSyllabus, CourseID: "c1"},
			req:  request.Request{CourseID: "c1"},
			w:    nearFuture,
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchesLocally(&tc.doc, &tc.req, tc.w); got != tc.want {
				t.Errorf("matchesLocally() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWindowContains(t *testing.T) {
	lo := int64(100)
	hi := int64(200)
	w := window{lower: &lo, upper: &hi}

	for ts, want := range map[int64]bool{99: false, 100: true, 150: true, 200: true, 201: false} {
		if got := w.contains(ts); got != want {
			t.Errorf("contains(%d) = %v, want %v", ts, got, want)
		}
	}
	if !(window{}).contains(42) {
		t.Error("open window must contain everything")
	}
}
