package search

import (
	"time"

	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/filter"
	"github.com/campushq/coursedex/internal/domain/search/request"
)

// timeWindowDays is the span of the NEAR_FUTURE and RECENT_PAST windows.
const timeWindowDays = 10

// timestampFields are the numeric metadata fields a time filter must cover.
// Different document types carry their natural date in different fields, so
// range conditions are OR'd across all of them.
var timestampFields = []string{
	"due_timestamp",
	"posted_timestamp",
	"start_timestamp",
	"updated_timestamp",
}

// window is a resolved time filter in Unix seconds. Nil bounds are open.
type window struct {
	lower *int64
	upper *int64
}

func (w window) isZero() bool { return w.lower == nil && w.upper == nil }

func (w window) contains(ts int64) bool {
	if w.lower != nil && ts < *w.lower {
		return false
	}
	if w.upper != nil && ts > *w.upper {
		return false
	}
	return true
}

// resolveWindow turns the request's time constraint into one window.
// Specific dates win over the time range; both evaluated in local time.
func resolveWindow(req *request.Request, now time.Time) window {
	if len(req.SpecificDates) > 0 {
		if w, ok := datesWindow(req.SpecificDates, now.Location()); ok {
			return w
		}
	}
	return rangeWindow(req.TimeRange, now)
}

// datesWindow builds a window from specific dates: one date covers that
// calendar day, several cover the min..max span. Unparseable dates are
// skipped; all-unparseable means no window.
func datesWindow(dates []string, loc *time.Location) (window, bool) {
	var days []time.Time
	for _, d := range dates {
		t, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return window{}, false
	}

	first, last := days[0], days[0]
	for _, d := range days[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	lo := first.Unix()
	hi := last.Add(24*time.Hour - time.Second).Unix()
	return window{lower: &lo, upper: &hi}, true
}

// rangeWindow maps a time range category onto Unix bounds around now.
func rangeWindow(tr request.TimeRange, now time.Time) window {
	nowTS := now.Unix()
	edge := now.AddDate(0, 0, timeWindowDays).Unix()
	pastEdge := now.AddDate(0, 0, -timeWindowDays).Unix()

	switch tr {
	case request.TimeNearFuture:
		return window{lower: &nowTS, upper: &edge}
	case request.TimeFuture:
		return window{lower: &edge}
	case request.TimeRecentPast:
		return window{lower: &pastEdge, upper: &nowTS}
	case request.TimePast:
		return window{upper: &pastEdge}
	default:
		return window{}
	}
}

// buildFilter translates the request into a vector store filter expression:
// course and type as must conditions, the time window OR'd across every
// timestamp field as a should group.
func buildFilter(req *request.Request, w window) (filter.Expression, error) {
	var must, should []filter.Condition

	if !req.AllCoursesRequested() {
		c, err := filter.NewMatch("course_id", req.CourseID)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}

	if len(req.ItemTypes) > 0 {
		values := make([]string, len(req.ItemTypes))
		for i, t := range req.ItemTypes {
			values[i] = string(t)
		}
		c, err := filter.NewMatchAny("type", values)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}

	if !w.isZero() {
		var r filter.Range
		switch {
		case w.lower != nil && w.upper != nil:
			r = filter.Between(float64(*w.lower), float64(*w.upper))
		case w.lower != nil:
			r = filter.GTE(float64(*w.lower))
		default:
			r = filter.LTE(float64(*w.upper))
		}
		for _, field := range timestampFields {
			c, err := filter.NewRange(field, r)
			if err != nil {
				return filter.Expression{}, err
			}
			should = append(should, c)
		}
	}

	return filter.NewExpression(must, should), nil
}

// matchesLocally re-evaluates the request filter against a store document.
// Used for BM25 candidates, keyword hits and related-document expansion,
// which never touch the vector store.
func matchesLocally(doc *document.Document, req *request.Request, w window) bool {
	if !req.AllCoursesRequested() && doc.CourseID != req.CourseID {
		return false
	}

	if len(req.ItemTypes) > 0 {
		found := false
		for _, t := range req.ItemTypes {
			if doc.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !w.isZero() {
		_, raw := doc.TimestampField()
		if raw == "" {
			return false
		}
		t, err := document.ParseSnapshotTime(raw)
		if err != nil {
			return false
		}
		if !w.contains(t.Unix()) {
			return false
		}
	}

	return true
}
