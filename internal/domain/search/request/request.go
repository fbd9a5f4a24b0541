// Package request models a structured search request as produced by the
// upstream query-categorization collaborator.
package request

import (
	"fmt"

	"github.com/campushq/coursedex/internal/domain/document"
)

// AllCourses is the sentinel course ID meaning "search every course".
const AllCourses = "all_courses"

// TimeRange restricts results to a window around "now" in the caller's
// local time zone.
type TimeRange string

// Time range categories. The near windows span ten days on either side
// of now; FUTURE and PAST cover everything beyond them.
const (
	TimeAll        TimeRange = "ALL_TIME"
	TimeNearFuture TimeRange = "NEAR_FUTURE"
	TimeFuture     TimeRange = "FUTURE"
	TimeRecentPast TimeRange = "RECENT_PAST"
	TimePast       TimeRange = "PAST"
)

// ParseTimeRange validates a time range string; empty means ALL_TIME.
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" {
		return TimeAll, nil
	}
	tr := TimeRange(s)
	switch tr {
	case TimeAll, TimeNearFuture, TimeFuture, TimeRecentPast, TimePast:
		return tr, nil
	}
	return "", fmt.Errorf("unknown time range %q", s)
}

// IsNearTerm reports whether the range is one of the ten-day windows
// adjacent to now. Near-term searches request fewer candidates.
func (tr TimeRange) IsNearTerm() bool {
	return tr == TimeNearFuture || tr == TimeRecentPast
}

// Generality controls how many results a search returns.
type Generality string

// Generality levels and their result counts.
const (
	GeneralityLow    Generality = "LOW"
	GeneralityMedium Generality = "MEDIUM"
	GeneralityHigh   Generality = "HIGH"
)

// Count returns the base result count for the level.
func (g Generality) Count() int {
	switch g {
	case GeneralityLow:
		return 5
	case GeneralityHigh:
		return 20
	default:
		return 10
	}
}

// Request is a structured search request.
type Request struct {
	Query         string
	CourseID      string // course ID or AllCourses
	ItemTypes     []document.Type
	TimeRange     TimeRange
	SpecificDates []string // YYYY-MM-DD
	Keywords      []string
	Generality    Generality
	// ExplicitTopK overrides the generality-derived count when positive.
	ExplicitTopK int
	// IncludeRelated expands results with related documents.
	IncludeRelated bool
}

// Validate checks the request for well-formedness.
func (r *Request) Validate() error {
	if r.Query == "" && len(r.Keywords) == 0 {
		return fmt.Errorf("query or keywords required")
	}
	if r.CourseID == "" {
		return fmt.Errorf("course_id is required (use %q for all)", AllCourses)
	}
	if _, err := ParseTimeRange(string(r.TimeRange)); err != nil {
		return err
	}
	for _, t := range r.ItemTypes {
		if _, err := document.ParseType(string(t)); err != nil {
			return err
		}
	}
	return nil
}

// AllCoursesRequested reports whether the request spans every course.
func (r *Request) AllCoursesRequested() bool {
	return r.CourseID == AllCourses
}
