// Package postprocess re-ranks search results by title match and enriches
// them with course and time context.
package postprocess

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/result"
)

// Title match boosts applied during reordering.
const (
	exactMatchBoost   = 0.5
	partialMatchBoost = 0.2
)

// CourseLookup resolves course ids for result augmentation.
type CourseLookup interface {
	Course(id string) (*document.Course, error)
}

// Reorder boosts results whose title matches the query exactly (+0.5) or
// shares a query term (+0.2), then re-sorts by score descending. Exact
// matches sort ahead of partial matches ahead of the rest; within a tier the
// incoming order is kept.
func Reorder(results []result.Result, query string) []result.Result {
	normalized := strings.ToLower(strings.TrimSpace(query))
	terms := strings.Fields(normalized)

	type tiered struct {
		res  result.Result
		tier int
	}

	out := make([]tiered, 0, len(results))
	for _, r := range results {
		title := strings.ToLower(r.Document().DisplayTitle())

		switch {
		case title != "" && title == normalized:
			out = append(out, tiered{r.WithScore(r.Score() + exactMatchBoost), 0})
		case titleContainsAny(title, terms):
			out = append(out, tiered{r.WithScore(r.Score() + partialMatchBoost), 1})
		default:
			out = append(out, tiered{r, 2})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].res.Score() != out[j].res.Score() {
			return out[i].res.Score() > out[j].res.Score()
		}
		return out[i].tier < out[j].tier
	})

	final := make([]result.Result, len(out))
	for i, t := range out {
		final[i] = t.res
	}
	return final
}

func titleContainsAny(title string, terms []string) bool {
	if title == "" {
		return false
	}
	for _, term := range terms {
		if strings.Contains(title, term) {
			return true
		}
	}
	return false
}

// Augment attaches course name/code and localized plus relative time labels
// to every result's document. Documents are copied; the store's canonical
// documents stay untouched.
func Augment(results []result.Result, courses CourseLookup) []result.Result {
	now := time.Now()

	out := make([]result.Result, len(results))
	for i, r := range results {
		doc := *r.Document()

		if c, err := courses.Course(doc.CourseID); err == nil {
			doc.CourseName = c.Name
			doc.CourseCode = c.CourseCode
		}

		if _, raw := doc.PrimaryDate(); raw != "" {
			if t, err := document.ParseSnapshotTime(raw); err == nil {
				local := t.Local()
				doc.LocalTime = local.Format("2006-01-02 15:04:05")
				doc.RelativeTime = relativeLabel(local, now)
			}
		}

		out[i] = result.New(&doc, r.Score(), r.Kind())
	}
	return out
}

// relativeLabel renders a coarse day-granularity label. Dates a week or more
// away produce no label.
func relativeLabel(t, now time.Time) string {
	days := daysBetween(now, t)

	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 1 && days < 7:
		return fmt.Sprintf("In %d days", days)
	case days < -1 && days > -7:
		return fmt.Sprintf("%d days ago", -days)
	}
	return ""
}

// daysBetween counts calendar days from now to t in local time.
func daysBetween(now, t time.Time) int {
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tDay := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return int(tDay.Sub(nowDay) / (24 * time.Hour))
}
