package document

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Course is one course from the snapshot.
type Course struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CourseCode   string `json:"course_code"`
	SyllabusBody string `json:"syllabus_body,omitempty"`
	TimeZone     string `json:"time_zone,omitempty"`
}

// UserMetadata describes the snapshot owner.
type UserMetadata struct {
	ID              string   `json:"id"`
	Name            string   `json:"name,omitempty"`
	CoursesSelected []string `json:"courses_selected,omitempty"`
}

// Snapshot is the canonical JSON document produced by the upstream data
// retrieval pipeline. It is the sole input to the local document store.
type Snapshot struct {
	UserMetadata   UserMetadata `json:"user_metadata"`
	Courses        []Course     `json:"courses"`
	Files          []Document   `json:"files"`
	Announcements  []Document   `json:"announcements"`
	Assignments    []Document   `json:"assignments"`
	Quizzes        []Document   `json:"quizzes"`
	CalendarEvents []Document   `json:"calendar_events"`
}

// ParseSnapshot decodes a canonical snapshot. IDs arrive as either JSON
// numbers or strings depending on the upstream exporter version, so numeric
// tokens are quoted before decoding.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(normalizeIDs(data), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// idFields are keys whose values must always decode as strings.
var idFields = []string{"id", "course_id", "module_id", "folder_id"}

// normalizeIDs rewrites bare numeric values of known ID keys into strings.
func normalizeIDs(data []byte) []byte {
	s := string(data)
	for _, f := range idFields {
		s = quoteNumericField(s, f)
	}
	return []byte(s)
}

func quoteNumericField(s, field string) string {
	needle := `"` + field + `":`
	var b strings.Builder
	b.Grow(len(s))

	for {
		i := strings.Index(s, needle)
		if i < 0 {
			b.WriteString(s)
			break
		}
		i += len(needle)
		b.WriteString(s[:i])
		s = s[i:]

		j := 0
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
			j++
		}
		b.WriteString(s[:j])
		s = s[j:]

		k := 0
		for k < len(s) && (s[k] >= '0' && s[k] <= '9') {
			k++
		}
		// Quote only bare integers; strings and null pass through.
		if k > 0 && (k == len(s) || s[k] == ',' || s[k] == '}' || s[k] == ']' || s[k] == ' ' || s[k] == '\n') {
			b.WriteByte('"')
			b.WriteString(s[:k])
			b.WriteByte('"')
			s = s[k:]
		}
	}
	return b.String()
}

// SyllabusID builds the synthetic document ID for a course syllabus.
func SyllabusID(courseID string) string {
	return "syllabus_" + courseID
}

// CourseIDFromContext derives a course ID from a calendar event context code
// of the form "course_<id>". Returns "" when the code has another context.
func CourseIDFromContext(contextCode string) string {
	const prefix = "course_"
	if strings.HasPrefix(contextCode, prefix) {
		return strings.TrimPrefix(contextCode, prefix)
	}
	return ""
}
