// Package document holds the canonical snapshot model: documents, courses,
// and the snapshot envelope they arrive in.
package document

import (
	"fmt"
	"time"
)

// Type identifies the kind of a document.
type Type string

// Document types, matching the snapshot item collections plus the synthetic
// syllabus type derived from courses.
const (
	TypeFile         Type = "file"
	TypeAssignment   Type = "assignment"
	TypeAnnouncement Type = "announcement"
	TypeQuiz         Type = "quiz"
	TypeEvent        Type = "event"
	TypeSyllabus     Type = "syllabus"
)

// AllTypes lists every valid document type.
func AllTypes() []Type {
	return []Type{TypeFile, TypeAssignment, TypeAnnouncement, TypeQuiz, TypeEvent, TypeSyllabus}
}

// ParseType validates a type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case TypeFile, TypeAssignment, TypeAnnouncement, TypeQuiz, TypeEvent, TypeSyllabus:
		return t, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// String implements fmt.Stringer.
func (t Type) String() string { return string(t) }

// Document is the unit of indexing: one snapshot item plus derived fields.
// Field presence depends on the type; absent fields stay zero-valued and are
// omitted from passages and metadata.
type Document struct {
	ID       string `json:"id"`
	Type     Type   `json:"type,omitempty"`
	CourseID string `json:"course_id,omitempty"`
	ModuleID string `json:"module_id,omitempty"`

	// Names. Files use DisplayName, assignments Name, the rest Title.
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Filename    string `json:"filename,omitempty"`

	// Bodies.
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	Body        string `json:"body,omitempty"` // syllabus markup

	// Timestamps, ISO-8601 strings as delivered by the snapshot.
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
	DueAt     string `json:"due_at,omitempty"`
	PostedAt  string `json:"posted_at,omitempty"`
	StartAt   string `json:"start_at,omitempty"`
	EndAt     string `json:"end_at,omitempty"`

	URL             string   `json:"url,omitempty"`
	Size            int64    `json:"size,omitempty"`
	Locked          bool     `json:"locked,omitempty"`
	LockedForUser   bool     `json:"locked_for_user,omitempty"`
	LockExplanation string   `json:"lock_explanation,omitempty"`
	SubmissionTypes []string `json:"submission_types,omitempty"`
	CanSubmit       bool     `json:"can_submit,omitempty"`
	PointsPossible  float64  `json:"points_possible,omitempty"`
	TimeLimit       int      `json:"time_limit,omitempty"`
	AllowedAttempts int      `json:"allowed_attempts,omitempty"`
	QuizType        string   `json:"quiz_type,omitempty"`
	LocationName    string   `json:"location_name,omitempty"`
	LocationAddress string   `json:"location_address,omitempty"`
	ContextCode     string   `json:"context_code,omitempty"`
	ModuleName      string   `json:"module_name,omitempty"`

	// Content holds hydrated file text; empty until fetched.
	Content string `json:"content,omitempty"`

	// RelatedDocs is derived at load time: documents sharing module+course
	// first, then documents sharing type+course.
	RelatedDocs []string `json:"related_docs,omitempty"`

	// Enrichment attached by the result post-processor.
	CourseName   string `json:"course_name,omitempty"`
	CourseCode   string `json:"course_code,omitempty"`
	LocalTime    string `json:"local_time,omitempty"`
	RelativeTime string `json:"relative_time,omitempty"`
}

// DisplayTitle returns the human name of the document per its type.
func (d *Document) DisplayTitle() string {
	switch d.Type {
	case TypeFile:
		return d.DisplayName
	case TypeAssignment:
		return d.Name
	case TypeSyllabus:
		return d.Title
	default:
		return d.Title
	}
}

// PrimaryDate returns the first populated date field in priority order
// due -> posted -> start -> updated, with its snapshot field name.
// A document has exactly one primary date.
func (d *Document) PrimaryDate() (field, value string) {
	switch {
	case d.DueAt != "":
		return "due_at", d.DueAt
	case d.PostedAt != "":
		return "posted_at", d.PostedAt
	case d.StartAt != "":
		return "start_at", d.StartAt
	case d.UpdatedAt != "":
		return "updated_at", d.UpdatedAt
	}
	return "", ""
}

// TimestampField returns the metadata field that carries this type's natural
// date as a Unix timestamp, with the source date string. Types without a
// natural date return an empty field name.
func (d *Document) TimestampField() (field, value string) {
	switch d.Type {
	case TypeAssignment, TypeQuiz:
		return "due_timestamp", d.DueAt
	case TypeAnnouncement:
		return "posted_timestamp", d.PostedAt
	case TypeEvent:
		return "start_timestamp", d.StartAt
	case TypeFile:
		return "updated_timestamp", d.UpdatedAt
	}
	return "", ""
}

// ParseSnapshotTime parses an ISO-8601 snapshot timestamp.
func ParseSnapshotTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
