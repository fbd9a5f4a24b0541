// Package passage converts documents into natural-language passages used as
// embedding input and lexical search text.
package passage

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/campushq/coursedex/internal/domain/document"
)

// CourseNameFunc resolves a course id to a display name. Empty result means
// unknown course.
type CourseNameFunc func(courseID string) string

// Formatter renders documents into passage strings. It is stateless apart
// from the course name lookup and safe for concurrent use.
type Formatter struct {
	courseName CourseNameFunc
}

// New creates a Formatter using the given course name lookup.
func New(lookup CourseNameFunc) *Formatter {
	if lookup == nil {
		lookup = func(string) string { return "" }
	}
	return &Formatter{courseName: lookup}
}

// Format builds a sentence-oriented passage for the document. Missing fields
// produce no clause; the output always starts with an identity sentence.
func (f *Formatter) Format(doc *document.Document) string {
	var b strings.Builder

	title := NormalizeText(doc.DisplayTitle())
	if title == "" {
		title = doc.ID
	}

	course := f.courseName(doc.CourseID)
	if course == "" {
		course = "course " + doc.CourseID
	}
	b.WriteString(fmt.Sprintf("%s is a %s for %s.", title, typeLabel(doc.Type), course))

	switch doc.Type {
	case document.TypeAssignment:
		f.assignmentClauses(&b, doc)
	case document.TypeQuiz:
		f.quizClauses(&b, doc)
	case document.TypeFile:
		f.fileClauses(&b, doc)
	case document.TypeEvent:
		f.eventClauses(&b, doc)
	case document.TypeAnnouncement:
		f.announcementClauses(&b, doc)
	case document.TypeSyllabus:
		f.syllabusClauses(&b, doc)
	}

	if doc.ModuleName != "" {
		writeClause(&b, fmt.Sprintf("It belongs to the module %s.", NormalizeText(doc.ModuleName)))
	}

	return b.String()
}

func (f *Formatter) assignmentClauses(b *strings.Builder, doc *document.Document) {
	if due := formatWhen(doc.DueAt); due != "" {
		writeClause(b, "It is due "+due+".")
	}
	if len(doc.SubmissionTypes) > 0 {
		writeClause(b, "It accepts "+submissionLabel(doc.SubmissionTypes)+" submissions.")
	}
	if doc.CanSubmit {
		writeClause(b, "It can still be submitted.")
	}
	if doc.PointsPossible > 0 {
		writeClause(b, fmt.Sprintf("It is worth %g points.", doc.PointsPossible))
	}
	if desc := StripMarkup(doc.Description); desc != "" {
		writeClause(b, desc)
	}
}

func (f *Formatter) quizClauses(b *strings.Builder, doc *document.Document) {
	if doc.PointsPossible > 0 {
		writeClause(b, fmt.Sprintf("It is worth %g points.", doc.PointsPossible))
	}
	if doc.TimeLimit > 0 {
		writeClause(b, fmt.Sprintf("It has a time limit of %d minutes.", doc.TimeLimit))
	}
	switch {
	case doc.AllowedAttempts < 0:
		writeClause(b, "It allows unlimited attempts.")
	case doc.AllowedAttempts > 0:
		writeClause(b, fmt.Sprintf("It allows %d attempts.", doc.AllowedAttempts))
	}
	if due := formatWhen(doc.DueAt); due != "" {
		writeClause(b, "It is due "+due+".")
	}
	if doc.LockedForUser {
		clause := "It is currently locked."
		if doc.LockExplanation != "" {
			clause = "It is currently locked: " + StripMarkup(doc.LockExplanation)
		}
		writeClause(b, clause)
	}
	if desc := StripMarkup(doc.Description); desc != "" {
		writeClause(b, desc)
	}
}

func (f *Formatter) fileClauses(b *strings.Builder, doc *document.Document) {
	if doc.Filename != "" && doc.Filename != doc.DisplayName {
		writeClause(b, "Its filename is "+NormalizeText(doc.Filename)+".")
	}
	if doc.Size > 0 {
		writeClause(b, fmt.Sprintf("It is %s in size.", humanSize(doc.Size)))
	}
	if updated := formatWhen(doc.UpdatedAt); updated != "" {
		writeClause(b, "It was last updated "+updated+".")
	}
	if doc.Locked || doc.LockedForUser {
		clause := "It is currently locked."
		if doc.LockExplanation != "" {
			clause = "It is currently locked: " + StripMarkup(doc.LockExplanation)
		}
		writeClause(b, clause)
	}
}

func (f *Formatter) eventClauses(b *strings.Builder, doc *document.Document) {
	if start := formatWhen(doc.StartAt); start != "" {
		writeClause(b, "It starts "+start+".")
	}
	if end := formatWhen(doc.EndAt); end != "" {
		writeClause(b, "It ends "+end+".")
	}
	if doc.LocationName != "" {
		loc := NormalizeText(doc.LocationName)
		if doc.LocationAddress != "" {
			loc += ", " + NormalizeText(doc.LocationAddress)
		}
		writeClause(b, "It takes place at "+loc+".")
	}
	if desc := StripMarkup(doc.Description); desc != "" {
		writeClause(b, desc)
	}
}

func (f *Formatter) announcementClauses(b *strings.Builder, doc *document.Document) {
	if posted := formatWhen(doc.PostedAt); posted != "" {
		writeClause(b, "It was posted "+posted+".")
	}
	if msg := StripMarkup(doc.Message); msg != "" {
		writeClause(b, msg)
	}
}

func (f *Formatter) syllabusClauses(b *strings.Builder, doc *document.Document) {
	if body := StripMarkup(doc.Content); body != "" {
		writeClause(b, body)
	}
}

func writeClause(b *strings.Builder, clause string) {
	b.WriteString(" ")
	b.WriteString(clause)
}

func typeLabel(t document.Type) string {
	switch t {
	case document.TypeSyllabus:
		return "syllabus"
	case document.TypeEvent:
		return "calendar event"
	default:
		return string(t)
	}
}

func submissionLabel(types []string) string {
	labels := make([]string, len(types))
	for i, t := range types {
		labels[i] = strings.ReplaceAll(t, "_", " ")
	}
	return strings.Join(labels, ", ")
}

func formatWhen(raw string) string {
	t, err := document.ParseSnapshotTime(raw)
	if err != nil {
		return ""
	}
	return "on " + t.Local().Format("2006-01-02 at 15:04")
}

func humanSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripMarkup removes HTML tags and entities, collapses whitespace and
// normalizes typographic punctuation. Safe on plain text.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return NormalizeText(strings.TrimSpace(s))
}

var typographicReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
	" ", " ",
)

// NormalizeText replaces typographic quotes and dashes with ASCII equivalents.
func NormalizeText(s string) string {
	return typographicReplacer.Replace(s)
}
