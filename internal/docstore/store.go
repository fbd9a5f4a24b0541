// Package docstore holds the in-memory view of one user's snapshot: documents
// by id, courses by id, and the related-documents graph.
package docstore

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/domain"
	"github.com/campushq/coursedex/internal/domain/document"
)

// Store is the local document store. Load rebuilds it wholesale; reads are
// served under a read lock so searches never observe a half-loaded state.
type Store struct {
	log *zap.Logger

	mu      sync.RWMutex
	docs    map[string]*document.Document
	order   []string
	courses map[string]*document.Course
	related map[string][]string
}

// NewStore creates an empty store.
func NewStore(log *zap.Logger) *Store {
	return &Store{
		log:     log,
		docs:    make(map[string]*document.Document),
		courses: make(map[string]*document.Course),
		related: make(map[string][]string),
	}
}

// LoadFile reads and loads a snapshot from disk.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := document.ParseSnapshot(data)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSnapshotMalformed, err)
	}
	s.Load(snap)
	return nil
}

// Load replaces the store contents with the given snapshot. The previous
// state is discarded entirely; there are no partial updates.
func (s *Store) Load(snap *document.Snapshot) {
	docs := make(map[string]*document.Document)
	var order []string
	courses := make(map[string]*document.Course, len(snap.Courses))

	for i := range snap.Courses {
		c := &snap.Courses[i]
		courses[c.ID] = c
	}

	add := func(items []document.Document, typ document.Type) {
		for i := range items {
			doc := items[i]
			if doc.Type == "" {
				doc.Type = typ
			}
			if doc.Type == document.TypeEvent && doc.CourseID == "" {
				doc.CourseID = document.CourseIDFromContext(doc.ContextCode)
			}
			if doc.ID == "" {
				continue
			}
			if _, dup := docs[doc.ID]; dup {
				continue
			}
			docs[doc.ID] = &doc
			order = append(order, doc.ID)
		}
	}

	add(snap.Files, document.TypeFile)
	add(snap.Announcements, document.TypeAnnouncement)
	add(snap.Assignments, document.TypeAssignment)
	add(snap.Quizzes, document.TypeQuiz)
	add(snap.CalendarEvents, document.TypeEvent)

	for i := range snap.Courses {
		c := &snap.Courses[i]
		if c.SyllabusBody == "" {
			continue
		}
		id := document.SyllabusID(c.ID)
		docs[id] = &document.Document{
			ID:       id,
			Type:     document.TypeSyllabus,
			CourseID: c.ID,
			Title:    c.Name + " Syllabus",
			Content:  c.SyllabusBody,
		}
		order = append(order, id)
	}

	related := buildRelations(docs, order)

	s.mu.Lock()
	s.docs = docs
	s.order = order
	s.courses = courses
	s.related = related
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("snapshot loaded",
			zap.Int("documents", len(docs)),
			zap.Int("courses", len(courses)))
	}
}

// buildRelations links documents in the same course: exact module matches
// first, then same-type matches appended after them.
func buildRelations(docs map[string]*document.Document, order []string) map[string][]string {
	byCourse := make(map[string][]string)
	for _, id := range order {
		doc := docs[id]
		if doc.CourseID != "" {
			byCourse[doc.CourseID] = append(byCourse[doc.CourseID], id)
		}
	}

	related := make(map[string][]string)
	for _, ids := range byCourse {
		for _, id := range ids {
			doc := docs[id]
			var moduleMatches, typeMatches []string
			for _, otherID := range ids {
				if otherID == id {
					continue
				}
				other := docs[otherID]
				if doc.ModuleID != "" && other.ModuleID == doc.ModuleID {
					moduleMatches = append(moduleMatches, otherID)
				} else if other.Type == doc.Type {
					typeMatches = append(typeMatches, otherID)
				}
			}
			if len(moduleMatches)+len(typeMatches) > 0 {
				related[id] = append(moduleMatches, typeMatches...)
			}
		}
	}
	return related
}

// Get returns the document with the given id.
func (s *Store) Get(id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// IDs returns all document ids in load order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Documents returns all documents in load order.
func (s *Store) Documents() []*document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*document.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}

// Related returns the documents related to the given ids, de-duplicated and
// excluding the inputs themselves. Module-mates come before type-mates.
func (s *Store) Related(ids []string) []*document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}

	var out []*document.Document
	for _, id := range ids {
		for _, relID := range s.related[id] {
			if seen[relID] {
				continue
			}
			seen[relID] = true
			out = append(out, s.docs[relID])
		}
	}
	return out
}

// Course returns a course by id.
func (s *Store) Course(id string) (*document.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	return c, nil
}

// CourseName returns the display name for a course, or "" when unknown.
func (s *Store) CourseName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.courses[id]; ok {
		return c.Name
	}
	return ""
}

// Courses returns all courses from the last loaded snapshot, ordered by id.
func (s *Store) Courses() []*document.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*document.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of documents currently loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
