// Package result models ranked search results.
package result

import "github.com/campushq/coursedex/internal/domain/document"

// MatchKind records which retrieval path produced a result.
type MatchKind string

// Match kinds. Keyword hits are tagged by the document's own type in the
// public response; MatchKind tracks provenance internally.
const (
	MatchSemantic MatchKind = "semantic"
	MatchKeyword  MatchKind = "keyword"
	MatchBM25     MatchKind = "bm25"
	MatchHybrid   MatchKind = "hybrid"
	MatchRelated  MatchKind = "related"
)

// Result is one ranked hit. The score is internal ranking state and is
// stripped before results leave the service.
type Result struct {
	doc   *document.Document
	score float64
	kind  MatchKind
}

// New creates a result.
func New(doc *document.Document, score float64, kind MatchKind) Result {
	return Result{doc: doc, score: score, kind: kind}
}

// Document returns the matched document.
func (r Result) Document() *document.Document { return r.doc }

// ID returns the matched document's ID.
func (r Result) ID() string { return r.doc.ID }

// Score returns the internal ranking score.
func (r Result) Score() float64 { return r.score }

// Kind returns the retrieval path that produced this result.
func (r Result) Kind() MatchKind { return r.kind }

// WithScore returns a copy with a replaced score.
func (r Result) WithScore(s float64) Result {
	return Result{doc: r.doc, score: s, kind: r.kind}
}

// WithKind returns a copy with a replaced match kind.
func (r Result) WithKind(k MatchKind) Result {
	return Result{doc: r.doc, score: r.score, kind: k}
}
