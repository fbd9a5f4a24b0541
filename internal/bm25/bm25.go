// Package bm25 implements Okapi BM25 lexical scoring over an in-memory
// document collection, plus score fusion with semantic results.
package bm25

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/campushq/coursedex/internal/domain/document"
	"github.com/campushq/coursedex/internal/domain/search/result"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Scorer holds precomputed collection statistics for BM25 scoring.
// Construct once per document collection; safe for concurrent reads.
type Scorer struct {
	docs      []*document.Document
	k1        float64
	b         float64
	docFreq   map[string]int
	avgDocLen float64
}

// NewScorer builds a Scorer over the given collection. Non-positive k1 or b
// fall back to the defaults.
func NewScorer(docs []*document.Document, k1, b float64) *Scorer {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}

	s := &Scorer{
		docs:    docs,
		k1:      k1,
		b:       b,
		docFreq: make(map[string]int),
	}
	s.precompute()
	return s
}

func (s *Scorer) precompute() {
	if len(s.docs) == 0 {
		return
	}

	totalLen := 0
	for _, doc := range s.docs {
		terms := Tokenize(weightedText(doc))
		totalLen += len(terms)

		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if !seen[term] {
				seen[term] = true
				s.docFreq[term]++
			}
		}
	}
	s.avgDocLen = float64(totalLen) / float64(len(s.docs))
}

// Score computes the BM25 relevance of doc for the given query terms. Terms
// absent from the document or from the whole collection contribute zero.
func (s *Scorer) Score(doc *document.Document, terms []string) float64 {
	docTerms := Tokenize(weightedText(doc))
	docLen := len(docTerms)
	if docLen == 0 || s.avgDocLen == 0 {
		return 0
	}

	tf := make(map[string]int, docLen)
	for _, term := range docTerms {
		tf[term]++
	}

	var score float64
	for _, term := range terms {
		term = strings.ToLower(term)
		freq := tf[term]
		if freq == 0 {
			continue
		}
		df := s.docFreq[term]
		if df == 0 {
			continue
		}
		score += s.termScore(freq, df, docLen)
	}
	return score
}

// termScore applies the Okapi BM25 formula for a single term. Negative IDF
// is clamped to zero so very common terms never penalize a match.
func (s *Scorer) termScore(freq, df, docLen int) float64 {
	idf := math.Log((float64(len(s.docs)) - float64(df) + 0.5) / (float64(df) + 0.5))
	lengthNorm := (1 - s.b) + s.b*(float64(docLen)/s.avgDocLen)
	return math.Max(idf, 0) * (float64(freq) * (s.k1 + 1)) / (float64(freq) + s.k1*lengthNorm)
}

// Search scores query against docs (the whole collection when docs is nil)
// and returns up to limit results sorted by score descending. Ties keep the
// collection order.
func (s *Scorer) Search(query string, docs []*document.Document, limit int) []result.Result {
	if docs == nil {
		docs = s.docs
	}
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var results []result.Result
	for _, doc := range docs {
		if score := s.Score(doc, terms); score > 0 {
			results = append(results, result.New(doc, score, result.MatchBM25))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Fuse merges semantic and lexical result sets into one ranked hybrid list.
// Each set is max-normalized independently, then combined per document id as
// alpha*semantic + (1-alpha)*lexical.
func Fuse(semantic, lexical []result.Result, alpha float64) []result.Result {
	semantic = normalize(semantic)
	lexical = normalize(lexical)

	order := make([]string, 0, len(semantic)+len(lexical))
	scores := make(map[string]float64, len(semantic)+len(lexical))
	docs := make(map[string]result.Result, len(semantic)+len(lexical))

	for _, r := range semantic {
		id := r.ID()
		if _, ok := scores[id]; !ok {
			order = append(order, id)
			docs[id] = r
		}
		scores[id] += alpha * r.Score()
	}
	for _, r := range lexical {
		id := r.ID()
		if _, ok := scores[id]; !ok {
			order = append(order, id)
			docs[id] = r
		}
		scores[id] += (1 - alpha) * r.Score()
	}

	fused := make([]result.Result, 0, len(order))
	for _, id := range order {
		fused = append(fused, docs[id].WithScore(scores[id]).WithKind(result.MatchHybrid))
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score() > fused[j].Score()
	})
	return fused
}

func normalize(results []result.Result) []result.Result {
	if len(results) == 0 {
		return results
	}

	var maxScore float64
	for _, r := range results {
		if r.Score() > maxScore {
			maxScore = r.Score()
		}
	}
	if maxScore <= 0 {
		return results
	}

	out := make([]result.Result, len(results))
	for i, r := range results {
		out[i] = r.WithScore(r.Score() / maxScore)
	}
	return out
}

var (
	nonTokenRe = regexp.MustCompile(`[^a-z0-9_\s-]`)
	codeRe     = regexp.MustCompile(`^[a-z]+\d+$`)
)

// Tokenize lowercases text, strips punctuation except hyphens, and keeps
// tokens longer than two characters plus academic course codes like "cs101".
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	cleaned := nonTokenRe.ReplaceAllString(strings.ToLower(text), " ")

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) > 2 || codeRe.MatchString(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// weightedText concatenates a document's most salient fields, repeating each
// by its weight so term frequency reflects field importance.
func weightedText(doc *document.Document) string {
	var parts []string
	appendWeighted := func(text string, weight int) {
		if text == "" {
			return
		}
		for i := 0; i < weight; i++ {
			parts = append(parts, text)
		}
	}

	switch doc.Type {
	case document.TypeAssignment:
		appendWeighted(doc.Name, 3)
		appendWeighted(doc.Description, 1)
	case document.TypeFile:
		appendWeighted(doc.DisplayName, 3)
		appendWeighted(doc.Filename, 2)
	case document.TypeQuiz:
		appendWeighted(doc.Title, 3)
		appendWeighted(doc.Description, 1)
	case document.TypeAnnouncement:
		appendWeighted(doc.Title, 3)
		appendWeighted(doc.Message, 1)
	case document.TypeEvent:
		appendWeighted(doc.Title, 3)
		appendWeighted(doc.Description, 1)
	default:
		appendWeighted(doc.Title, 2)
		appendWeighted(doc.Content, 1)
	}

	return strings.Join(parts, " ")
}
