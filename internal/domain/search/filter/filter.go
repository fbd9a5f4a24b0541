// Package filter models the structured predicate attached to a vector query:
// tag equality, tag membership, and numeric ranges, grouped with must/should
// boolean semantics.
package filter

import "fmt"

// Expression is a structured filter. Must conditions all apply; should
// conditions form one OR group (used for the per-type date fields, since
// different document types carry their date in different metadata fields).
type Expression struct {
	must   []Condition
	should []Condition
}

// NewExpression creates a filter Expression.
func NewExpression(must, should []Condition) Expression {
	return Expression{must: must, should: should}
}

// And returns a copy of e with an extra must condition.
func (e Expression) And(c Condition) Expression {
	must := make([]Condition, 0, len(e.must)+1)
	must = append(must, e.must...)
	must = append(must, c)
	return Expression{must: must, should: e.should}
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the OR-group conditions.
func (e Expression) Should() []Condition { return e.should }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0
}

// Condition is a single clause: a tag match (one or more accepted values)
// or a numeric range.
type Condition struct {
	key       string
	values    []string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, values: []string{value}}, nil
}

// NewMatchAny creates a tag membership condition (value in set).
func NewMatchAny(key string, values []string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty match value for key %q", key)
		}
	}
	return Condition{key: key, values: values}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if r.gte == nil && r.lte == nil {
		return Condition{}, fmt.Errorf("at least one range boundary is required for key %q", key)
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted tag values.
func (c Condition) Values() []string { return c.values }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a tag condition.
func (c Condition) IsMatch() bool { return len(c.values) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is an inclusive numeric interval; nil boundaries are unbounded.
type Range struct {
	gte *float64
	lte *float64
}

// GTE builds a lower-bounded range.
func GTE(v float64) Range { return Range{gte: &v} }

// LTE builds an upper-bounded range.
func LTE(v float64) Range { return Range{lte: &v} }

// Between builds a closed range [lo, hi].
func Between(lo, hi float64) Range { return Range{gte: &lo, lte: &hi} }

// Lower returns the inclusive lower bound, or nil.
func (r Range) Lower() *float64 { return r.gte }

// Upper returns the inclusive upper bound, or nil.
func (r Range) Upper() *float64 { return r.lte }

// Contains reports whether v falls inside the range.
func (r Range) Contains(v float64) bool {
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}
