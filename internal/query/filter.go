// Package query implements the boolean filter language: a recursive
// and/or/leaf expression tree over named event properties, its JSON wire
// format, and the compiler that lowers it to a storage condition.
package query

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/basalytics/basalytics/internal/event"
)

// ErrParse is returned for malformed filter payloads. Parsing happens before
// any storage access, so a bad payload never starts a query.
var ErrParse = errors.New("malformed filter expression")

type op int

const (
	opAnd op = iota
	opOr
	opLeaf
)

// Filter is one node of the expression tree. Construct nodes with And, Or,
// and Leaf, or decode them from the JSON wire format.
type Filter struct {
	op       op
	children []Filter
	name     string
	eq       event.Value
}

// And matches events satisfying every child. And() with no children matches
// every event; it is the default when a query carries no filter.
func And(children ...Filter) Filter {
	return Filter{op: opAnd, children: children}
}

// Or matches events satisfying at least one child. Or() with no children
// matches nothing.
func Or(children ...Filter) Filter {
	return Filter{op: opOr, children: children}
}

// Leaf matches events that have the property (name, eq) in the typed table
// corresponding to eq's kind.
func Leaf(name string, eq event.Value) Filter {
	return Filter{op: opLeaf, name: name, eq: eq}
}

type leafPayload struct {
	Name *string      `json:"name"`
	Eq   *event.Value `json:"eq"`
}

type filterPayload struct {
	And    *[]Filter    `json:"and"`
	Or     *[]Filter    `json:"or"`
	Filter *leafPayload `json:"filter"`
}

// UnmarshalJSON decodes the tagged-union wire format: exactly one of
// {"and": [...]}, {"or": [...]}, {"filter": {"name": ..., "eq": ...}}.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var payload filterPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return f.fromPayload(payload)
}

func (f *Filter) fromPayload(payload filterPayload) error {
	tags := 0
	if payload.And != nil {
		tags++
	}
	if payload.Or != nil {
		tags++
	}
	if payload.Filter != nil {
		tags++
	}
	if tags != 1 {
		return fmt.Errorf("%w: expected exactly one of \"and\", \"or\", \"filter\"", ErrParse)
	}

	switch {
	case payload.And != nil:
		*f = And(*payload.And...)
	case payload.Or != nil:
		*f = Or(*payload.Or...)
	default:
		if payload.Filter.Name == nil || payload.Filter.Eq == nil {
			return fmt.Errorf("%w: filter leaf requires \"name\" and \"eq\"", ErrParse)
		}
		*f = Leaf(*payload.Filter.Name, *payload.Filter.Eq)
	}
	return nil
}

func (f Filter) MarshalJSON() ([]byte, error) {
	switch f.op {
	case opAnd:
		return json.Marshal(map[string][]Filter{"and": f.childrenOrEmpty()})
	case opOr:
		return json.Marshal(map[string][]Filter{"or": f.childrenOrEmpty()})
	default:
		return json.Marshal(map[string]any{"filter": map[string]any{
			"name": f.name,
			"eq":   f.eq,
		}})
	}
}

func (f Filter) childrenOrEmpty() []Filter {
	if f.children == nil {
		return []Filter{}
	}
	return f.children
}

// KeyLookup resolves a leaf predicate to the set of event keys carrying that
// (name, value) pair, i.e. the property store's point-lookup primitive.
type KeyLookup func(name string, eq event.Value) map[string]struct{}

// Match reports whether the event identified by key satisfies the filter.
// Evaluation is a set-membership test per leaf, so nested and/or compose
// without tracking partial attribute state.
func (f Filter) Match(key string, lookup KeyLookup) bool {
	switch f.op {
	case opAnd:
		for _, child := range f.children {
			if !child.Match(key, lookup) {
				return false
			}
		}
		return true
	case opOr:
		for _, child := range f.children {
			if child.Match(key, lookup) {
				return true
			}
		}
		return false
	default:
		_, ok := lookup(f.name, f.eq)[key]
		return ok
	}
}
