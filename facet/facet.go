package facet

import (
	"strings"

	"github.com/hupe1980/facetgo/docset"
)

// ID identifies a facet. It is the facet's UniqueName, so it is stable across
// processes and rebuilds.
type ID string

// Definition declares a facet.
// UniqueName must be unique within one index's definitions; the builder does
// not enforce it.
type Definition struct {
	UniqueName  string `json:"unique_name" yaml:"unique_name"`
	Field       string `json:"field" yaml:"field"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Validate checks that the definition can be built and persisted.
func (d Definition) Validate() error {
	switch {
	case d.UniqueName == "":
		return argError("definition", "empty unique name")
	case d.Field == "":
		return argError("definition", "facet %q has an empty field", d.UniqueName)
	case d.UniqueName == "." || d.UniqueName == ".." || strings.ContainsAny(d.UniqueName, `/\`):
		return argError("definition", "unique name %q is not a valid file name", d.UniqueName)
	}

	for _, s := range []string{d.UniqueName, d.Field, d.DisplayName} {
		if strings.ContainsAny(s, "|\r\n") {
			return argError("definition", "%q contains a delimiter or line break", s)
		}
	}
	return nil
}

// Value is one distinct term of a facet field and the documents carrying it.
type Value struct {
	Raw  string
	Docs *docset.Set
}

// Facet is a built facet. It is immutable after construction.
//
// Value sets need not be disjoint: a document may carry several terms of the
// same field.
type Facet struct {
	ID          ID
	UniqueName  string
	Field       string
	DisplayName string
	Values      []Value

	byRaw map[string]int
}

// New assembles a facet from a definition and its values in term order.
// Values must have distinct raw strings.
func New(def Definition, values []Value) (*Facet, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	byRaw := make(map[string]int, len(values))
	for i, v := range values {
		if _, dup := byRaw[v.Raw]; dup {
			return nil, argError("values", "facet %q has duplicate value %q", def.UniqueName, v.Raw)
		}
		if v.Docs == nil {
			return nil, argError("values", "facet %q value %q has no document set", def.UniqueName, v.Raw)
		}
		byRaw[v.Raw] = i
	}

	return &Facet{
		ID:          ID(def.UniqueName),
		UniqueName:  def.UniqueName,
		Field:       def.Field,
		DisplayName: def.DisplayName,
		Values:      values,
		byRaw:       byRaw,
	}, nil
}

// Definition returns the definition the facet was built from.
func (f *Facet) Definition() Definition {
	return Definition{UniqueName: f.UniqueName, Field: f.Field, DisplayName: f.DisplayName}
}

// Lookup returns the document set for a raw value.
func (f *Facet) Lookup(raw string) (*docset.Set, bool) {
	i, ok := f.byRaw[raw]
	if !ok {
		return nil, false
	}
	return f.Values[i].Docs, true
}

// Len returns the number of values.
func (f *Facet) Len() int { return len(f.Values) }

// Match is the count of query matches carrying one facet value.
type Match struct {
	FacetID ID     `json:"facet_id"`
	Value   string `json:"value"`
	Count   uint64 `json:"count"`
}

// Refinement selects one value of one facet.
type Refinement struct {
	FacetID ID     `json:"facet_id"`
	Value   string `json:"value"`
}

// Hit is a scored document returned by the search engine.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SearchResult is the answer to one faceted query.
type SearchResult struct {
	Hits   []Hit   `json:"hits"`
	Total  uint64  `json:"total"`
	Facets []Match `json:"facets"`
}
