// Package resolver turns a record's identifiers into the ordered list of
// document URLs to try. It performs no network I/O except in the Scraper,
// which resolves two-step catalog entries.
package resolver

import (
	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// Candidate is a catalog entry materialized for one identifier.
type Candidate struct {
	Source domain.CandidateSource
	// URL is the document URL for direct entries and the embedding page for
	// two-step entries.
	URL string
}

// KindPlan holds the candidates of one identifier kind.
type KindPlan struct {
	Kind       domain.IdentifierType
	Identifier string
	Candidates []Candidate
}

// Resolver materializes catalog entries.
type Resolver struct {
	catalog Catalog
}

// New creates a Resolver over catalog, or DefaultCatalog when catalog is empty.
func New(catalog Catalog) *Resolver {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	return &Resolver{catalog: catalog}
}

// Catalog returns the catalog in use.
func (r *Resolver) Catalog() Catalog {
	return r.catalog
}

// Resolve returns the candidates of kind for the record's primary identifier
// of that kind, in catalog order. It returns nil when the record has no such
// identifier.
func (r *Resolver) Resolve(ids domain.IdentifierSet, kind domain.IdentifierType) []Candidate {
	value, ok := ids.Primary(kind)
	if !ok {
		return nil
	}
	return r.resolve(kind, value)
}

func (r *Resolver) resolve(kind domain.IdentifierType, value string) []Candidate {
	sources := r.catalog.ForKind(kind)
	if len(sources) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(sources))
	for _, s := range sources {
		out = append(out, Candidate{Source: s, URL: expand(s.URLTemplate, kind, value)})
	}
	return out
}

// Plan returns one KindPlan per identifier kind the record carries, in
// DOI, PII, PMC order.
func (r *Resolver) Plan(ids domain.IdentifierSet) []KindPlan {
	var plans []KindPlan
	for _, kind := range domain.RetrievalKinds {
		value, ok := ids.Primary(kind)
		if !ok {
			continue
		}
		plans = append(plans, KindPlan{
			Kind:       kind,
			Identifier: value,
			Candidates: r.resolve(kind, value),
		})
	}
	return plans
}
