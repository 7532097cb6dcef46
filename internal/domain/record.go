// Package domain provides the core types of the PubMed retrieval service.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// IdentifierType is the namespace an article identifier belongs to.
// Values mirror the IdType attribute of the registry's ArticleId element;
// unknown values are kept verbatim.
type IdentifierType string

// Known identifier types.
const (
	IdentifierDOI    IdentifierType = "doi"
	IdentifierPII    IdentifierType = "pii"
	IdentifierPMC    IdentifierType = "pmc"
	IdentifierPubMed IdentifierType = "pubmed"
	IdentifierMID    IdentifierType = "mid"
)

// RetrievalKinds lists the identifier kinds used for document retrieval in
// priority order.
var RetrievalKinds = []IdentifierType{IdentifierDOI, IdentifierPII, IdentifierPMC}

// Identifier is one typed identifier of an article.
type Identifier struct {
	Type  IdentifierType `json:"id_type"`
	Value string         `json:"id_value"`
}

// IdentifierSet keeps every identifier of a record in registry document order,
// including repeated kinds.
type IdentifierSet []Identifier

// All returns every non-empty value of the given kind, trimmed, in order.
func (s IdentifierSet) All(kind IdentifierType) []string {
	var values []string
	for _, id := range s {
		if id.Type != kind {
			continue
		}
		if v := strings.TrimSpace(id.Value); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Primary returns the identifier of the given kind used for retrieval.
// The policy is "first in document order".
func (s IdentifierSet) Primary(kind IdentifierType) (string, bool) {
	values := s.All(kind)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Has reports whether the set carries a non-empty identifier of kind.
func (s IdentifierSet) Has(kind IdentifierType) bool {
	_, ok := s.Primary(kind)
	return ok
}

// ValidatePMID reports a *ValidationError unless pmid is a non-empty run of
// ASCII digits.
func ValidatePMID(pmid string) error {
	if pmid == "" {
		return NewValidationError("pmid", "is required")
	}
	for _, r := range pmid {
		if r < '0' || r > '9' {
			return NewValidationError("pmid", fmt.Sprintf("%q is not a numeric PubMed identifier", pmid))
		}
	}
	return nil
}

// MeshTerm is a MeSH descriptor attached to a record.
type MeshTerm struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// PublicationType is a registry publication type attached to a record.
type PublicationType struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Author is one entry of a record's author list.
type Author struct {
	LastName    string `json:"last_name,omitempty"`
	ForeName    string `json:"forename,omitempty"`
	Initials    string `json:"initials,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Journal describes the publishing journal.
type Journal struct {
	ISSN         string `json:"issn,omitempty"`
	ISSNType     string `json:"issn_type,omitempty"`
	Title        string `json:"title"`
	Abbreviation string `json:"abbr"`
}

// Reference is a cited work listed by a record.
type Reference struct {
	Citation string       `json:"citation"`
	IDs      []Identifier `json:"ids"`
}

// PublicationDate is a normalized calendar date. Month and Day are 1 when the
// source text did not carry that precision.
type PublicationDate struct {
	Year  int
	Month int
	Day   int
}

// String formats the date as YYYY-MM-DD.
func (d PublicationDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns the date as midnight UTC.
func (d PublicationDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the date is unset.
func (d PublicationDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Record is the normalized bibliographic unit for one PubMed article.
// It is built once by the mapper and must not be modified afterwards.
type Record struct {
	PMID             string
	IDs              IdentifierSet
	Title            string
	Abstract         string
	Keywords         []string
	MeshTerms        []MeshTerm
	PublicationTypes []PublicationType
	Authors          []Author
	Journal          Journal
	Volume           string
	Issue            string
	Pages            string
	Language         string
	Country          string
	References       []Reference
	PubDate          PublicationDate
}
