// Package pubdate normalizes registry PubDate elements into calendar dates.
//
// Registries encode publication dates in many shapes: structured
// Year/Month/Day groups with missing parts, seasons, and free-text MedlineDate
// strings holding month, day, season and cross-year ranges. Normalization runs
// an ordered cascade of matchers and keeps the first match; ranges resolve to
// their earliest bound and missing month or day default to 1.
package pubdate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/xmltree"
)

// ErrUnparseable is returned when no matcher recognizes a date.
var ErrUnparseable = errors.New("unparseable publication date")

// UnparseableError carries the raw date content that failed normalization.
type UnparseableError struct {
	Fields Fields
}

// Error implements the error interface.
func (e *UnparseableError) Error() string {
	return fmt.Sprintf("%s: year=%q month=%q day=%q season=%q medline=%q",
		ErrUnparseable, e.Fields.Year, e.Fields.Month, e.Fields.Day, e.Fields.Season, e.Fields.MedlineDate)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UnparseableError) Unwrap() error {
	return ErrUnparseable
}

// Normalizer runs a fixed matcher cascade.
type Normalizer struct {
	matchers []Matcher
}

// New creates a Normalizer over the given matchers, or DefaultMatchers when
// none are given.
func New(matchers ...Matcher) *Normalizer {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Normalizer{matchers: matchers}
}

var defaultNormalizer = New()

// Normalize normalizes a PubDate element with the default cascade.
func Normalize(node xmltree.Node) (domain.PublicationDate, error) {
	return defaultNormalizer.Normalize(node)
}

// FieldsFrom reads the PubDate children of node.
func FieldsFrom(node xmltree.Node) Fields {
	if node == nil {
		return Fields{}
	}
	text := func(path string) string {
		s, _ := node.FirstText(path)
		return s
	}
	return Fields{
		Year:        text("Year"),
		Month:       text("Month"),
		Day:         text("Day"),
		Season:      text("Season"),
		MedlineDate: strings.Join(strings.Fields(text("MedlineDate")), " "),
	}
}

// Normalize returns the date of the first matching matcher.
func (n *Normalizer) Normalize(node xmltree.Node) (domain.PublicationDate, error) {
	d, _, err := n.NormalizeFields(FieldsFrom(node))
	return d, err
}

// NormalizeFields runs the cascade over already extracted fields and also
// returns the name of the matcher that produced the date.
func (n *Normalizer) NormalizeFields(f Fields) (domain.PublicationDate, string, error) {
	for _, m := range n.matchers {
		if d, ok := m.Match(f); ok {
			return d, m.Name, nil
		}
	}
	return domain.PublicationDate{}, "", &UnparseableError{Fields: f}
}
