// Package record maps registry PubmedArticle trees into domain records.
//
// Each field has its own extractor reading a fixed path below the article
// element. Optional fields come back empty when absent; the PMID, title,
// journal and publication date are required and their absence fails the whole
// mapping with a *domain.MappingError.
package record

import (
	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/pubdate"
	"github.com/helixir/pubmed-retrieval-service/internal/xmltree"
)

// Required field names reported in mapping errors.
const (
	FieldPMID    = "pmid"
	FieldTitle   = "title"
	FieldPubDate = "pubdate"
)

// Mapper builds records from PubmedArticle elements.
type Mapper struct {
	dates *pubdate.Normalizer
}

// NewMapper creates a Mapper. A nil normalizer selects the default date cascade.
func NewMapper(dates *pubdate.Normalizer) *Mapper {
	if dates == nil {
		dates = pubdate.New()
	}
	return &Mapper{dates: dates}
}

var defaultMapper = NewMapper(nil)

// Map maps article with the default date cascade.
func Map(article xmltree.Node) (*domain.Record, error) {
	return defaultMapper.Map(article)
}

// Map projects a PubmedArticle element into a Record. It does not modify the
// tree and returns equal records for equal input.
func (m *Mapper) Map(article xmltree.Node) (*domain.Record, error) {
	if article == nil {
		return nil, domain.NewMappingError("", FieldPMID, nil)
	}

	pmid, ok := extractPMID(article)
	if !ok {
		return nil, domain.NewMappingError("", FieldPMID, nil)
	}

	title, ok := extractTitle(article)
	if !ok {
		return nil, domain.NewMappingError(pmid, FieldTitle, nil)
	}

	journal, missing, ok := extractJournal(article)
	if !ok {
		return nil, domain.NewMappingError(pmid, missing, nil)
	}

	dateNode := article.First(pathPubDate)
	if dateNode == nil {
		return nil, domain.NewMappingError(pmid, FieldPubDate, nil)
	}
	date, err := m.dates.Normalize(dateNode)
	if err != nil {
		return nil, domain.NewMappingError(pmid, FieldPubDate, err)
	}

	return &domain.Record{
		PMID:             pmid,
		IDs:              extractIdentifiers(article),
		Title:            title,
		Abstract:         extractAbstract(article),
		Keywords:         extractKeywords(article),
		MeshTerms:        extractMeshTerms(article),
		PublicationTypes: extractPublicationTypes(article),
		Authors:          extractAuthors(article),
		Journal:          journal,
		Volume:           extractVolume(article),
		Issue:            extractIssue(article),
		Pages:            extractPages(article),
		Language:         extractLanguage(article),
		Country:          extractCountry(article),
		References:       extractReferences(article),
		PubDate:          date,
	}, nil
}
