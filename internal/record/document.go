package record

import (
	"encoding/json"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// DateLayout is the layout of Document.PubDate.
const DateLayout = "2006-01-02"

// Document is the text representation of a Record.
type Document struct {
	PMID             string                   `json:"pmid"`
	IDs              []domain.Identifier      `json:"ids"`
	Title            string                   `json:"title"`
	Abstract         string                   `json:"abstract"`
	Keywords         []string                 `json:"keywords"`
	MeshTerms        []domain.MeshTerm        `json:"mesh_terms"`
	PublicationTypes []domain.PublicationType `json:"publication_types"`
	Authors          []domain.Author          `json:"authors"`
	Journal          domain.Journal           `json:"journal"`
	Volume           string                   `json:"volume"`
	Issue            string                   `json:"issue"`
	Pages            string                   `json:"pages"`
	Language         string                   `json:"language"`
	Country          string                   `json:"country"`
	References       []domain.Reference       `json:"references"`
	PubDate          string                   `json:"pubdate"`
}

// NewDocument builds the representation of r. Nil slices become empty so the
// JSON form always carries arrays.
func NewDocument(r *domain.Record) Document {
	return Document{
		PMID:             r.PMID,
		IDs:              nonNil([]domain.Identifier(r.IDs)),
		Title:            r.Title,
		Abstract:         r.Abstract,
		Keywords:         nonNil(r.Keywords),
		MeshTerms:        nonNil(r.MeshTerms),
		PublicationTypes: nonNil(r.PublicationTypes),
		Authors:          nonNil(r.Authors),
		Journal:          r.Journal,
		Volume:           r.Volume,
		Issue:            r.Issue,
		Pages:            r.Pages,
		Language:         r.Language,
		Country:          r.Country,
		References:       nonNil(r.References),
		PubDate:          r.PubDate.Time().Format(DateLayout),
	}
}

// String renders the document as indented JSON.
func (d Document) String() string {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
