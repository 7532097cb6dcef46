package record

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/xmltree"
)

// Paths below are relative to a PubmedArticle element.
const (
	pathPMID             = "MedlineCitation/PMID"
	pathArticleIDs       = "PubmedData/ArticleIdList/ArticleId"
	pathMesh             = "MedlineCitation/MeshHeadingList/MeshHeading/DescriptorName"
	pathPublicationTypes = "MedlineCitation/Article/PublicationTypeList/PublicationType"
	pathTitle            = "MedlineCitation/Article/ArticleTitle"
	pathPages            = "MedlineCitation/Article/Pagination/MedlinePgn"
	pathLanguage         = "MedlineCitation/Article/Language"
	pathCountry          = "MedlineCitation/MedlineJournalInfo/Country"
	pathAbstract         = "MedlineCitation/Article/Abstract/AbstractText"
	pathKeywords         = "MedlineCitation/KeywordList/Keyword"
	pathAuthors          = "MedlineCitation/Article/AuthorList/Author"
	pathJournal          = "MedlineCitation/Article/Journal"
	pathVolume           = "MedlineCitation/Article/Journal/JournalIssue/Volume"
	pathIssue            = "MedlineCitation/Article/Journal/JournalIssue/Issue"
	pathReferences       = "PubmedData/ReferenceList/Reference"
	pathPubDate          = "MedlineCitation/Article/Journal/JournalIssue/PubDate"
)

func extractPMID(n xmltree.Node) (string, bool) {
	return n.FirstText(pathPMID)
}

// parseIdentifiers reads ArticleId elements at path under n, keeping order
// and repeated kinds.
func parseIdentifiers(n xmltree.Node, path string) []domain.Identifier {
	nodes := n.All(path)
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]domain.Identifier, 0, len(nodes))
	for _, el := range nodes {
		ids = append(ids, domain.Identifier{
			Type:  domain.IdentifierType(strings.ToLower(el.Attr("IdType"))),
			Value: el.Text(),
		})
	}
	return ids
}

func extractIdentifiers(n xmltree.Node) domain.IdentifierSet {
	return domain.IdentifierSet(parseIdentifiers(n, pathArticleIDs))
}

func extractMeshTerms(n xmltree.Node) []domain.MeshTerm {
	var terms []domain.MeshTerm
	for _, el := range n.All(pathMesh) {
		terms = append(terms, domain.MeshTerm{Code: el.Attr("UI"), Label: el.Text()})
	}
	return terms
}

func extractPublicationTypes(n xmltree.Node) []domain.PublicationType {
	var types []domain.PublicationType
	for _, el := range n.All(pathPublicationTypes) {
		types = append(types, domain.PublicationType{Code: el.Attr("UI"), Label: el.Text()})
	}
	return types
}

func extractTitle(n xmltree.Node) (string, bool) {
	return n.FirstText(pathTitle)
}

func extractPages(n xmltree.Node) string {
	s, _ := n.FirstText(pathPages)
	return s
}

func extractLanguage(n xmltree.Node) string {
	s, _ := n.FirstText(pathLanguage)
	return s
}

func extractCountry(n xmltree.Node) string {
	s, _ := n.FirstText(pathCountry)
	return s
}

// extractAbstract concatenates AbstractText paragraphs, prefixing labelled
// sections with "Label:".
func extractAbstract(n xmltree.Node) string {
	var b strings.Builder
	for _, el := range n.All(pathAbstract) {
		if label := el.Attr("Label"); label != "" {
			b.WriteString(capitalize(label))
			b.WriteString(":")
		}
		b.WriteString(el.Text())
	}
	return b.String()
}

func extractKeywords(n xmltree.Node) []string {
	return n.AllText(pathKeywords)
}

func extractAuthors(n xmltree.Node) []domain.Author {
	var authors []domain.Author
	for _, el := range n.All(pathAuthors) {
		authors = append(authors, parseAuthor(el))
	}
	return authors
}

func parseAuthor(el xmltree.Node) domain.Author {
	text := func(path string) string {
		s, _ := el.FirstText(path)
		return s
	}
	return domain.Author{
		LastName:    text("LastName"),
		ForeName:    text("ForeName"),
		Initials:    text("Initials"),
		Affiliation: text("AffiliationInfo/Affiliation"),
	}
}

// extractJournal requires Title and ISOAbbreviation; the returned string names
// the missing field when ok is false.
func extractJournal(n xmltree.Node) (domain.Journal, string, bool) {
	el := n.First(pathJournal)
	if el == nil {
		return domain.Journal{}, "journal", false
	}

	var j domain.Journal
	if issn := el.First("ISSN"); issn != nil {
		j.ISSN = issn.Text()
		j.ISSNType = issn.Attr("IssnType")
	}

	var ok bool
	if j.Title, ok = el.FirstText("Title"); !ok {
		return domain.Journal{}, "journal.title", false
	}
	if j.Abbreviation, ok = el.FirstText("ISOAbbreviation"); !ok {
		return domain.Journal{}, "journal.abbr", false
	}
	return j, "", true
}

func extractVolume(n xmltree.Node) string {
	s, _ := n.FirstText(pathVolume)
	return s
}

func extractIssue(n xmltree.Node) string {
	s, _ := n.FirstText(pathIssue)
	return s
}

// extractReferences skips references without citation text.
func extractReferences(n xmltree.Node) []domain.Reference {
	var refs []domain.Reference
	for _, el := range n.All(pathReferences) {
		citation, ok := el.FirstText("Citation")
		if !ok {
			continue
		}
		refs = append(refs, domain.Reference{
			Citation: citation,
			IDs:      parseIdentifiers(el, "ArticleIdList/ArticleId"),
		})
	}
	return refs
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
