package resolver

import (
	"fmt"
	"strings"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// URL template placeholders.
const (
	PlaceholderDOI      = "{doi}"
	PlaceholderPII      = "{pii}"
	PlaceholderPMC      = "{pmc}"
	PlaceholderPMCLower = "{pmc_lower}"
)

// Catalog is the ordered list of document hosts. Entries of one kind are
// tried in the order they appear.
type Catalog []domain.CandidateSource

// DefaultCatalog returns the curated host list in the order hosts are tried.
// Each host appears once per kind.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Kind:              domain.IdentifierDOI,
			Name:              "sci-hub.ren",
			URLTemplate:       "https://sci-hub.ren/{doi}",
			RequiresDOMScrape: true,
			Selector:          "iframe#pdf",
			Attribute:         "src",
		},
		direct(domain.IdentifierDOI, "sci-hub.wf", "https://sci-hub.wf/{doi}"),
		direct(domain.IdentifierDOI, "sci.bban.top", "https://sci.bban.top/pdf/{doi}.pdf#view=FitH"),
		direct(domain.IdentifierDOI, "spandidos", "https://www.spandidos-publications.com/{doi}/download"),
		direct(domain.IdentifierDOI, "wiley", "https://onlinelibrary.wiley.com/doi/pdfdirect/{doi}"),
		direct(domain.IdentifierDOI, "jeccr.biomedcentral", "https://jeccr.biomedcentral.com/track/pdf/{doi}"),
		direct(domain.IdentifierDOI, "frontiersin", "https://www.frontiersin.org/articles/{doi}/pdf"),
		direct(domain.IdentifierDOI, "plos-one", "https://journals.plos.org/plosone/article/file?id={doi}&type=printable"),
		direct(domain.IdentifierDOI, "tandfonline", "https://www.tandfonline.com/doi/pdf/{doi}?needAccess=true"),
		direct(domain.IdentifierDOI, "immunityageing.biomedcentral", "https://immunityageing.biomedcentral.com/track/pdf/{doi}"),
		direct(domain.IdentifierDOI, "pubs.acs", "https://pubs.acs.org/doi/pdf/{doi}"),
		direct(domain.IdentifierDOI, "sagepub", "https://journals.sagepub.com/doi/pdf/{doi}"),
		direct(domain.IdentifierDOI, "futuremedicine", "https://www.futuremedicine.com/doi/epub/{doi}"),

		direct(domain.IdentifierPII, "jto-showpdf", "https://www.jto.org/action/showPdf?pii={pii}"),
		direct(domain.IdentifierPII, "jto-article", "https://www.jto.org/article/{pii}/pdf"),
		direct(domain.IdentifierPII, "oncotarget", "https://www.oncotarget.com/article/{pii}/pdf/"),

		{
			Kind:              domain.IdentifierPMC,
			Name:              "ncbi-pmc",
			URLTemplate:       "https://www.ncbi.nlm.nih.gov/pmc/articles/{pmc}",
			RequiresDOMScrape: true,
			Selector:          `link[type="application/pdf"]`,
			Attribute:         "href",
		},
		direct(domain.IdentifierPMC, "europepmc", "http://europepmc.org/articles/{pmc_lower}?pdf=render"),
	}
}

func direct(kind domain.IdentifierType, name, template string) domain.CandidateSource {
	return domain.CandidateSource{Kind: kind, Name: name, URLTemplate: template}
}

// ForKind returns the entries of kind in catalog order.
func (c Catalog) ForKind(kind domain.IdentifierType) []domain.CandidateSource {
	var out []domain.CandidateSource
	for _, s := range c {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that every entry can be materialized.
func (c Catalog) Validate() error {
	names := make(map[string]struct{}, len(c))
	for i, s := range c {
		if s.Name == "" {
			return fmt.Errorf("catalog entry %d: name is required", i)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("catalog entry %q: duplicate name", s.Name)
		}
		names[s.Name] = struct{}{}

		placeholders, ok := kindPlaceholders[s.Kind]
		if !ok {
			return fmt.Errorf("catalog entry %q: unsupported kind %q", s.Name, s.Kind)
		}
		if !containsAny(s.URLTemplate, placeholders) {
			return fmt.Errorf("catalog entry %q: template %q has no %s placeholder", s.Name, s.URLTemplate, placeholders[0])
		}
		if s.RequiresDOMScrape && (s.Selector == "" || s.Attribute == "") {
			return fmt.Errorf("catalog entry %q: two-step entries need selector and attribute", s.Name)
		}
	}
	return nil
}

var kindPlaceholders = map[domain.IdentifierType][]string{
	domain.IdentifierDOI: {PlaceholderDOI},
	domain.IdentifierPII: {PlaceholderPII},
	domain.IdentifierPMC: {PlaceholderPMC, PlaceholderPMCLower},
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// expand substitutes the identifier into template.
func expand(template string, kind domain.IdentifierType, value string) string {
	switch kind {
	case domain.IdentifierDOI:
		return strings.ReplaceAll(template, PlaceholderDOI, value)
	case domain.IdentifierPII:
		return strings.ReplaceAll(template, PlaceholderPII, value)
	case domain.IdentifierPMC:
		return strings.NewReplacer(
			PlaceholderPMCLower, strings.ToLower(value),
			PlaceholderPMC, value,
		).Replace(template)
	default:
		return template
	}
}
