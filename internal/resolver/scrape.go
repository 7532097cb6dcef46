package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/transport"
)

// ErrNoEmbeddedLink is returned when a two-step page carries no document link.
var ErrNoEmbeddedLink = errors.New("no embedded document link")

const maxPageSize = 5 << 20

// Scraper resolves two-step candidates by fetching the embedding page and
// reading the document link from it.
type Scraper struct {
	http *transport.Client
}

// NewScraper creates a Scraper that fetches pages with hc.
func NewScraper(hc *transport.Client) *Scraper {
	return &Scraper{http: hc}
}

// ResolveEmbeddedLink fetches c.URL and returns the absolute URL held by the
// first element matching the candidate's selector. Relative and
// protocol-relative links are resolved against the final page URL.
func (s *Scraper) ResolveEmbeddedLink(ctx context.Context, c Candidate) (string, error) {
	if !c.Source.RequiresDOMScrape {
		return c.URL, nil
	}

	resp, err := s.http.Get(ctx, c.URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageSize))
		return "", domain.NewTransportError(c.URL, resp.StatusCode, nil)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", domain.NewTransportError(c.URL, 0, fmt.Errorf("parse page: %w", err))
	}

	link, ok := doc.Find(c.Source.Selector).First().Attr(c.Source.Attribute)
	link = strings.TrimSpace(link)
	if !ok || link == "" {
		return "", fmt.Errorf("%s: %w (%s[%s])", c.URL, ErrNoEmbeddedLink, c.Source.Selector, c.Source.Attribute)
	}

	base := resp.Request.URL
	if base == nil {
		if base, err = url.Parse(c.URL); err != nil {
			return "", fmt.Errorf("parse page url: %w", err)
		}
	}
	return absoluteURL(base, link)
}

func absoluteURL(base *url.URL, link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse embedded link %q: %w", link, err)
	}
	return base.ResolveReference(ref).String(), nil
}
