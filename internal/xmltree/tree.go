// Package xmltree exposes a small tree-query interface over parsed XML.
//
// Callers address elements with relative XPath expressions such as
// "MedlineCitation/Article/ArticleTitle". The mapper and the date normalizer
// depend only on the Node interface, so the concrete XML library stays behind
// this package.
package xmltree

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Node is one element of a parsed document.
type Node interface {
	// Name returns the element's local name.
	Name() string
	// First returns the first element matching path, or nil.
	First(path string) Node
	// All returns every element matching path in document order.
	All(path string) []Node
	// FirstText returns the flattened text of the first element matching path.
	// ok is false when the element is missing or its text is empty.
	FirstText(path string) (text string, ok bool)
	// AllText returns the non-empty flattened text of every element matching path.
	AllText(path string) []string
	// Attr returns the value of the named attribute, or "".
	Attr(name string) string
	// Text returns the element's text and the text of its inline children in
	// document order, trimmed.
	Text() string
	// XML returns the element serialized as XML.
	XML() string
}

// Parse reads an XML document and returns its document node.
func Parse(r io.Reader) (Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return &element{n: doc}, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s string) (Node, error) {
	return Parse(strings.NewReader(s))
}

type element struct {
	n *xmlquery.Node
}

func wrap(n *xmlquery.Node) Node {
	if n == nil {
		return nil
	}
	return &element{n: n}
}

func (e *element) Name() string {
	return e.n.Data
}

func (e *element) First(path string) Node {
	n, err := xmlquery.Query(e.n, path)
	if err != nil {
		return nil
	}
	return wrap(n)
}

func (e *element) All(path string) []Node {
	nodes, err := xmlquery.QueryAll(e.n, path)
	if err != nil || len(nodes) == 0 {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{n: n})
	}
	return out
}

func (e *element) FirstText(path string) (string, bool) {
	n := e.First(path)
	if n == nil {
		return "", false
	}
	text := n.Text()
	return text, text != ""
}

func (e *element) AllText(path string) []string {
	var out []string
	for _, n := range e.All(path) {
		if text := n.Text(); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func (e *element) Attr(name string) string {
	return e.n.SelectAttr(name)
}

func (e *element) Text() string {
	var b strings.Builder
	collectText(&b, e.n)
	return strings.TrimSpace(b.String())
}

func (e *element) XML() string {
	return e.n.OutputXML(true)
}

// collectText appends text and character data below n in document order,
// descending into inline markup such as <i> or <sup>.
func collectText(b *strings.Builder, n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			b.WriteString(c.Data)
		case xmlquery.ElementNode:
			collectText(b, c)
		}
	}
}
