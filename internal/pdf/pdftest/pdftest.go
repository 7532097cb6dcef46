// Package pdftest builds small structurally valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Document returns a PDF with the given number of blank pages. The
// cross-reference table carries exact offsets so strict parsers accept it.
func Document(pages int) []byte {
	return build(pages, 0)
}

func build(pages, skew int) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		pagesObject(pages),
	}
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off+skew)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pagesObject(pages int) string {
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	return fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages)
}

// Truncated returns a document whose header is valid but whose trailer is
// missing.
func Truncated() []byte {
	doc := Document(1)
	return doc[:len(doc)/2]
}

// BrokenXref returns a document whose trailer parses but whose
// cross-reference offsets point into the middle of objects.
func BrokenXref() []byte {
	return build(1, 3)
}
