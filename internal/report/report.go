// Package report writes the end-of-batch failure list and summary line.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// FailedListName is the file name of the failure list.
const FailedListName = "failed_list.csv"

// DefaultFailedListPath places the failure list in the parent of the
// destination directory.
func DefaultFailedListPath(destDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(destDir)), FailedListName)
}

// WriteFailedList writes pmids as tab-separated text with a "pmid" header,
// replacing any existing file.
func WriteFailedList(path string, pmids []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failed list: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write([]string{"pmid"}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write failed list header: %w", err)
	}
	for _, pmid := range pmids {
		if err := w.Write([]string{pmid}); err != nil {
			_ = f.Close()
			return fmt.Errorf("write failed list: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush failed list: %w", err)
	}
	return f.Close()
}

// Summary returns the completion line "done: <succeeded>/<total>". Records
// that already existed count as succeeded.
func Summary(r domain.BatchResult) string {
	return fmt.Sprintf("done: %d/%d", r.Succeeded(), r.Total())
}
