package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// readPMIDs reads one PMID per line. Blank lines and lines starting with #
// are skipped; trailing "# ..." comments are stripped.
func readPMIDs(r io.Reader) ([]string, error) {
	var pmids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pmids = append(pmids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pmids: %w", err)
	}
	return pmids, nil
}

// collectPMIDs merges positional arguments with the contents of file, which
// may be "-" for stdin.
func collectPMIDs(args []string, file string, stdin io.Reader) ([]string, error) {
	pmids := append([]string(nil), args...)
	if file == "" {
		return pmids, nil
	}

	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open pmid file: %w", err)
		}
		defer f.Close()
		r = f
	}

	fromFile, err := readPMIDs(r)
	if err != nil {
		return nil, err
	}
	return append(pmids, fromFile...), nil
}
