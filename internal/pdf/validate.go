package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// Validate parses the document at path and returns its page count. The
// parser panics on some malformed cross-reference data; those panics are
// reported as errors.
func Validate(path string) (pages int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
