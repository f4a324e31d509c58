package extraction_engine

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfPageCount returns the page count of a PDF on disk via pdfcpu.
func pdfPageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}
