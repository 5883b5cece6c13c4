package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger validates and concatenates PDF documents via pdfcpu.
type Merger struct {
	conf *model.Configuration
}

// NewMerger returns a Merger with relaxed validation, matching what most
// real-world PDFs need.
func NewMerger() *Merger {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Merger{conf: conf}
}

// Validate confirms the file is a structurally well-formed PDF.
func (m *Merger) Validate(path string) error {
	if err := api.ValidateFile(path, m.conf); err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}
	return nil
}

// PageCount returns the number of pages in the document.
func (m *Merger) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// Merge appends all pages from the inputs, preserving input order, into one
// output file. A failure at any point aborts the whole merge.
func (m *Merger) Merge(inputPaths []string, outputPath string) error {
	if err := api.MergeCreateFile(inputPaths, outputPath, false, m.conf); err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}
