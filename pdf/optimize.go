package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Optimize rewrites a document through pdfcpu's optimizer. The rewrite is
// lossless, which makes it a safe last-resort fallback when Ghostscript
// produces nothing usable.
func Optimize(inputPath, outputPath string) error {
	if err := api.OptimizeFile(inputPath, outputPath, nil); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}
