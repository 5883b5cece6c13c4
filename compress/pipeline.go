package compress

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// CompressionError reports that every attempt was exhausted without a usable
// output. Diagnostics carries the captured tool output of the last attempt.
type CompressionError struct {
	Diagnostics string
}

func (e *CompressionError) Error() string {
	if e.Diagnostics == "" {
		return "compression failed: no attempt produced a usable output"
	}
	return "compression failed: " + e.Diagnostics
}

// Optimizer is the library-level rewrite used as a last resort when the
// external tool produces nothing usable.
type Optimizer func(inputPath, outputPath string) error

// Result describes a finished compression.
type Result struct {
	OriginalSize     int64
	CompressedSize   int64
	ReductionPercent float64
	Preset           string
	OutputPath       string
}

// Pipeline orchestrates compression attempts with escalating parameter sets:
// the resolved preset first, a fixed aggressive profile when that fails, and
// a harsher escalation pass when the output did not shrink.
type Pipeline struct {
	runner       Runner
	optimizer    Optimizer
	minReduction float64
	log          *logrus.Logger
}

// NewPipeline builds a Pipeline. minReduction is the percentage below which
// a successful result is logged as a warning; zero disables the check.
func NewPipeline(runner Runner, optimizer Optimizer, minReduction float64, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		runner:       runner,
		optimizer:    optimizer,
		minReduction: minReduction,
		log:          log,
	}
}

// Available reports whether the external tool can be located.
func (pl *Pipeline) Available() error {
	return pl.runner.Available()
}

// Compress runs the attempt chain against inputPath and leaves the winning
// artifact at outputPath. The input artifact is removed unconditionally
// before returning; losing attempt artifacts are removed as they lose.
func (pl *Pipeline) Compress(ctx context.Context, inputPath, outputPath string, preset Preset) (*Result, error) {
	defer os.Remove(inputPath)

	if err := pl.runner.Available(); err != nil {
		return nil, err
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	originalSize := info.Size()

	var (
		bestPath   string
		bestSize   int64
		bestPreset string
		lastDiag   string
	)

	base := strings.TrimSuffix(outputPath, ".pdf")

	// runAttempt invokes the tool once. Success requires a clean exit and a
	// non-empty output file. Diagnostics are tagged per attempt so a silent
	// failure never surfaces an earlier attempt's text as its own.
	runAttempt := func(name string, args []string) (string, int64, bool) {
		candidate := base + "_" + name + ".pdf"
		output, err := pl.runner.Run(ctx, append(args, "-sOutputFile="+candidate, inputPath)...)
		diag := strings.TrimSpace(string(output))
		if err != nil {
			if diag == "" {
				diag = err.Error()
			}
			lastDiag = fmt.Sprintf("%s attempt: %s", name, diag)
			pl.log.WithError(err).WithField("attempt", name).Warn("compression attempt failed")
			os.Remove(candidate)
			return "", 0, false
		}
		st, statErr := os.Stat(candidate)
		if statErr != nil || st.Size() == 0 {
			lastDiag = fmt.Sprintf("%s attempt: produced no output", name)
			os.Remove(candidate)
			return "", 0, false
		}
		if diag != "" {
			lastDiag = fmt.Sprintf("%s attempt: %s", name, diag)
		}
		return candidate, st.Size(), true
	}

	// Primary attempt with the resolved preset, falling through to the fixed
	// most-aggressive profile when it fails.
	if path, size, ok := runAttempt("primary", presetArgs(preset)); ok {
		bestPath, bestSize, bestPreset = path, size, preset.Name
	} else if path, size, ok := runAttempt("fallback", presetArgs(tiers[0])); ok {
		bestPath, bestSize, bestPreset = path, size, tiers[0].Name
	}

	// Escalation: some output exists but did not shrink, and the request was
	// below the top two tiers. The harsher result replaces the best only when
	// strictly smaller.
	if bestPath != "" && bestSize >= originalSize && preset.Tier() < 2 {
		if path, size, ok := runAttempt("escalation", escalationArgs()); ok {
			if size < bestSize {
				os.Remove(bestPath)
				bestPath, bestSize, bestPreset = path, size, "escalated"
			} else {
				os.Remove(path)
			}
		}
	}

	// Library rewrite as a last resort when the tool produced nothing usable.
	if bestPath == "" && pl.optimizer != nil {
		candidate := base + "_optimized.pdf"
		if err := pl.optimizer(inputPath, candidate); err != nil {
			pl.log.WithError(err).Warn("library optimize fallback failed")
			os.Remove(candidate)
		} else if st, statErr := os.Stat(candidate); statErr == nil && st.Size() > 0 {
			bestPath, bestSize, bestPreset = candidate, st.Size(), "optimize"
		} else {
			os.Remove(candidate)
		}
	}

	if bestPath == "" {
		return nil, &CompressionError{Diagnostics: lastDiag}
	}

	if err := os.Rename(bestPath, outputPath); err != nil {
		os.Remove(bestPath)
		return nil, fmt.Errorf("finalize output: %w", err)
	}

	reduction := ReductionPercent(originalSize, bestSize)
	if pl.minReduction > 0 && reduction < pl.minReduction {
		pl.log.WithFields(logrus.Fields{
			"reduction": fmt.Sprintf("%.2f", reduction),
			"minimum":   fmt.Sprintf("%.2f", pl.minReduction),
			"preset":    bestPreset,
		}).Warn("reduction below configured minimum")
	}

	return &Result{
		OriginalSize:     originalSize,
		CompressedSize:   bestSize,
		ReductionPercent: reduction,
		Preset:           bestPreset,
		OutputPath:       outputPath,
	}, nil
}

// ReductionPercent is floored at 0 and reports 0 for an empty input.
func ReductionPercent(originalSize, compressedSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	r := 100 * (1 - float64(compressedSize)/float64(originalSize))
	if r < 0 {
		return 0
	}
	return r
}

// presetArgs builds the full Ghostscript argument set for a preset, without
// the output and input paths.
func presetArgs(p Preset) []string {
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dPDFSETTINGS=" + p.PDFSettings,
		"-dEmbedAllFonts=true",
		"-dSubsetFonts=true",
		"-dDetectDuplicateImages=true",
	}
	if p.Downsample {
		args = append(args,
			"-dDownsampleColorImages=true",
			"-dColorImageDownsampleType=/Bicubic",
			fmt.Sprintf("-dColorImageResolution=%d", p.ImageDPI),
			"-dDownsampleGrayImages=true",
			"-dGrayImageDownsampleType=/Bicubic",
			fmt.Sprintf("-dGrayImageResolution=%d", p.ImageDPI),
			"-dDownsampleMonoImages=true",
			"-dMonoImageDownsampleType=/Bicubic",
			fmt.Sprintf("-dMonoImageResolution=%d", p.ImageDPI),
			fmt.Sprintf("-dJPEGQ=%d", p.JPEGQuality),
		)
	}
	return args
}

// escalationArgs is the harshest parameter set: no font embedding, 50 DPI,
// grayscale color conversion.
func escalationArgs() []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dPDFSETTINGS=/screen",
		"-dEmbedAllFonts=false",
		"-dSubsetFonts=true",
		"-dColorConversionStrategy=/Gray",
		"-dDownsampleColorImages=true",
		"-dColorImageDownsampleType=/Average",
		"-dColorImageResolution=50",
		"-dDownsampleGrayImages=true",
		"-dGrayImageDownsampleType=/Average",
		"-dGrayImageResolution=50",
		"-dDownsampleMonoImages=true",
		"-dMonoImageDownsampleType=/Subsample",
		"-dMonoImageResolution=50",
		"-dJPEGQ=30",
	}
}
