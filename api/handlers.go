package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pdf_utilities/compress"
	"pdf_utilities/history"
)

// HandleHealth is the liveness probe.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleMerge concatenates the uploaded documents, in input order, into one
// PDF and streams it back as an attachment.
func (s *Server) HandleMerge(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, s.log, &ValidationError{Message: "invalid multipart payload"})
		return
	}
	files := form.File["files"]
	if len(files) < 2 {
		respondError(c, s.log, &ValidationError{Message: "at least 2 PDF files are required for merging"})
		return
	}

	// Name and size checks happen before anything touches the workspace.
	for _, fh := range files {
		if err := s.checkUpload(fh); err != nil {
			respondError(c, s.log, err)
			return
		}
	}

	inputPaths := make([]string, 0, len(files))
	defer func() {
		// Input copies are released as soon as the merge is done with them.
		for _, p := range inputPaths {
			os.Remove(p)
		}
	}()

	for _, fh := range files {
		path := s.ws.NewFilePath("merge_in")
		if err := s.saveUpload(fh, path); err != nil {
			respondError(c, s.log, err)
			return
		}
		inputPaths = append(inputPaths, path)

		if err := s.merger.Validate(path); err != nil {
			s.log.WithError(err).WithField("file", fh.Filename).Warn("merge input failed validation")
			respondError(c, s.log, &InvalidInputError{Filename: fh.Filename, Reason: "not a well-formed PDF"})
			return
		}
	}

	outputPath := s.ws.NewFilePath("merged")
	if err := s.merger.Merge(inputPaths, outputPath); err != nil {
		os.Remove(outputPath)
		respondError(c, s.log, err)
		return
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		respondError(c, s.log, fmt.Errorf("stat merged output: %w", err))
		return
	}

	pages := 0
	if n, countErr := s.merger.PageCount(outputPath); countErr == nil {
		pages = n
	}

	var totalIn int64
	for _, fh := range files {
		totalIn += fh.Size
	}
	s.recordJob(&history.Job{
		Operation:    "merge",
		InputFiles:   len(files),
		OriginalSize: totalIn,
		OutputSize:   outInfo.Size(),
	})

	s.log.WithFields(logrus.Fields{
		"files": len(files),
		"pages": pages,
		"size":  outInfo.Size(),
	}).Info("merge complete")

	filename := "merged_" + time.Now().Format(TimestampLayout) + ".pdf"
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.File(outputPath)
}

// HandleCompress runs the compression pipeline against a single uploaded
// document and streams the result back with size metadata headers.
func (s *Server) HandleCompress(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, s.log, &ValidationError{Message: "no file uploaded"})
		return
	}
	if err := s.checkUpload(fh); err != nil {
		respondError(c, s.log, err)
		return
	}

	preset, setting, err := resolvePreset(c)
	if err != nil {
		respondError(c, s.log, err)
		return
	}

	// Tool absence is reported before any file lands in the workspace.
	if err := s.pipeline.Available(); err != nil {
		respondError(c, s.log, err)
		return
	}

	inputPath := s.ws.NewFilePath("compress_in")
	if err := s.saveUpload(fh, inputPath); err != nil {
		respondError(c, s.log, err)
		return
	}

	outputPath := s.ws.NewFilePath("compressed")
	result, err := s.pipeline.Compress(c.Request.Context(), inputPath, outputPath, preset)
	if err != nil {
		respondError(c, s.log, err)
		return
	}

	s.recordJob(&history.Job{
		Operation:        "compress",
		InputFiles:       1,
		OriginalSize:     result.OriginalSize,
		OutputSize:       result.CompressedSize,
		ReductionPercent: result.ReductionPercent,
		Preset:           result.Preset,
	})

	s.log.WithFields(logrus.Fields{
		"preset":          result.Preset,
		"original_size":   result.OriginalSize,
		"compressed_size": result.CompressedSize,
		"reduction":       fmt.Sprintf("%.2f", result.ReductionPercent),
	}).Info("compression complete")

	filename := "compressed_" + time.Now().Format(TimestampLayout) + ".pdf"
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header(HeaderOriginalSize, strconv.FormatInt(result.OriginalSize, 10))
	c.Header(HeaderCompressedSize, strconv.FormatInt(result.CompressedSize, 10))
	c.Header(HeaderReductionPercentage, fmt.Sprintf("%.2f", result.ReductionPercent))
	c.Header(HeaderQualitySetting, setting)
	c.File(result.OutputPath)
}

// HandleJobs lists recently completed operations.
func (s *Server) HandleJobs(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []history.Job{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(history.DefaultLimit)))
	jobs, err := s.jobs.Recent(limit)
	if err != nil {
		respondError(c, s.log, fmt.Errorf("list jobs: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// resolvePreset reads the quality or level form field; level wins when both
// are present. Out-of-range values are rejected before any file I/O.
func resolvePreset(c *gin.Context) (compress.Preset, string, error) {
	if levelStr := c.PostForm("level"); levelStr != "" {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			return compress.Preset{}, "", &ValidationError{Message: "level must be an integer between 0 and 3"}
		}
		preset, err := compress.ForLevel(level)
		if err != nil {
			return compress.Preset{}, "", err
		}
		return preset, "level=" + levelStr, nil
	}

	qualityStr := c.DefaultPostForm("quality", strconv.Itoa(DefaultQuality))
	quality, err := strconv.Atoi(qualityStr)
	if err != nil {
		return compress.Preset{}, "", &ValidationError{Message: "quality must be an integer between 1 and 100"}
	}
	preset, err := compress.ForQuality(quality)
	if err != nil {
		return compress.Preset{}, "", err
	}
	return preset, "quality=" + qualityStr, nil
}

// checkUpload rejects uploads by declared name and size before any bytes are
// written to the workspace.
func (s *Server) checkUpload(fh *multipart.FileHeader) error {
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return &InvalidInputError{Filename: fh.Filename, Reason: "not a PDF"}
	}
	if s.cfg.MaxFileSize > 0 && fh.Size > s.cfg.MaxFileSize {
		return &ValidationError{Message: fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, s.cfg.MaxFileSize)}
	}
	return nil
}

// saveUpload copies an uploaded file into the workspace, sniffing the magic
// header before committing any bytes to disk.
func (s *Server) saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	buf := make([]byte, 4)
	if _, err := io.ReadFull(src, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return &InvalidInputError{Filename: fh.Filename, Reason: "file too short to be a PDF"}
		}
		return fmt.Errorf("read upload header: %w", err)
	}
	if string(buf) != "%PDF" {
		return &InvalidInputError{Filename: fh.Filename, Reason: "missing %PDF header"}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("write temp file: %w", err)
	}
	return nil
}

func (s *Server) recordJob(job *history.Job) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Record(job); err != nil {
		s.log.WithError(err).Warn("record job failed")
	}
}
