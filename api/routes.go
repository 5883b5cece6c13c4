package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pdf_utilities/compress"
	"pdf_utilities/history"
	"pdf_utilities/workspace"
)

// Config holds application configuration.
type Config struct {
	Host           string
	Port           string
	MaxFileSize    int64
	TempDir        string
	AllowedOrigins []string
	FrontendDir    string
	DatabasePath   string
	GhostscriptBin string
	ToolTimeout    time.Duration
	MinReduction   float64
}

// Merger is the PDF manipulation capability consumed by the merge handler.
type Merger interface {
	Validate(path string) error
	PageCount(path string) (int, error)
	Merge(inputPaths []string, outputPath string) error
}

// Compressor runs the compression pipeline.
type Compressor interface {
	Available() error
	Compress(ctx context.Context, inputPath, outputPath string, preset compress.Preset) (*compress.Result, error)
}

// JobStore records completed operations. The server tolerates a nil store.
type JobStore interface {
	Record(job *history.Job) error
	Recent(limit int) ([]history.Job, error)
}

// Server wires handlers to their collaborators.
type Server struct {
	cfg      *Config
	ws       *workspace.Workspace
	merger   Merger
	pipeline Compressor
	jobs     JobStore
	log      *logrus.Logger
}

// NewServer builds the handler set.
func NewServer(cfg *Config, ws *workspace.Workspace, merger Merger, pipeline Compressor, jobs JobStore, log *logrus.Logger) *Server {
	return &Server{
		cfg:      cfg,
		ws:       ws,
		merger:   merger,
		pipeline: pipeline,
		jobs:     jobs,
		log:      log,
	}
}

// SetupRoutes registers the API surface on the engine.
func SetupRoutes(r *gin.Engine, s *Server) {
	apiGroup := r.Group("/api")
	{
		pdfGroup := apiGroup.Group("/pdf")
		{
			pdfGroup.POST("/merge", s.HandleMerge)
			pdfGroup.POST("/compress", s.HandleCompress)
			pdfGroup.GET("/jobs", s.HandleJobs)
		}
		apiGroup.GET("/health", s.HandleHealth)
	}
}
