package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"pdf_utilities/api"
	"pdf_utilities/compress"
	"pdf_utilities/history"
	"pdf_utilities/pdf"
	"pdf_utilities/workspace"
)

const (
	// DefaultMaxFileSize is the default maximum upload size (50MB)
	DefaultMaxFileSize = 50 * 1024 * 1024

	// DefaultHost binds all interfaces
	DefaultHost = "0.0.0.0"

	// DefaultPort is the default server port
	DefaultPort = "8000"

	// ServerReadTimeout is the HTTP server read timeout
	ServerReadTimeout = 60 * time.Second

	// ServerWriteTimeout must outlast the compression tool timeout
	ServerWriteTimeout = 120 * time.Second

	// ServerIdleTimeout is the HTTP server idle timeout
	ServerIdleTimeout = 60 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout = 10 * time.Second
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	config := &api.Config{
		Host:           getEnv("HOST", DefaultHost),
		Port:           getEnv("PORT", DefaultPort),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", DefaultMaxFileSize),
		TempDir:        getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "pdf_uploads")),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		FrontendDir:    getEnv("FRONTEND_DIR", ""),
		DatabasePath:   getEnv("DATABASE_PATH", "./pdf_jobs.sqlite3"),
		GhostscriptBin: getEnv("GHOSTSCRIPT_BIN", "gs"),
		ToolTimeout:    getEnvDuration("TOOL_TIMEOUT", compress.DefaultTimeout),
		MinReduction:   getEnvFloat("MIN_REDUCTION_PERCENT", 0),
	}

	ws, err := workspace.New(config.TempDir, workspace.DefaultMaxAge, log)
	if err != nil {
		log.WithError(err).Fatal("workspace setup failed")
	}
	// Reap stale artifacts before accepting traffic; no in-flight requests
	// exist yet, so no coordination is needed.
	ws.CleanupOnce()

	runner := compress.NewGhostscript(config.GhostscriptBin, config.ToolTimeout)
	if err := runner.Available(); err != nil {
		// Non-fatal: each compress request re-checks and reports 500.
		log.WithError(err).Warn("compression tool not found at startup")
	}
	pipeline := compress.NewPipeline(runner, pdf.Optimize, config.MinReduction, log)

	var jobs api.JobStore
	if store, err := history.Open(config.DatabasePath); err != nil {
		log.WithError(err).Warn("job history disabled")
	} else {
		jobs = store
	}

	server := api.NewServer(config, ws, pdf.NewMerger(), pipeline, jobs, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(config.AllowedOrigins))

	api.SetupRoutes(r, server)
	setupFrontend(r, config.FrontendDir, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		Handler:      r,
		ReadTimeout:  ServerReadTimeout,
		WriteTimeout: ServerWriteTimeout,
		IdleTimeout:  ServerIdleTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"temp_dir": config.TempDir,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited gracefully")
}

// corsMiddleware permits cross-origin requests and exposes the attachment
// and size-metadata headers to browser scripts.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || allowedOrigins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.ExposeHeaders = []string{
		"Content-Disposition",
		api.HeaderOriginalSize,
		api.HeaderCompressedSize,
		api.HeaderReductionPercentage,
		api.HeaderQualitySetting,
	}
	return cors.New(cfg)
}

// setupFrontend serves the prebuilt SPA bundle when one is present, with a
// JSON fallback naming backend-only mode otherwise. API misses stay JSON.
func setupFrontend(r *gin.Engine, configured string, log *logrus.Logger) {
	dir := frontendDir(configured)
	if dir != "" {
		log.WithField("dir", dir).Info("serving frontend bundle")
		if info, err := os.Stat(filepath.Join(dir, "static")); err == nil && info.IsDir() {
			r.Static("/static", filepath.Join(dir, "static"))
		}
	} else {
		log.Warn("frontend bundle not found, running in backend-only mode")
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if dir != "" {
			c.File(filepath.Join(dir, "index.html"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Frontend build not found. Serving API endpoints only.",
			"status":  "backend-only mode",
		})
	})
}

// frontendDir picks the first conventional location holding an index.html.
func frontendDir(configured string) string {
	candidates := []string{configured, "./frontend_build", "./frontend/build", "./static"}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, "index.html")); err == nil && !info.IsDir() {
			return dir
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
