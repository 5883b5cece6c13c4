package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAge is how long request artifacts survive before the reaper
// removes them.
const DefaultMaxAge = time.Hour

// Workspace owns the scratch directory holding per-request artifacts.
// Filenames are made unique per request, so concurrent requests never
// touch each other's files and no locking is needed.
type Workspace struct {
	Dir    string
	MaxAge time.Duration

	log *logrus.Logger
}

// New ensures the scratch directory exists and returns a Workspace over it.
func New(dir string, maxAge time.Duration, log *logrus.Logger) (*Workspace, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace dir %s: %w", dir, err)
	}
	return &Workspace{Dir: dir, MaxAge: maxAge, log: log}, nil
}

// CleanupOnce scans the directory non-recursively and removes regular files
// strictly older than MaxAge. Cleanup is best-effort: individual removal
// errors are logged and skipped.
func (w *Workspace) CleanupOnce() {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		w.log.WithError(err).Warn("workspace scan failed")
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= w.MaxAge {
			continue
		}
		path := filepath.Join(w.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			w.log.WithError(err).WithField("file", path).Warn("workspace cleanup: remove failed")
		}
	}
}

// NewFilePath returns a unique .pdf path inside the workspace. Uniqueness
// comes from a nanosecond timestamp plus a random suffix, covering two
// requests that land within the same timestamp granularity.
func (w *Workspace) NewFilePath(prefix string) string {
	name := fmt.Sprintf("%s_%d_%s.pdf", prefix, time.Now().UnixNano(), uuid.NewString())
	return filepath.Join(w.Dir, name)
}
