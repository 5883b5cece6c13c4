package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DefaultLimit applies when a listing request does not specify one.
const DefaultLimit = 20

// Job records one completed merge or compression.
type Job struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Operation        string    `json:"operation"`
	InputFiles       int       `json:"input_files"`
	OriginalSize     int64     `json:"original_size"`
	OutputSize       int64     `json:"output_size"`
	ReductionPercent float64   `json:"reduction_percent"`
	Preset           string    `json:"preset"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists job records in a local sqlite database.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores a finished job. An empty ID is filled in.
func (s *Store) Record(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	return s.db.Create(job).Error
}

// Recent returns the most recently recorded jobs, newest first.
func (s *Store) Recent(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var jobs []Job
	err := s.db.Order("created_at desc").Limit(limit).Find(&jobs).Error
	return jobs, err
}
