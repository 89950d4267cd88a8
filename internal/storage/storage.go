package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/clipfeed/internal/models"
)

const batchSize = 64 // Number of clip records per disk write

const ledgerFile = "clips.json"

// Storage defines the interface for recording sampled clips
type Storage interface {
	// AddClip records a single sampled clip
	AddClip(ctx context.Context, record models.ClipRecord) error

	// Flush ensures all pending records are saved
	Flush() error
}

// Discard drops every record
type Discard struct{}

func (Discard) AddClip(context.Context, models.ClipRecord) error { return nil }
func (Discard) Flush() error                                     { return nil }

// JSONStorage appends clip records to a JSON array on disk in batches
type JSONStorage struct {
	records []models.ClipRecord
	mu      sync.Mutex
	dir     string
	run     string
}

// NewJSONStorage writes to <dir>/<run>/clips.json
func NewJSONStorage(dir, run string) *JSONStorage {
	return &JSONStorage{
		records: []models.ClipRecord{},
		dir:     dir,
		run:     run,
	}
}

// Path returns the ledger file location
func (s *JSONStorage) Path() string {
	return filepath.Join(s.dir, s.run, ledgerFile)
}

// AddClip adds a record to the batch and flushes if the batch is full
func (s *JSONStorage) AddClip(_ context.Context, record models.ClipRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)

	if len(s.records) >= batchSize {
		if err := s.flush(); err != nil {
			return fmt.Errorf("failed to flush clip records: %w", err)
		}
	}
	return nil
}

// Flush writes all pending records to disk
func (s *JSONStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *JSONStorage) flush() error {
	if len(s.records) == 0 {
		return nil
	}

	existing, err := ReadJSON(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	all := append(existing, s.records...)

	if err := os.MkdirAll(filepath.Dir(s.Path()), 0755); err != nil {
		return fmt.Errorf("failed to create directory for clip records: %w", err)
	}

	// replace the ledger atomically
	tmp := s.Path() + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(file).Encode(all); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return err
	}

	s.records = nil
	return nil
}

// ReadJSON loads every record of a ledger file
func ReadJSON(path string) ([]models.ClipRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []models.ClipRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing clip records: %w", err)
	}
	return records, nil
}
