// Package runlog records run history as JSON Lines.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BundleEntry is the outcome of one bundle within a run.
type BundleEntry struct {
	Name       string `json:"name"`
	Unattached int    `json:"unattached"`
	Sequences  int    `json:"sequences"`
	Original   int64  `json:"original_size"`
	Cleaned    *int64 `json:"cleaned_size,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Record is one run.
type Record struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`
	Rules      []string      `json:"rules"`
	Bundles    []BundleEntry `json:"bundles"`
}

// NewRecord starts a record with a fresh ID.
func NewRecord(rules []string, started time.Time) *Record {
	return &Record{
		ID:        uuid.New().String(),
		StartedAt: started,
		Rules:     rules,
	}
}

// Failed returns the number of bundles that recorded an error.
func (r *Record) Failed() int {
	n := 0
	for _, b := range r.Bundles {
		if b.Error != "" {
			n++
		}
	}
	return n
}

// Store appends and reads run records in a single JSONL file.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a store backed by path. The file is created on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes a record as one JSON line.
func (s *Store) Append(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Recent returns up to limit records, most recent first. A limit <= 0 returns all.
// A missing file yields no records.
func (s *Store) Recent(limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the record with the given ID or ID prefix.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id || (len(id) >= 4 && strings.HasPrefix(r.ID, id)) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("run not found: %s", id)
}

func (s *Store) readAll() ([]*Record, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return []*Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records := []*Record{}
	scanner := bufio.NewScanner(f)

	// Increase buffer size for runs over many bundles
	const maxScannerBuffer = 1024 * 1024 // 1MB
	buf := make([]byte, maxScannerBuffer)
	scanner.Buffer(buf, maxScannerBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // Skip malformed lines
		}
		records = append(records, &rec)
	}

	return records, scanner.Err()
}
