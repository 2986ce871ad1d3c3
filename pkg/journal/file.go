package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	DefaultFileName = ".agent-tools-journal.json"
)

// FileStore keeps the journal in a single JSON file. Every operation holds
// an exclusive lock on a sibling .lock file and rereads the journal, so
// processes sharing the file see each other's claims.
type FileStore struct {
	filePath string
	mu       sync.Mutex
	lock     *flock.Flock
	entries  map[string]Entry
}

// fileFormat represents the JSON structure on disk
type fileFormat struct {
	Entries map[string]Entry `json:"entries"`
}

// NewFileStore opens the journal file, creating it on first write
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	s := &FileStore{
		filePath: filePath,
		lock:     flock.New(filePath + ".lock"),
		entries:  make(map[string]Entry),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	return s, nil
}

// load replaces the in-memory entries with the file's. A missing file is an
// empty journal.
func (s *FileStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.entries = make(map[string]Entry)
		return nil
	}
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	if f.Entries == nil {
		f.Entries = make(map[string]Entry)
	}
	s.entries = f.Entries
	return nil
}

// locked runs fn with the file lock held and the entries freshly loaded
func (s *FileStore) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := s.load(); err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}
	return fn()
}

// saveLocked writes the journal atomically. Callers hold the lock.
func (s *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Entries: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// putLocked stores entry and restores the previous value if the write fails
func (s *FileStore) putLocked(entry Entry) error {
	prev, had := s.entries[entry.ReferenceID]
	s.entries[entry.ReferenceID] = entry
	if err := s.saveLocked(); err != nil {
		if had {
			s.entries[entry.ReferenceID] = prev
		} else {
			delete(s.entries, entry.ReferenceID)
		}
		return err
	}
	return nil
}

// Claim records a new in-flight entry
func (s *FileStore) Claim(_ context.Context, entry Entry) error {
	return s.locked(func() error {
		if existing, ok := s.entries[entry.ReferenceID]; ok && !canReclaim(existing) {
			return duplicateError(existing)
		}

		now := time.Now().UTC()
		entry.Status = StatusInFlight
		entry.CreatedAt = now
		entry.UpdatedAt = now
		return s.putLocked(entry)
	})
}

// Update replaces an existing entry
func (s *FileStore) Update(_ context.Context, entry Entry) error {
	return s.locked(func() error {
		existing, ok := s.entries[entry.ReferenceID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, entry.ReferenceID)
		}
		entry.CreatedAt = existing.CreatedAt
		entry.UpdatedAt = time.Now().UTC()
		return s.putLocked(entry)
	})
}

// Get retrieves an entry by reference id
func (s *FileStore) Get(_ context.Context, referenceID string) (*Entry, error) {
	var entry Entry
	err := s.locked(func() error {
		e, ok := s.entries[referenceID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, referenceID)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns all entries, newest first
func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.locked(func() error {
		entries = make([]Entry, 0, len(s.entries))
		for _, e := range s.entries {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// Path returns the journal file path
func (s *FileStore) Path() string {
	return s.filePath
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}
