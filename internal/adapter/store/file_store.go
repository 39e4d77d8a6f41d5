package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"go.uber.org/zap"
)

var ErrEntryNotFound = errors.New("schedule entry not found")

// FileScheduleStore keeps the schedule as one JSON object in a file.
// Every write replaces the file atomically (temp file, fsync, rename).
type FileScheduleStore struct {
	Path   string
	Logger *zap.Logger
	mu     sync.Mutex
	// called after every successful write
	onChange func()
}

func NewFileScheduleStore(path string, logger *zap.Logger) *FileScheduleStore {
	return &FileScheduleStore{
		Path:   path,
		Logger: logger,
	}
}

// OnChange registers a callback run after each successful write.
func (s *FileScheduleStore) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load returns a fresh snapshot. A missing file is an empty schedule.
func (s *FileScheduleStore) Load() (map[string]domain.ScheduleValue, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]domain.ScheduleValue{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]domain.ScheduleValue{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid schedule file %s: %w", s.Path, err)
	}
	return entries, nil
}

// Entries returns the stored entries sorted by key.
func (s *FileScheduleStore) Entries() ([]domain.ScheduleEntry, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	return SortedEntries(entries), nil
}

func (s *FileScheduleStore) Upsert(key string, value domain.ScheduleValue, originalKey string) error {
	if err := domain.ValidateScheduleKey(key); err != nil {
		return err
	}
	if originalKey != "" && originalKey != key {
		if err := domain.ValidateScheduleKey(originalKey); err != nil {
			return err
		}
	}
	return s.update(func(entries map[string]domain.ScheduleValue) error {
		if originalKey != "" && originalKey != key {
			delete(entries, originalKey)
		}
		entries[key] = value
		return nil
	})
}

func (s *FileScheduleStore) Delete(key string) error {
	if err := domain.ValidateScheduleKey(key); err != nil {
		return err
	}
	return s.update(func(entries map[string]domain.ScheduleValue) error {
		if _, ok := entries[key]; !ok {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, key)
		}
		delete(entries, key)
		return nil
	})
}

func (s *FileScheduleStore) update(fn func(map[string]domain.ScheduleValue) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(entries); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.Path, data); err != nil {
		if s.Logger != nil {
			s.Logger.Error("failed to write schedule file", zap.String("path", s.Path), zap.Error(err))
		}
		return err
	}
	if s.onChange != nil {
		s.onChange()
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// some filesystems do not support fsync on directories
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}

func SortedEntries(entries map[string]domain.ScheduleValue) []domain.ScheduleEntry {
	result := make([]domain.ScheduleEntry, 0, len(entries))
	for k, v := range entries {
		result = append(result, domain.ScheduleEntry{Key: k, Value: v})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// ensure interface compliance
var _ port.ScheduleStore = (*FileScheduleStore)(nil)
