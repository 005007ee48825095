package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Entry describes a top-level item under the storage base directory.
type Entry struct {
	Name    string
	IsDir   bool
	ModTime time.Time
}

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the storage.
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory for %s: %w", filename, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return path, nil
}

// SaveStream copies from reader into the target file path.
func (s *LocalStorage) SaveStream(filename string, r io.Reader) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory for %s: %w", filename, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", filename, err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return path, nil
}

// ReadFile returns the content of a stored file.
func (s *LocalStorage) ReadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return data, nil
}

// Checksum returns the hex SHA-256 digest of a stored file.
func (s *LocalStorage) Checksum(filename string) (string, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filename, err)
	}
	defer file.Close() //nolint:errcheck
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", filename, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Exists reports whether the relative path exists.
func (s *LocalStorage) Exists(filename string) bool {
	_, err := os.Stat(s.resolve(filename))
	return err == nil
}

// Delete removes a stored file or directory tree if present.
func (s *LocalStorage) Delete(filename string) error {
	if err := os.RemoveAll(s.resolve(filename)); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

// Entries lists the top-level items, newest first.
func (s *LocalStorage) Entries() ([]Entry, error) {
	items, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.baseDir, err)
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		info, err := item.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", item.Name(), err)
		}
		entries = append(entries, Entry{Name: item.Name(), IsDir: item.IsDir(), ModTime: info.ModTime()})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name > entries[j].Name
		}
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// CleanupOlderThan removes top-level items older than the provided TTL and
// returns the deleted names.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	deleted := make([]string, 0)
	for _, entry := range entries {
		if entry.ModTime.After(cutoff) {
			continue
		}
		if err := s.Delete(entry.Name); err != nil {
			return deleted, fmt.Errorf("cleanup: %w", err)
		}
		deleted = append(deleted, entry.Name)
	}
	return deleted, nil
}

// Path exposes the resolved path of a relative name.
func (s *LocalStorage) Path(filename string) string {
	return s.resolve(filename)
}

func (s *LocalStorage) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}
