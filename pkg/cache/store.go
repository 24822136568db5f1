package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrMiss indicates the requested record is absent, expired, or unreadable.
	ErrMiss = errors.New("cache miss")
)

// Namespace identifies one of the three logical cache areas. The value is
// the on-disk directory name under the base directory.
type Namespace string

const (
	// NamespaceDetail holds normalized scholar detail records as JSON.
	NamespaceDetail Namespace = "aminer"

	// NamespaceAvatar holds avatar image bytes and default-avatar markers.
	NamespaceAvatar Namespace = "avatars"

	// NamespaceEmail holds white-background email images and no-email markers.
	NamespaceEmail Namespace = "emails"
)

// Namespaces lists all cache namespaces.
var Namespaces = []Namespace{NamespaceDetail, NamespaceAvatar, NamespaceEmail}

// markerExts maps each namespace to its negative-marker suffix. The suffixes
// are distinct from every positive record extension so markers and records
// never share a path.
var markerExts = map[Namespace]string{
	NamespaceDetail: ".missing",
	NamespaceAvatar: ".default",
	NamespaceEmail:  ".no_email",
}

// Store is a durable key-to-file cache with mtime-based TTL validity.
type Store struct {
	baseDir string
}

// New creates a Store rooted at baseDir and ensures all namespace
// directories exist.
func New(baseDir string) (*Store, error) {
	for _, ns := range Namespaces {
		if err := os.MkdirAll(filepath.Join(baseDir, string(ns)), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", ns, err)
		}
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the directory backing a namespace.
func (s *Store) Dir(ns Namespace) string {
	return filepath.Join(s.baseDir, string(ns))
}

// PathFor returns the deterministic location of a positive record.
func (s *Store) PathFor(ns Namespace, key, ext string) string {
	return filepath.Join(s.Dir(ns), cleanKey(key)+ext)
}

// MarkerPath returns the location of the namespace's negative marker for key.
func (s *Store) MarkerPath(ns Namespace, key string) string {
	return filepath.Join(s.Dir(ns), cleanKey(key)+markerExts[ns])
}

// cleanKey strips path separators so a key can never escape its namespace
// directory.
func cleanKey(key string) string {
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "\\", "_")
	key = strings.ReplaceAll(key, "..", "_")
	return key
}

// IsValid reports whether the record at path exists and its age is within
// ttl.
func (s *Store) IsValid(path string, ttl time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < ttl
}

// ReadJSON reads a positive JSON record into v. A missing or unparseable
// file is reported as ErrMiss so the caller re-fetches instead of failing.
func (s *Store) ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		cacheMisses.WithLabelValues(namespaceOf(s, path)).Inc()
		return ErrMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		cacheErrors.WithLabelValues("read").Inc()
		return ErrMiss
	}
	return nil
}

// ReadBytes reads a positive binary record.
func (s *Store) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		cacheMisses.WithLabelValues(namespaceOf(s, path)).Inc()
		return nil, ErrMiss
	}
	return data, nil
}

// WriteJSON stores a positive JSON record atomically.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("marshal cache record: %w", err)
	}
	return s.WriteBytes(path, data)
}

// WriteBytes stores a positive binary record atomically via
// write-then-rename, so concurrent readers never see a partial file.
func (s *Store) WriteBytes(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}

// WriteMarker writes (or refreshes) the negative marker for key. Writing an
// existing marker resets its modification time, restarting the negative TTL.
func (s *Store) WriteMarker(ns Namespace, key string) error {
	if err := os.WriteFile(s.MarkerPath(ns, key), nil, 0o644); err != nil {
		cacheErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("write negative marker: %w", err)
	}
	return nil
}

// ClearMarker removes the negative marker for key. Removing an absent
// marker is not an error.
func (s *Store) ClearMarker(ns Namespace, key string) error {
	if err := os.Remove(s.MarkerPath(ns, key)); err != nil && !os.IsNotExist(err) {
		cacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("clear negative marker: %w", err)
	}
	return nil
}

// Remove deletes the record at path, ignoring absence.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		cacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// ClearNamespace deletes every file under a namespace and returns the number
// of files removed.
func (s *Store) ClearNamespace(ns Namespace) (int, error) {
	entries, err := os.ReadDir(s.Dir(ns))
	if err != nil {
		cacheErrors.WithLabelValues("clear").Inc()
		return 0, fmt.Errorf("read cache dir %s: %w", ns, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir(ns), entry.Name())); err != nil {
			cacheErrors.WithLabelValues("clear").Inc()
			return count, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		count++
	}
	return count, nil
}

// namespaceOf best-effort maps a record path back to its namespace label for
// metrics.
func namespaceOf(s *Store, path string) string {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil {
		return "unknown"
	}
	parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[0]
}
