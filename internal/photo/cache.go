package photo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	ConfigDirName         = ".damagereview"
	metadataCacheFileName = "photo_metadata_cache.json"
	metadataCacheVersion  = 2
)

// Cache remembers extracted metadata for files on disk, keyed by path and
// mod time. A nil *Cache is valid and caches nothing.
type Cache struct {
	path string

	mu      sync.Mutex
	Version int                           `json:"version"`
	Entries map[string]metadataCacheEntry `json:"entries"`
}

type metadataCacheEntry struct {
	ModTime     int64     `json:"modTime"`
	Location    *Location `json:"location,omitempty"`
	Orientation *int      `json:"orientation,omitempty"`
	CapturedAt  time.Time `json:"capturedAt"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
}

func (m metadataCacheEntry) applyTo(rec *Record) {
	rec.Location = m.Location
	rec.Orientation = m.Orientation
	if !m.CapturedAt.IsZero() {
		rec.CapturedAt = m.CapturedAt
	}
	rec.Width = m.Width
	rec.Height = m.Height
}

// DefaultCachePath returns ~/.damagereview/photo_metadata_cache.json.
func DefaultCachePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName, metadataCacheFileName), nil
}

// LoadCache reads the cache at path. A missing file or one written by an
// older version yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newCache(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata cache: %w", err)
	}

	cache := newCache(path)
	if err := json.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("unmarshal metadata cache: %w", err)
	}

	if cache.Version != metadataCacheVersion || cache.Entries == nil {
		return newCache(path), nil
	}

	return cache, nil
}

// Save writes the cache atomically.
func (c *Cache) Save() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata cache: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata cache: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("replace metadata cache: %w", err)
	}

	return nil
}

func newCache(path string) *Cache {
	return &Cache{
		path:    path,
		Version: metadataCacheVersion,
		Entries: make(map[string]metadataCacheEntry),
	}
}

func (c *Cache) get(path string, modTime time.Time) (metadataCacheEntry, bool) {
	if c == nil {
		return metadataCacheEntry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.Entries[path]
	if !ok || entry.ModTime != modTime.UnixNano() {
		return metadataCacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) set(path string, modTime time.Time, rec Record) {
	if c == nil {
		return
	}
	entry := metadataCacheEntry{
		ModTime:     modTime.UnixNano(),
		Location:    rec.Location,
		Orientation: rec.Orientation,
		Width:       rec.Width,
		Height:      rec.Height,
	}
	if !rec.CapturedAt.Equal(modTime) {
		entry.CapturedAt = rec.CapturedAt
	}
	c.mu.Lock()
	c.Entries[path] = entry
	c.mu.Unlock()
}

// Prune drops entries for paths not in validPaths and reports whether
// anything was removed.
func (c *Cache) Prune(validPaths map[string]struct{}) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	for path := range c.Entries {
		if _, ok := validPaths[path]; !ok {
			delete(c.Entries, path)
			changed = true
		}
	}
	return changed
}
