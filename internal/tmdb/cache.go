package tmdb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CacheEntry is one cached API response set for a movie.
type CacheEntry struct {
	TMDBID      int64            `json:"tmdb_id"`
	Credits     *CreditsResponse `json:"raw"`
	ExternalIDs map[string]any   `json:"external_ids,omitempty"`
}

// Cache is an append-only JSONL cache of enrichment responses plus a
// side ledger of ids TMDb reported absent. Both files are replayed on
// open so an interrupted enrichment run resumes without re-fetching.
type Cache struct {
	entries map[int64]*CacheEntry
	dead    map[int64]bool

	file     *os.File
	deadFile *os.File
}

// OpenCache opens (creating if needed) the cache at path and its dead-id
// ledger at path with the extension replaced by ".dead".
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}
	deadPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".dead"

	c := &Cache{
		entries: make(map[int64]*CacheEntry),
		dead:    make(map[int64]bool),
	}
	if err := c.replayEntries(path); err != nil {
		return nil, err
	}
	if err := c.replayDead(deadPath); err != nil {
		return nil, err
	}

	var err error
	if c.file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}
	if c.deadFile, err = os.OpenFile(deadPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err != nil {
		c.file.Close()
		return nil, fmt.Errorf("failed to open dead ledger %s: %w", deadPath, err)
	}
	return c, nil
}

func (c *Cache) replayEntries(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var entry CacheEntry
		// Torn trailing lines from an interrupted run are expected;
		// skip anything that does not parse.
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil || entry.TMDBID == 0 {
			continue
		}
		c.entries[entry.TMDBID] = &entry
	}
	return scanner.Err()
}

func (c *Cache) replayDead(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dead ledger %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			continue
		}
		c.dead[id] = true
	}
	return nil
}

// Get returns the cached entry for an id.
func (c *Cache) Get(tmdbID int64) (*CacheEntry, bool) {
	entry, ok := c.entries[tmdbID]
	return entry, ok
}

// Put stores an entry and appends it to the cache file.
func (c *Cache) Put(entry *CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if _, err := c.file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to append cache entry: %w", err)
	}
	c.entries[entry.TMDBID] = entry
	return nil
}

// IsDead reports whether an id is known absent from TMDb.
func (c *Cache) IsDead(tmdbID int64) bool {
	return c.dead[tmdbID]
}

// MarkDead records an id TMDb reported absent.
func (c *Cache) MarkDead(tmdbID int64) error {
	if c.dead[tmdbID] {
		return nil
	}
	if _, err := fmt.Fprintf(c.deadFile, "%d\n", tmdbID); err != nil {
		return fmt.Errorf("failed to append dead id: %w", err)
	}
	c.dead[tmdbID] = true
	return nil
}

// Close releases both file handles.
func (c *Cache) Close() error {
	err := c.file.Close()
	if deadErr := c.deadFile.Close(); err == nil {
		err = deadErr
	}
	return err
}
