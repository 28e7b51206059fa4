package fsstore

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// IndexEntry is a minimal summary of an entity, kept in a directory's
// index.json so the UI can list siblings without reading every file.
type IndexEntry struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	UpdatedAt time.Time `json:"updated_at"`
}

// indexPath returns the index.json path for a directory.
func indexPath(dir string) string {
	return filepath.Join(dir, "index.json")
}

// ReadIndex loads a directory's index.json, returning an empty slice (not
// an error) if the index doesn't exist yet.
func ReadIndex(dir string) ([]IndexEntry, error) {
	var entries []IndexEntry
	err := ReadJSON(indexPath(dir), &entries)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []IndexEntry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

// WriteIndex atomically rewrites a directory's index.json.
func WriteIndex(dir string, entries []IndexEntry) error {
	return WriteJSON(indexPath(dir), entries)
}

// UpsertIndexEntry inserts or updates a single entry, then rewrites the
// index atomically. Callers should invoke this immediately after writing
// the entity file it summarizes, so the index write happens "after the
// entity write" as required by spec.
func UpsertIndexEntry(dir string, entry IndexEntry) error {
	entries, err := ReadIndex(dir)
	if err != nil {
		return err
	}

	found := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return WriteIndex(dir, entries)
}

// RemoveIndexEntry deletes an entry by ID and rewrites the index atomically.
func RemoveIndexEntry(dir, id string) error {
	entries, err := ReadIndex(dir)
	if err != nil {
		return err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return WriteIndex(dir, out)
}

// RebuildIndex scans every *.json file in dir (other than index.json
// itself) and rewrites the index from scratch using summarize to derive
// each entry. Used on demand and on index-corruption detection.
func RebuildIndex(dir string, summarize func(path string) (IndexEntry, bool)) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var entries []IndexEntry
	for _, f := range files {
		if f.IsDir() || f.Name() == "index.json" || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, ok := summarize(filepath.Join(dir, f.Name()))
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return WriteIndex(dir, entries)
}
