// Package fsstore is the file-backed persistence layer: atomic JSON reads
// and writes, per-directory index files, and advisory lock+heartbeat
// primitives, all built on plain encoding/json and os — no database.
//
// It generalizes the read/write pairs the teacher hand-rolled separately in
// internal/config (LoadLoops/SaveLoops) and internal/prd (Load/Save) into a
// single pair of functions every entity type uses, and adds the atomic
// temp-file-then-rename step neither of those originals had.
package fsstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON serializes v as pretty JSON and writes it to path atomically:
// write to "<path>.tmp" then rename over "<path>". Parent directories are
// created as needed. A failed write never leaves a half-written target.
func WriteJSON(path string, v any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIo, path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSerialize, path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIo, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", ErrIo, path, err)
	}
	return nil
}

// ReadJSON reads and unmarshals the JSON file at path into v. It returns
// ErrNotFound if the file is absent and ErrCorrupt if it fails to parse —
// it never returns a partially-populated v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrIo, path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return nil
}

// Exists reports whether the given path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dir (and parents) if it doesn't already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// ProjectSubdirs are the directories created under a project's .ralph-ui/.
var ProjectSubdirs = []string{
	"sessions", "prds", "chat", "agents", "executions", "attachments",
	"context", "research",
}

const gitignoreContents = "*.lock\n*.tmp\nagents/\nexecutions/\n"

// InitProjectDir creates the .ralph-ui/ directory tree under projectRoot and
// writes its .gitignore, excluding lock/tmp files and the runtime-only
// agents/ and executions/ directories from version control.
func InitProjectDir(projectRoot string) error {
	root := RalphUIDir(projectRoot)
	for _, sub := range ProjectSubdirs {
		if err := EnsureDir(filepath.Join(root, sub)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIo, sub, err)
		}
	}

	gitignore := filepath.Join(root, ".gitignore")
	if !Exists(gitignore) {
		if err := os.WriteFile(gitignore, []byte(gitignoreContents), 0644); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIo, gitignore, err)
		}
	}
	return nil
}

// RalphUIDir returns the path to a project's .ralph-ui directory.
func RalphUIDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".ralph-ui")
}

// Remove deletes the file at path, treating an already-missing file as
// success.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrIo, path, err)
	}
	return nil
}

// ListByExt returns the base names (without directory) of every file in
// dir whose name ends in ext. A missing dir yields an empty slice, not an
// error.
func ListByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrIo, dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ext {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
