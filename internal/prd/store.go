package prd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ralph-ui/ralph/internal/fsstore"
)

// StoreDir returns the directory PRDs are persisted under when addressed
// by the richer .ralph-ui/ store (as opposed to the legacy single
// .ralph/prd.json used by the task-only flow).
func StoreDir(projectRoot string) string {
	return filepath.Join(fsstore.RalphUIDir(projectRoot), "prds")
}

func storePath(projectRoot, name string) string {
	return filepath.Join(StoreDir(projectRoot), name+".json")
}

func progressPath(projectRoot, name string) string {
	return filepath.Join(StoreDir(projectRoot), name+"-progress.txt")
}

func promptPath(projectRoot, name string) string {
	return filepath.Join(StoreDir(projectRoot), name+"-prompt.md")
}

// SaveToStore persists a PRD under .ralph-ui/prds/<name>.json, refreshes
// its companion progress.txt, and updates the directory's index.json —
// in that order, per the File Store's "index after entity" rule.
func SaveToStore(projectRoot, name string, p *PRD) error {
	if err := p.ValidateDAG(); err != nil {
		return fmt.Errorf("prd: %w", err)
	}
	if err := fsstore.WriteJSON(storePath(projectRoot, name), p); err != nil {
		return err
	}
	if err := os.WriteFile(progressPath(projectRoot, name), []byte(p.Progress()+"\n"), 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", fsstore.ErrIo, progressPath(projectRoot, name), err)
	}
	return fsstore.UpsertIndexEntry(StoreDir(projectRoot), fsstore.IndexEntry{
		ID:        name,
		Label:     p.Name,
		UpdatedAt: time.Now().UTC(),
	})
}

// LoadFromStore reads a PRD back from .ralph-ui/prds/<name>.json.
func LoadFromStore(projectRoot, name string) (*PRD, error) {
	var p PRD
	if err := fsstore.ReadJSON(storePath(projectRoot, name), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListStore returns the index of PRDs registered under a project's store.
func ListStore(projectRoot string) ([]fsstore.IndexEntry, error) {
	return fsstore.ReadIndex(StoreDir(projectRoot))
}

// DeleteFromStore removes a PRD's files and its index entry.
func DeleteFromStore(projectRoot, name string) error {
	for _, path := range []string{storePath(projectRoot, name), progressPath(projectRoot, name), promptPath(projectRoot, name)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %s: %v", fsstore.ErrIo, path, err)
		}
	}
	return fsstore.RemoveIndexEntry(StoreDir(projectRoot), name)
}

// SavePromptToStore writes the companion <name>-prompt.md file alongside a
// stored PRD. The prompt's content is outside this package's scope (see
// the non-goal on prompt content); callers supply the full text.
func SavePromptToStore(projectRoot, name, prompt string) error {
	return os.WriteFile(promptPath(projectRoot, name), []byte(prompt), 0644)
}
