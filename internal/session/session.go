// Package session implements the legacy task-based flow: a Session holds
// an ordered list of Tasks worked by runtime Agents, independent of any
// PRD. It predates the PRD/Orchestrator path (internal/prd,
// internal/orchestrator) and is kept alongside it; cmd/run.go records both
// a legacy loop and a PRD orchestrator run as a Session with one Task.
// internal/orchestrator itself always runs from a stored PRD.
package session

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ralph-ui/ralph/internal/fsstore"
)

// Status is a Session's lifecycle state.
type Status string

const (
	StatusActive    Status = "Active"
	StatusPaused    Status = "Paused"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Session is the legacy, task-based unit of work.
type Session struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ProjectPath string            `json:"project_path"`
	Status      Status            `json:"status"`
	Config      map[string]string `json:"config,omitempty"`
	Tasks       []Task            `json:"tasks"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// New creates a new, Paused session. Activating it is the caller's job via
// ActivateExclusively, which also pauses any other Active session in the
// same project.
func New(name, projectPath string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		Name:        name,
		ProjectPath: projectPath,
		Status:      StatusPaused,
		Config:      map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddTask appends a new Pending task and returns it.
func (s *Session) AddTask(title string) *Task {
	t := Task{ID: uuid.NewString(), Title: title, Status: TaskPending}
	s.Tasks = append(s.Tasks, t)
	s.UpdatedAt = time.Now().UTC()
	return &s.Tasks[len(s.Tasks)-1]
}

// FindTask returns a pointer to the task with the given ID, or nil.
func (s *Session) FindTask(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

func sessionPath(projectRoot, id string) string {
	return sessionsDir(projectRoot) + "/" + id + ".json"
}

func sessionsDir(projectRoot string) string {
	return fsstore.RalphUIDir(projectRoot) + "/sessions"
}

// LockPath returns the advisory lock file a session's owning process
// holds while it is Active.
func LockPath(projectRoot, id string) string {
	return sessionPath(projectRoot, id) + ".lock"
}

// AcquireLock claims the session's advisory lock for this process,
// refusing if a live peer already holds it.
func (s *Session) AcquireLock(projectRoot, version string) (bool, error) {
	return fsstore.AcquireLock(LockPath(projectRoot, s.ID), s.ID, version)
}

// ReleaseLock releases the session's advisory lock, if this process owns
// it.
func (s *Session) ReleaseLock(projectRoot string) error {
	return fsstore.ReleaseLock(LockPath(projectRoot, s.ID))
}

// Save persists the session and updates the sessions/ index.
func (s *Session) Save(projectRoot string) error {
	s.UpdatedAt = time.Now().UTC()
	if err := fsstore.WriteJSON(sessionPath(projectRoot, s.ID), s); err != nil {
		return err
	}
	return fsstore.UpsertIndexEntry(sessionsDir(projectRoot), fsstore.IndexEntry{
		ID:        s.ID,
		Label:     s.Name,
		UpdatedAt: s.UpdatedAt,
	})
}

// Load reads a session by ID.
func Load(projectRoot, id string) (*Session, error) {
	var s Session
	if err := fsstore.ReadJSON(sessionPath(projectRoot, id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a session's file and index entry.
func Delete(projectRoot, id string) error {
	path := sessionPath(projectRoot, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", fsstore.ErrIo, path, err)
	}
	return fsstore.RemoveIndexEntry(sessionsDir(projectRoot), id)
}

// List returns every session registered for a project, in index order.
func List(projectRoot string) ([]fsstore.IndexEntry, error) {
	return fsstore.ReadIndex(sessionsDir(projectRoot))
}

// ActivateExclusively marks target Active and Pauses every other
// non-terminal session in the same project, enforcing the "at most one
// Active session per project" invariant.
func ActivateExclusively(projectRoot string, target *Session) error {
	entries, err := List(projectRoot)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == target.ID {
			continue
		}
		other, err := Load(projectRoot, e.ID)
		if err != nil {
			continue
		}
		if other.Status == StatusActive {
			other.Status = StatusPaused
			if err := other.Save(projectRoot); err != nil {
				return fmt.Errorf("pausing session %s: %w", other.ID, err)
			}
		}
	}
	target.Status = StatusActive
	return target.Save(projectRoot)
}
