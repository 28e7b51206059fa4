package session

import "fmt"

// TaskStatus is a Task's position in the legacy state machine.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "InProgress"
	TaskCompleted  TaskStatus = "Completed"
	TaskFailed     TaskStatus = "Failed"
)

// Task is the legacy unit of work inside a Session, analogous to a Story.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
}

// allowedTransitions is the table from spec.md §4.7: any (from, to) pair
// not listed here is rejected. A state transitioning to itself is always
// a no-op allowed by every state.
var allowedTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending:    {TaskInProgress: true, TaskFailed: true},
	TaskInProgress: {TaskCompleted: true, TaskFailed: true, TaskPending: true},
	TaskCompleted:  {TaskPending: true, TaskInProgress: true},
	TaskFailed:     {TaskPending: true, TaskInProgress: true},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// Transition moves the task to `to`, rejecting the change if it isn't in
// the allowed-transition table.
func (t *Task) Transition(to TaskStatus) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.Status, to)
	}
	t.Status = to
	return nil
}

// IsTerminal reports whether a task status is one of the terminal states
// (Completed, Failed).
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}
