package session

import "testing"

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskPending, TaskInProgress, true},
		{TaskPending, TaskFailed, true},
		{TaskPending, TaskCompleted, false},
		{TaskInProgress, TaskCompleted, true},
		{TaskInProgress, TaskFailed, true},
		{TaskInProgress, TaskPending, true},
		{TaskCompleted, TaskPending, true},
		{TaskCompleted, TaskInProgress, true},
		{TaskCompleted, TaskFailed, false},
		{TaskFailed, TaskPending, true},
		{TaskFailed, TaskInProgress, true},
		{TaskFailed, TaskCompleted, false},
		{TaskPending, TaskPending, true},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTaskTransitionRejectsIllegalMove(t *testing.T) {
	task := Task{ID: "t1", Status: TaskCompleted}
	if err := task.Transition(TaskFailed); err == nil {
		t.Error("expected Completed -> Failed to be rejected")
	}
	if task.Status != TaskCompleted {
		t.Error("status must not change on a rejected transition")
	}
}

func TestTaskTransitionAllowsLegalMove(t *testing.T) {
	task := Task{ID: "t1", Status: TaskPending}
	if err := task.Transition(TaskInProgress); err != nil {
		t.Fatalf("expected legal transition to succeed: %v", err)
	}
	if task.Status != TaskInProgress {
		t.Errorf("expected status InProgress, got %s", task.Status)
	}
}

func TestIsTerminal(t *testing.T) {
	if !TaskCompleted.IsTerminal() || !TaskFailed.IsTerminal() {
		t.Error("Completed and Failed must be terminal")
	}
	if TaskPending.IsTerminal() || TaskInProgress.IsTerminal() {
		t.Error("Pending and InProgress must not be terminal")
	}
}
