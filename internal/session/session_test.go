package session

import "testing"

func TestAddTaskAndFindTask(t *testing.T) {
	s := New("test", "/tmp/project")
	task := s.AddTask("Build the widget")

	if task.Status != TaskPending {
		t.Errorf("expected new task to be Pending, got %s", task.Status)
	}

	found := s.FindTask(task.ID)
	if found == nil || found.Title != "Build the widget" {
		t.Errorf("FindTask did not return the added task: %+v", found)
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	tmpDir := t.TempDir()

	s := New("my-session", tmpDir)
	s.AddTask("first task")

	if err := s.Save(tmpDir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(tmpDir, s.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != "my-session" || len(loaded.Tasks) != 1 {
		t.Errorf("unexpected loaded session: %+v", loaded)
	}
}

func TestActivateExclusivelyPausesOthers(t *testing.T) {
	tmpDir := t.TempDir()

	a := New("a", tmpDir)
	a.Status = StatusActive
	if err := a.Save(tmpDir); err != nil {
		t.Fatal(err)
	}

	b := New("b", tmpDir)
	if err := ActivateExclusively(tmpDir, b); err != nil {
		t.Fatalf("ActivateExclusively: %v", err)
	}

	reloadedA, err := Load(tmpDir, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloadedA.Status != StatusPaused {
		t.Errorf("expected session a to be Paused after activating b, got %s", reloadedA.Status)
	}
	if b.Status != StatusActive {
		t.Errorf("expected session b to be Active, got %s", b.Status)
	}
}

func TestDeleteSessionRemovesIndexEntry(t *testing.T) {
	tmpDir := t.TempDir()
	s := New("to-delete", tmpDir)
	if err := s.Save(tmpDir); err != nil {
		t.Fatal(err)
	}

	if err := Delete(tmpDir, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err := List(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.ID == s.ID {
			t.Errorf("expected session %s to be removed from the index", s.ID)
		}
	}
}
