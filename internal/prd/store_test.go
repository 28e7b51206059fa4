package prd

import (
	"os"
	"testing"
)

func TestSaveAndLoadFromStore(t *testing.T) {
	tmpDir := t.TempDir()

	p := &PRD{
		Name: "Checkout flow",
		UserStories: []Story{
			{ID: "US-1", Title: "Add cart", Passes: true},
			{ID: "US-2", Title: "Add payment", Dependencies: []string{"US-1"}},
		},
	}

	if err := SaveToStore(tmpDir, "checkout", p); err != nil {
		t.Fatalf("SaveToStore: %v", err)
	}

	loaded, err := LoadFromStore(tmpDir, "checkout")
	if err != nil {
		t.Fatalf("LoadFromStore: %v", err)
	}
	if loaded.Name != p.Name || len(loaded.UserStories) != 2 {
		t.Errorf("unexpected loaded PRD: %+v", loaded)
	}

	if _, err := os.Stat(progressPath(tmpDir, "checkout")); err != nil {
		t.Errorf("expected progress file to exist: %v", err)
	}

	entries, err := ListStore(tmpDir)
	if err != nil {
		t.Fatalf("ListStore: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "checkout" {
		t.Errorf("expected one index entry for checkout, got %+v", entries)
	}
}

func TestSaveToStoreRejectsCycle(t *testing.T) {
	tmpDir := t.TempDir()
	p := &PRD{
		Name: "Bad PRD",
		UserStories: []Story{
			{ID: "a", Dependencies: []string{"b"}},
			{ID: "b", Dependencies: []string{"a"}},
		},
	}
	if err := SaveToStore(tmpDir, "bad", p); err == nil {
		t.Error("expected cyclic dependency graph to be rejected")
	}
}

func TestDeleteFromStore(t *testing.T) {
	tmpDir := t.TempDir()
	p := &PRD{Name: "Temp", UserStories: []Story{{ID: "a"}}}
	if err := SaveToStore(tmpDir, "temp", p); err != nil {
		t.Fatal(err)
	}
	if err := DeleteFromStore(tmpDir, "temp"); err != nil {
		t.Fatalf("DeleteFromStore: %v", err)
	}
	if _, err := LoadFromStore(tmpDir, "temp"); err == nil {
		t.Error("expected load to fail after delete")
	}
	entries, _ := ListStore(tmpDir)
	if len(entries) != 0 {
		t.Errorf("expected empty index after delete, got %+v", entries)
	}
}
