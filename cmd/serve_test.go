package cmd

import (
	"os"
	"strings"
	"testing"
)

func TestRunServeNotInProject(t *testing.T) {
	tmpDir := t.TempDir()

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	err := runServe(serveCmd, []string{})
	if err == nil {
		t.Fatal("Should error when not in ralph project")
	}
	if !strings.Contains(err.Error(), "not in a ralph project") {
		t.Errorf("Error should mention not in ralph project, got: %v", err)
	}
}
