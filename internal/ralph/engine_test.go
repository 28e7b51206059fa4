package ralph

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/ralph-ui/ralph/internal/agent"
)

// fakePlugin is an in-test agent.Plugin that runs a shell script instead
// of a real CLI, so the Engine's iteration loop can be exercised without
// any agent binary on PATH.
type fakePlugin struct {
	script string
}

func (f fakePlugin) AgentType() agent.Kind { return agent.KindClaude }
func (f fakePlugin) IsAvailable() bool     { return true }
func (f fakePlugin) DiscoverModels(ctx context.Context) ([]agent.ModelInfo, error) {
	return nil, nil
}
func (f fakePlugin) BuildCommand(ctx context.Context, spec agent.Spec) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", f.script)
	cmd.Dir = spec.WorktreePath
	return cmd, nil
}
func (f fakePlugin) ParseOutput(line string) agent.DisplayEvent {
	return agent.DisplayEvent{Type: agent.EventRaw, Text: line}
}

func TestEngineRunSucceedsOnPromiseToken(t *testing.T) {
	dir := t.TempDir()
	plugin := fakePlugin{script: "echo working; echo ALL_DONE_TOKEN"}

	e, err := New(dir, dir, "main", "story-1", plugin, "ALL_DONE_TOKEN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MaxIterations = 3

	exec, err := e.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusSucceeded {
		t.Fatalf("Status = %v, want Succeeded", exec.Status)
	}
	if len(exec.Iterations) != 1 {
		t.Fatalf("len(Iterations) = %d, want 1", len(exec.Iterations))
	}
	if exec.Iterations[0].Outcome != IterationCompleted {
		t.Errorf("Outcome = %v, want Completed", exec.Iterations[0].Outcome)
	}

	loaded, err := LoadExecution(dir, exec.ID)
	if err != nil {
		t.Fatalf("LoadExecution: %v", err)
	}
	if loaded.Status != StatusSucceeded {
		t.Errorf("persisted Status = %v, want Succeeded", loaded.Status)
	}
}

func TestEngineRunExhaustsIterationCap(t *testing.T) {
	dir := t.TempDir()
	plugin := fakePlugin{script: "echo still working"}

	e, err := New(dir, dir, "main", "story-2", plugin, "NEVER_APPEARS_TOKEN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MaxIterations = 2

	exec, err := e.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusFailed {
		t.Fatalf("Status = %v, want Failed", exec.Status)
	}
	last := exec.Iterations[len(exec.Iterations)-1]
	if last.Outcome != IterationIterationCapped {
		t.Errorf("final Outcome = %v, want IterationCapped", last.Outcome)
	}
}

func TestEngineRunFatalErrorStopsImmediately(t *testing.T) {
	dir := t.TempDir()
	plugin := fakePlugin{script: "echo context window exceeded"}

	e, err := New(dir, dir, "main", "story-3", plugin, "NEVER_APPEARS_TOKEN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MaxIterations = 5

	exec, err := e.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusFailed {
		t.Fatalf("Status = %v, want Failed", exec.Status)
	}
	if len(exec.Iterations) != 1 {
		t.Fatalf("len(Iterations) = %d, want 1 (fatal stops immediately)", len(exec.Iterations))
	}
	if exec.Iterations[0].Outcome != IterationFatal {
		t.Errorf("Outcome = %v, want Fatal", exec.Iterations[0].Outcome)
	}
}

func TestEngineRunRetriesThenExhausts(t *testing.T) {
	dir := t.TempDir()
	// First call fails with a retryable "timeout" signal; sh has no
	// state across invocations of BuildCommand so we rely on Classify's
	// failure catalog to drive the retry/backoff path at least once
	// before the iteration cap, then verify it terminates sanely.
	plugin := fakePlugin{script: "echo upstream timeout contacting provider"}

	e, err := New(dir, dir, "main", "story-4", plugin, "NEVER_APPEARS_TOKEN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MaxIterations = 1
	e.Retry.MaxAttempts = 1
	e.Retry.InitialDelayMs = 1

	start := time.Now()
	exec, err := e.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Run took too long: %v", time.Since(start))
	}
	if exec.Status != StatusFailed {
		t.Fatalf("Status = %v, want Failed after exhausting retries", exec.Status)
	}
}

func TestEngineCancelStopsBetweenIterations(t *testing.T) {
	dir := t.TempDir()
	plugin := fakePlugin{script: "echo working"}

	e, err := New(dir, dir, "main", "story-5", plugin, "NEVER_APPEARS_TOKEN")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MaxIterations = 10
	e.Cancel()

	exec, err := e.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.Status != StatusCancelled {
		t.Fatalf("Status = %v, want Cancelled", exec.Status)
	}
}

func TestNewRejectsInvalidPromiseToken(t *testing.T) {
	dir := t.TempDir()
	plugin := fakePlugin{script: "echo hi"}

	if _, err := New(dir, dir, "main", "story-6", plugin, "bad;token"); err == nil {
		t.Errorf("expected New to reject a promise token containing a shell metacharacter")
	}
}
