package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ralph-ui/ralph/internal/agent"
)

// MergeOutcome classifies how a Merge Coordinator attempt ended.
type MergeOutcome string

const (
	MergeSucceeded MergeOutcome = "Succeeded"
	MergeConflict  MergeOutcome = "Conflict"
	MergeError     MergeOutcome = "Error"
)

// ConflictFile is one file's three-way state at the point a merge was
// aborted, per spec.md §4.5's conflict record shape.
type ConflictFile struct {
	Path             string `json:"path"`
	OurContent       string `json:"our_content"`
	TheirContent     string `json:"their_content"`
	AncestorContent  string `json:"ancestor_content"`
	ConflictMarkers  string `json:"conflict_markers"`
}

// Conflict is one merge attempt's full conflict record, queued for
// resolution.
type Conflict struct {
	StoryID string         `json:"story_id"`
	Branch  string         `json:"branch"`
	Files   []ConflictFile `json:"files"`
}

// MergeResult is the outcome of one Merge Coordinator attempt.
type MergeResult struct {
	StoryID  string
	Outcome  MergeOutcome
	Conflict *Conflict
	Err      error
}

// Coordinator merges completed story branches into a PRD's target
// branch, serially per target branch, per spec.md §5's ordering
// guarantee ("story passes transitions are totally ordered").
type Coordinator struct {
	ProjectRoot  string
	TargetBranch string

	mu    sync.Mutex
	queue []Conflict
}

// NewCoordinator returns a Coordinator for the given project and target
// branch.
func NewCoordinator(projectRoot, targetBranch string) *Coordinator {
	return &Coordinator{ProjectRoot: projectRoot, TargetBranch: targetBranch}
}

// Merge attempts `git merge <branch>` into the target branch. On
// conflict it aborts the merge, captures a ConflictFile per conflicting
// path, and enqueues the record — the worktree is left intact by the
// caller until resolution (spec.md §4.5).
func (c *Coordinator) Merge(storyID, branch string) MergeResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	checkoutCmd := exec.Command("git", "checkout", c.TargetBranch)
	checkoutCmd.Dir = c.ProjectRoot
	if out, err := checkoutCmd.CombinedOutput(); err != nil {
		return MergeResult{StoryID: storyID, Outcome: MergeError, Err: fmt.Errorf("checkout %s: %v: %s", c.TargetBranch, err, out)}
	}

	mergeCmd := exec.Command("git", "merge", "--no-ff", branch)
	mergeCmd.Dir = c.ProjectRoot
	out, err := mergeCmd.CombinedOutput()
	if err == nil {
		return MergeResult{StoryID: storyID, Outcome: MergeSucceeded}
	}

	if !isMergeConflict(string(out)) {
		return MergeResult{StoryID: storyID, Outcome: MergeError, Err: fmt.Errorf("git merge %s: %v: %s", branch, err, out)}
	}

	files, listErr := c.conflictingFiles()
	record := Conflict{StoryID: storyID, Branch: branch, Files: files}

	abortCmd := exec.Command("git", "merge", "--abort")
	abortCmd.Dir = c.ProjectRoot
	abortCmd.Run()

	c.queue = append(c.queue, record)

	if listErr != nil {
		return MergeResult{StoryID: storyID, Outcome: MergeConflict, Conflict: &record, Err: listErr}
	}
	return MergeResult{StoryID: storyID, Outcome: MergeConflict, Conflict: &record}
}

func isMergeConflict(output string) bool {
	return strings.Contains(output, "CONFLICT") || strings.Contains(output, "Automatic merge failed")
}

// conflictingFiles reads each unmerged path's ours/theirs/ancestor/working
// content via `git show :<stage>:<path>` and the working tree, building a
// ConflictFile per spec.md §4.5.
func (c *Coordinator) conflictingFiles() ([]ConflictFile, error) {
	lsCmd := exec.Command("git", "diff", "--name-only", "--diff-filter=U")
	lsCmd.Dir = c.ProjectRoot
	out, err := lsCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing conflicts: %w", err)
	}

	var files []ConflictFile
	for _, path := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if path == "" {
			continue
		}
		marked, _ := os.ReadFile(c.ProjectRoot + "/" + path)
		files = append(files, ConflictFile{
			Path:            path,
			AncestorContent: c.showStage(path, 1),
			OurContent:      c.showStage(path, 2),
			TheirContent:    c.showStage(path, 3),
			ConflictMarkers: string(marked),
		})
	}
	return files, nil
}

func (c *Coordinator) showStage(path string, stage int) string {
	cmd := exec.Command("git", "show", fmt.Sprintf(":%d:%s", stage, path))
	cmd.Dir = c.ProjectRoot
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

// Queue returns the pending conflicts, oldest first.
func (c *Coordinator) Queue() []Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Conflict, len(c.queue))
	copy(out, c.queue)
	return out
}

// Dequeue removes a resolved conflict from the queue by story ID.
func (c *Coordinator) Dequeue(storyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue[:0]
	for _, conflict := range c.queue {
		if conflict.StoryID != storyID {
			out = append(out, conflict)
		}
	}
	c.queue = out
}

// DefaultConflictTimeout is the per-conflict budget for AI-assisted
// resolution, per spec.md §5.
const DefaultConflictTimeout = 120 * time.Second

// ResolutionResult tallies how an AI-assisted conflict-resolution pass
// went.
type ResolutionResult struct {
	Resolved int
	Failed   int
}

// ConflictResolver invokes an Agent Driver per conflicting file with a
// strict "resolved content only" contract, grounded on the Agent
// Driver's BuildCommand/piped-output plumbing shared with
// internal/ralph.
type ConflictResolver struct {
	Plugin  agent.Plugin
	Timeout time.Duration
}

// NewConflictResolver returns a resolver with spec.md's default 120s
// per-conflict timeout.
func NewConflictResolver(plugin agent.Plugin) *ConflictResolver {
	return &ConflictResolver{Plugin: plugin, Timeout: DefaultConflictTimeout}
}

// Resolve attempts to resolve every file in conflict by prompting the
// agent for a three-way merge, writing the agent's raw stdout as the
// file's new content. Files the agent fails (non-zero exit, timeout, or
// empty output) count toward Failed.
func (r *ConflictResolver) Resolve(ctx context.Context, projectRoot string, conflict Conflict) ResolutionResult {
	var result ResolutionResult
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultConflictTimeout
	}

	for _, f := range conflict.Files {
		resolved, err := r.resolveOne(ctx, projectRoot, timeout, f)
		if err != nil || strings.TrimSpace(resolved) == "" {
			result.Failed++
			continue
		}
		if writeErr := os.WriteFile(projectRoot+"/"+f.Path, []byte(resolved), 0644); writeErr != nil {
			result.Failed++
			continue
		}
		result.Resolved++
	}
	return result
}

func (r *ConflictResolver) resolveOne(ctx context.Context, projectRoot string, timeout time.Duration, f ConflictFile) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Resolve the git merge conflict below. Output ONLY the final resolved file content for %s — no code fences, no prose, no explanation.\n\n--- ANCESTOR ---\n%s\n--- OURS ---\n%s\n--- THEIRS ---\n%s\n--- CONFLICT MARKERS ---\n%s\n",
		f.Path, f.AncestorContent, f.OurContent, f.TheirContent, f.ConflictMarkers)

	cmd, err := r.Plugin.BuildCommand(cctx, agent.Spec{
		AgentType:    r.Plugin.AgentType(),
		WorktreePath: projectRoot,
		Prompt:       prompt,
		SpawnMode:    agent.SpawnPiped,
	})
	if err != nil {
		return "", err
	}

	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
