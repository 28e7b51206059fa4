package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ralph-ui/ralph/internal/agent"
	"github.com/ralph-ui/ralph/internal/config"
	"github.com/ralph-ui/ralph/internal/events"
	"github.com/ralph-ui/ralph/internal/prd"
	"github.com/ralph-ui/ralph/internal/ralph"
)

// Orchestrator executes a PRD as a set of Ralph loops running in
// separate git worktrees, subject to a parallelism cap, merging
// completed branches back into the target as they finish. It ties
// together a Pool, a Coordinator, and one internal/ralph.Engine per
// story, generalizing
// other_examples/07149dd8_Logiraptor-devdashboard's Core.Run
// (readyBeads -> executeParallel -> processBeadResults loop) from a
// bead tree onto a PRD's story dependency graph.
type Orchestrator struct {
	ProjectRoot  string
	PRDName      string
	Plugin       agent.Plugin
	PromiseToken string

	Config config.OrchestratorConfig
	Engine config.EngineConfig

	Pool        *Pool
	Coordinator *Coordinator
	Broadcaster events.Broadcaster

	mu      sync.Mutex
	results map[string]error
}

// New constructs an Orchestrator for one PRD, wiring a worktree pool and
// merge coordinator rooted at projectRoot/targetBranch.
func New(projectRoot, targetBranch, prdName string, plugin agent.Plugin, promiseToken string, cfg config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		ProjectRoot:  projectRoot,
		PRDName:      prdName,
		Plugin:       plugin,
		PromiseToken: promiseToken,
		Config:       cfg,
		Engine:       config.DefaultEngineConfig(),
		Pool:         NewPool(projectRoot, targetBranch, cfg.MaxConcurrentWorktrees),
		Coordinator:  NewCoordinator(projectRoot, targetBranch),
		results:      make(map[string]error),
	}
}

func (o *Orchestrator) publish(eventType string, payload map[string]any) {
	if o.Broadcaster == nil {
		return
	}
	o.Broadcaster.Publish(events.Event{Type: eventType, Payload: payload})
}

// ErrNoReadyStories is surfaced to the caller when a run starts (or a
// round completes) with nothing left runnable and nothing in flight.
var ErrNoReadyStories = fmt.Errorf("orchestrator: no ready stories")

// Run drives the PRD to completion: repeatedly select the ready stories
// up to the parallelism cap, execute each in its own worktree
// concurrently, and merge every success back before picking the next
// round, per spec.md §4.5's data-flow description.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p, err := prd.LoadFromStore(o.ProjectRoot, o.PRDName)
		if err != nil {
			return fmt.Errorf("orchestrator: loading PRD %s: %w", o.PRDName, err)
		}

		ready := o.readyStoriesOrdered(p)
		if len(ready) == 0 {
			if p.IsComplete() {
				return nil
			}
			return ErrNoReadyStories
		}

		batchSize := o.Config.MaxConcurrentWorktrees
		if batchSize <= 0 || batchSize > len(ready) {
			batchSize = len(ready)
		}
		batch := ready[:batchSize]

		var wg sync.WaitGroup
		for _, story := range batch {
			wg.Add(1)
			go func(s prd.Story) {
				defer wg.Done()
				o.runStory(ctx, s)
			}(story)
		}
		wg.Wait()
	}
}

// readyStoriesOrdered returns ready stories sorted by priority ascending,
// stable so ties preserve PRD insertion order, per spec.md §4.5.
func (o *Orchestrator) readyStoriesOrdered(p *prd.PRD) []prd.Story {
	ready := p.ReadyStories()
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority < ready[j].Priority
	})
	return ready
}

// runStory acquires a worktree for one story, drives an Execution Engine
// to completion inside it, and on success hands the branch to the Merge
// Coordinator.
func (o *Orchestrator) runStory(ctx context.Context, story prd.Story) {
	if o.isCompetitive(story) {
		o.runCompetitiveStory(ctx, story)
		return
	}

	alloc, err := o.Pool.Acquire(o.PRDName, story.ID)
	if err != nil {
		o.recordResult(story.ID, err)
		return
	}

	if p, loadErr := prd.LoadFromStore(o.ProjectRoot, o.PRDName); loadErr == nil {
		prd.SaveToStore(alloc.Path, o.PRDName, p)
	}

	e, err := ralph.New(o.ProjectRoot, alloc.Path, alloc.Branch, story.ID, o.Plugin, o.PromiseToken)
	if err != nil {
		o.recordResult(story.ID, err)
		o.Pool.Release(story.ID)
		return
	}
	e.MaxIterations = 10
	e.Retry = o.Engine.Retry
	e.Heartbeat = o.Engine.HeartbeatInterval()
	e.Broadcaster = o.Broadcaster

	prompt := buildStoryPrompt(story)

	o.publish(events.TypeIterationStarted, map[string]any{"story_id": story.ID})
	exec, err := e.Run(ctx, prompt)
	o.publish(events.TypeExecutionCompleted, map[string]any{"story_id": story.ID, "execution_id": execID(exec)})

	if err != nil || exec == nil || exec.Status != ralph.StatusSucceeded {
		o.recordResult(story.ID, err)
		return
	}

	result := o.Coordinator.Merge(story.ID, alloc.Branch)
	switch result.Outcome {
	case MergeSucceeded:
		o.onMergeSucceeded(story.ID)
		o.Pool.Release(story.ID)
		o.recordResult(story.ID, nil)
	case MergeConflict:
		o.publish(events.TypeMergeConflict, map[string]any{"story_id": story.ID, "branch": alloc.Branch})
		if o.Config.AutoResolveConflicts && result.Conflict != nil {
			resolver := NewConflictResolver(o.Plugin)
			resolver.Resolve(ctx, alloc.Path, *result.Conflict)
		}
		o.recordResult(story.ID, fmt.Errorf("orchestrator: merge conflict on story %s", story.ID))
	default:
		o.recordResult(story.ID, result.Err)
	}
}

func execID(e *ralph.Execution) string {
	if e == nil {
		return ""
	}
	return e.ID
}

// isCompetitive reports whether a story opted into racing N agents
// against it, per spec.md §4.5's "when enabled for a story" clause —
// enabled by tagging the story with o.Config.CompetitiveTag and
// configuring at least one variant.
func (o *Orchestrator) isCompetitive(story prd.Story) bool {
	if o.Config.CompetitiveTag == "" || len(o.Config.CompetitiveVariants) == 0 {
		return false
	}
	for _, t := range story.Tags {
		if t == o.Config.CompetitiveTag {
			return true
		}
	}
	return false
}

// runCompetitiveStory races each configured CompetitiveVariant against
// the story in its own worktree, selects a winner by the configured
// strategy once the selection timeout elapses or every attempt has
// finished, merges the winner's branch, and discards the rest — the
// worktrees are released but, per spec.md §4.5, their branches remain
// for the operator to inspect or discard.
func (o *Orchestrator) runCompetitiveStory(ctx context.Context, story prd.Story) {
	variants := o.Config.CompetitiveVariants
	attempts := make([]ralph.CompetitiveAttempt, len(variants))
	allocs := make([]*Allocation, len(variants))

	attemptCtx, cancel := context.WithTimeout(ctx, o.Config.SelectionTimeout())
	defer cancel()

	var wg sync.WaitGroup
	for i, v := range variants {
		wg.Add(1)
		go func(i int, v config.CompetitiveVariant) {
			defer wg.Done()
			o.runCompetitiveAttempt(attemptCtx, story, i+1, v, attempts, allocs)
		}(i, v)
	}
	wg.Wait()

	o.publish(events.TypeExecutionCompleted, map[string]any{"story_id": story.ID, "competitive_attempts": len(attempts)})

	winner := SelectWinner(o.Config.SelectionStrategy, attempts)
	if winner == nil {
		for i := range variants {
			o.Pool.ReleaseAttempt(story.ID, i+1)
		}
		o.recordResult(story.ID, fmt.Errorf("orchestrator: no competitive attempt completed for story %s", story.ID))
		return
	}

	winnerAlloc := allocs[winner.AttemptNumber-1]
	for i := range variants {
		if i+1 == winner.AttemptNumber {
			continue
		}
		o.Pool.ReleaseAttempt(story.ID, i+1)
	}

	if winnerAlloc == nil {
		o.recordResult(story.ID, fmt.Errorf("orchestrator: winning attempt %d for story %s has no worktree", winner.AttemptNumber, story.ID))
		return
	}

	result := o.Coordinator.Merge(story.ID, winnerAlloc.Branch)
	switch result.Outcome {
	case MergeSucceeded:
		o.onMergeSucceeded(story.ID)
		o.Pool.ReleaseAttempt(story.ID, winner.AttemptNumber)
		o.recordResult(story.ID, nil)
	case MergeConflict:
		o.publish(events.TypeMergeConflict, map[string]any{"story_id": story.ID, "branch": winnerAlloc.Branch})
		if o.Config.AutoResolveConflicts && result.Conflict != nil {
			resolver := NewConflictResolver(o.Plugin)
			resolver.Resolve(ctx, winnerAlloc.Path, *result.Conflict)
		}
		o.recordResult(story.ID, fmt.Errorf("orchestrator: merge conflict on story %s", story.ID))
	default:
		o.recordResult(story.ID, result.Err)
	}
}

// runCompetitiveAttempt acquires one attempt's worktree, drives its
// Execution Engine to completion, and records a CompetitiveAttempt at
// attempts[idx] reflecting self-reported progress per spec.md §3.
func (o *Orchestrator) runCompetitiveAttempt(ctx context.Context, story prd.Story, attemptNumber int, variant config.CompetitiveVariant, attempts []ralph.CompetitiveAttempt, allocs []*Allocation) {
	idx := attemptNumber - 1
	started := time.Now().UTC()
	att := ralph.CompetitiveAttempt{
		ID:            uuid.NewString(),
		AttemptNumber: attemptNumber,
		AgentType:     o.Plugin.AgentType(),
		Model:         variant.Model,
		StartedAt:     started,
	}

	plugin := o.Plugin
	if variant.AgentType != "" {
		if p, err := agent.Get(agent.Kind(variant.AgentType)); err == nil {
			plugin = p
			att.AgentType = p.AgentType()
		}
	}

	alloc, err := o.Pool.AcquireAttempt(o.PRDName, story.ID, attemptNumber)
	if err != nil {
		attempts[idx] = att
		return
	}
	allocs[idx] = alloc

	if p, loadErr := prd.LoadFromStore(o.ProjectRoot, o.PRDName); loadErr == nil {
		prd.SaveToStore(alloc.Path, o.PRDName, p)
	}

	e, err := ralph.New(o.ProjectRoot, alloc.Path, alloc.Branch, story.ID, plugin, o.PromiseToken)
	if err != nil {
		attempts[idx] = att
		return
	}
	e.MaxIterations = 10
	e.Retry = o.Engine.Retry
	e.Heartbeat = o.Engine.HeartbeatInterval()
	e.Model = variant.Model
	e.Broadcaster = o.Broadcaster

	o.publish(events.TypeIterationStarted, map[string]any{"story_id": story.ID, "attempt_number": attemptNumber})
	exec, _ := e.Run(ctx, buildStoryPrompt(story))
	if exec != nil {
		att.ExecutionID = exec.ID
		if exec.Status == ralph.StatusSucceeded {
			now := time.Now().UTC()
			att.CompletedAt = &now
			att.StoriesComplete = 1
			att.CoveragePercent = 100
			att.LinesChanged = linesChanged(o.ProjectRoot, o.Pool.TargetBranch, alloc.Branch)
		}
	}
	attempts[idx] = att
}

// linesChanged reports the total added+removed line count a branch
// carries over its merge base with target, used as BestCoverage/
// MinimalCode's raw signal. Errors (e.g. the branch was never pushed
// past target) are treated as zero lines changed rather than failing
// the attempt.
func linesChanged(projectRoot, target, branch string) int {
	cmd := exec.Command("git", "diff", "--shortstat", target+"..."+branch)
	cmd.Dir = projectRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0
	}
	return parseShortstat(string(out))
}

// parseShortstat sums the insertions/deletions counts out of a `git diff
// --shortstat` line like " 2 files changed, 10 insertions(+), 3
// deletions(-)".
func parseShortstat(s string) int {
	total := 0
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.HasPrefix(f, "insertion") || strings.HasPrefix(f, "deletion") {
			if i > 0 {
				if n, err := strconv.Atoi(fields[i-1]); err == nil {
					total += n
				}
			}
		}
	}
	return total
}

// onMergeSucceeded marks the story passing and syncs the PRD back to the
// main project store, per spec.md §4.5.
func (o *Orchestrator) onMergeSucceeded(storyID string) {
	p, err := prd.LoadFromStore(o.ProjectRoot, o.PRDName)
	if err != nil {
		return
	}
	if p.MarkStoryComplete(storyID) {
		prd.SaveToStore(o.ProjectRoot, o.PRDName, p)
	}
	o.publish(events.TypeStoryPassed, map[string]any{"story_id": storyID})
	o.publish(events.TypeMergeSucceeded, map[string]any{"story_id": storyID})
}

func (o *Orchestrator) recordResult(storyID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[storyID] = err
}

// Results returns the most recent outcome recorded per story ID.
func (o *Orchestrator) Results() map[string]error {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]error, len(o.results))
	for k, v := range o.results {
		out[k] = v
	}
	return out
}

// buildStoryPrompt renders a story's title, description and acceptance
// criteria into the prompt text handed to the agent for that iteration.
// Prompt phrasing itself is out of scope (see the non-goal on agent
// prompt content); this only assembles the story's own fields.
func buildStoryPrompt(s prd.Story) string {
	prompt := fmt.Sprintf("Story %s: %s\n\n%s\n\nAcceptance criteria:\n", s.ID, s.Title, s.Description)
	for _, c := range s.AcceptanceCriteria {
		prompt += fmt.Sprintf("- %s\n", c)
	}
	return prompt
}
