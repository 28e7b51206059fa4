// Package ralph implements the Ralph Execution Engine (spec.md §4.4): the
// iteration loop that repeatedly spawns an internal/agent Plugin, watches
// its output, detects the completion promise, classifies errors, applies
// retry-with-backoff, and persists a durable Execution record with
// heartbeats for crash recovery.
//
// It generalizes the teacher's runAgent loop in cmd/run.go (reload PRD
// each iteration, check completion, sleep between iterations, honor a
// cancellable context on SIGINT/SIGTERM) into a typed state machine, and
// its retry-with-backoff is grounded on re-cinq-detergent's
// internal/git.Repo.run, the pack's clearest backoff-retry idiom.
package ralph

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ralph-ui/ralph/internal/agent"
	"github.com/ralph-ui/ralph/internal/fsstore"
)

// Status is an Execution's lifecycle state.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// IterationOutcome is how a single child-process invocation ended.
type IterationOutcome string

const (
	IterationCompleted       IterationOutcome = "Completed"
	IterationRetryable       IterationOutcome = "Retryable"
	IterationFatal           IterationOutcome = "Fatal"
	IterationInterrupted     IterationOutcome = "Interrupted"
	IterationCostCapped      IterationOutcome = "CostCapped"
	IterationIterationCapped IterationOutcome = "IterationCapped"
	IterationCancelled       IterationOutcome = "Cancelled"
)

// Iteration is one agent run inside an Execution.
type Iteration struct {
	Number       int              `json:"number"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	ExitCode     *int             `json:"exit_code,omitempty"`
	Outcome      IterationOutcome `json:"outcome"`
	Tokens       int64            `json:"tokens"`
	CostUSD      float64          `json:"cost_usd"`
	RetryDelayMs *int64           `json:"retry_delay_ms,omitempty"`
}

// CompetitiveAttempt is one of N parallel agent runs the Parallel
// Orchestrator races against the same story (spec.md §3, §4.5).
type CompetitiveAttempt struct {
	ID              string     `json:"id"`
	AttemptNumber   int        `json:"attempt_number"`
	AgentType       agent.Kind `json:"agent_type"`
	Model           string     `json:"model,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	StoriesComplete int        `json:"stories_completed"`
	CoveragePercent float64    `json:"coverage_percent"`
	LinesChanged    int        `json:"lines_changed"`
	ExecutionID     string     `json:"execution_id,omitempty"`
}

// Execution is one full run of the Ralph loop against a PRD.
type Execution struct {
	ID                  string                `json:"id"`
	AgentType           agent.Kind            `json:"agent_type"`
	StoryID             string                `json:"story_id,omitempty"`
	StartedAt           time.Time             `json:"started_at"`
	CompletedAt         *time.Time            `json:"completed_at,omitempty"`
	Status              Status                `json:"status"`
	Iterations          []Iteration           `json:"iterations"`
	CompetitiveAttempts []CompetitiveAttempt  `json:"competitive_attempts,omitempty"`
	SelectedAttemptID   string                `json:"selected_attempt_id,omitempty"`
	HeartbeatAt         time.Time             `json:"heartbeat_at"`
	TotalTokens         int64                 `json:"total_tokens"`
	TotalCostUSD        float64               `json:"total_cost_usd"`
}

// NewExecution creates a fresh, Running Execution for the given agent
// kind and (optional) story.
func NewExecution(agentType agent.Kind, storyID string) *Execution {
	now := time.Now().UTC()
	return &Execution{
		ID:          uuid.NewString(),
		AgentType:   agentType,
		StoryID:     storyID,
		StartedAt:   now,
		Status:      StatusRunning,
		HeartbeatAt: now,
	}
}

// executionsDir returns the directory Execution snapshots are persisted
// under.
func executionsDir(projectRoot string) string {
	return filepath.Join(fsstore.RalphUIDir(projectRoot), "executions")
}

func executionPath(projectRoot, id string) string {
	return filepath.Join(executionsDir(projectRoot), id+".snapshot")
}

// Save persists the Execution snapshot atomically. Callers invoke this
// after every state change and on the heartbeat cadence (spec.md §4.4's
// "persistence rhythm").
func (e *Execution) Save(projectRoot string) error {
	return fsstore.WriteJSON(executionPath(projectRoot, e.ID), e)
}

// LoadExecution reads an Execution snapshot by ID.
func LoadExecution(projectRoot, id string) (*Execution, error) {
	var e Execution
	if err := fsstore.ReadJSON(executionPath(projectRoot, id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteExecution removes a snapshot file, e.g. after crash recovery has
// finished reclaiming it.
func DeleteExecution(projectRoot, id string) error {
	return fsstore.Remove(executionPath(projectRoot, id))
}

// ListExecutionSnapshots enumerates the Execution IDs with a *.snapshot
// file under a project's executions/ directory.
func ListExecutionSnapshots(projectRoot string) ([]string, error) {
	names, err := fsstore.ListByExt(executionsDir(projectRoot), ".snapshot")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = strings.TrimSuffix(n, ".snapshot")
	}
	return ids, nil
}

// Heartbeat refreshes HeartbeatAt and persists the snapshot. Called on a
// fixed cadence (default 30s, config.EngineConfig.HeartbeatSecs) by the
// Engine's run loop.
func (e *Execution) Heartbeat(projectRoot string) error {
	e.HeartbeatAt = time.Now().UTC()
	return e.Save(projectRoot)
}

// IsStale reports whether this Execution's heartbeat is older than
// threshold while it's still Running — the basis for crash recovery
// (spec.md §4.8).
func (e *Execution) IsStale(threshold time.Duration) bool {
	return e.Status == StatusRunning && time.Since(e.HeartbeatAt) > threshold
}

// addIteration appends an iteration record and refreshes aggregate
// tokens/cost.
func (e *Execution) addIteration(it Iteration) {
	e.Iterations = append(e.Iterations, it)
	e.TotalTokens += it.Tokens
	e.TotalCostUSD += it.CostUSD
}

// finish marks the Execution terminal with the given status.
func (e *Execution) finish(status Status) {
	now := time.Now().UTC()
	e.Status = status
	e.CompletedAt = &now
}

// Interrupt marks a crashed Execution's in-flight iteration Interrupted
// and the Execution itself Cancelled, per spec.md §4.8's startup
// recovery step 2. Called on an Execution whose heartbeat has gone
// stale while it was still Running.
func (e *Execution) Interrupt() {
	if n := len(e.Iterations); n > 0 {
		last := &e.Iterations[n-1]
		if last.CompletedAt == nil {
			now := time.Now().UTC()
			last.CompletedAt = &now
			last.Outcome = IterationInterrupted
		}
	}
	e.finish(StatusCancelled)
}
