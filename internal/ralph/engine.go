package ralph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ralph-ui/ralph/internal/agent"
	"github.com/ralph-ui/ralph/internal/config"
	"github.com/ralph-ui/ralph/internal/events"
	"github.com/ralph-ui/ralph/internal/ptyreg"
)

// Engine runs one prompt against one agent until the promise token
// appears in the output or a stop condition fires (iteration cap, fatal
// error, exhausted retries, cancellation). It does not read the PRD or
// its stories' passes flags; the caller decides what a success means for
// the PRD.
type Engine struct {
	ProjectRoot  string
	WorktreePath string
	Branch       string
	StoryID      string
	Plugin       agent.Plugin
	PromiseToken string
	Model        string

	MaxIterations int
	Retry         config.RetryConfig
	Heartbeat     time.Duration

	Broadcaster events.Broadcaster

	cancelled bool
	cancelMu  sync.Mutex
}

// New constructs an Engine, validating the promise token up front per
// spec.md §4.4's "validated once at engine construction" rule.
func New(projectRoot, worktreePath, branch, storyID string, plugin agent.Plugin, promiseToken string) (*Engine, error) {
	if err := agent.ValidatePromiseToken(promiseToken); err != nil {
		return nil, err
	}
	return &Engine{
		ProjectRoot:   projectRoot,
		WorktreePath:  worktreePath,
		Branch:        branch,
		StoryID:       storyID,
		Plugin:        plugin,
		PromiseToken:  promiseToken,
		MaxIterations: 10,
		Retry:         config.DefaultRetryConfig(),
		Heartbeat:     config.DefaultEngineConfig().HeartbeatInterval(),
	}, nil
}

// Cancel sets a flag that Run checks before and after each iteration and
// during retry backoff, after which Run records Cancelled and returns.
// It does not signal a child process that is already running; that
// iteration runs until the child exits or Run's context is cancelled.
// Idempotent.
func (e *Engine) Cancel() {
	e.cancelMu.Lock()
	e.cancelled = true
	e.cancelMu.Unlock()
}

func (e *Engine) isCancelled() bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelled
}

func (e *Engine) publish(eventType string, payload map[string]any) {
	if e.Broadcaster == nil {
		return
	}
	e.Broadcaster.Publish(events.Event{Type: eventType, Payload: payload})
}

func (e *Engine) persist(exec *Execution) {
	_ = exec.Save(e.ProjectRoot)
}

// Run drives the state machine of spec.md §4.4 to completion, returning
// the terminal Execution record.
func (e *Engine) Run(ctx context.Context, prompt string) (*Execution, error) {
	exec := NewExecution(e.Plugin.AgentType(), e.StoryID)
	e.persist(exec)

	heartbeatStop := e.startHeartbeat(exec)
	defer heartbeatStop()

	attempt := 0
	for iterationNum := 1; iterationNum <= e.MaxIterations; iterationNum++ {
		if e.isCancelled() || ctx.Err() != nil {
			exec.finish(StatusCancelled)
			e.persist(exec)
			e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
			return exec, nil
		}

		e.publish(events.TypeIterationStarted, map[string]any{"execution_id": exec.ID, "iteration": iterationNum})

		it := Iteration{Number: iterationNum, StartedAt: time.Now().UTC()}
		accumulated, exitCode, exited, runErr := e.runIteration(ctx, prompt)

		now := time.Now().UTC()
		it.CompletedAt = &now

		if e.isCancelled() || ctx.Err() != nil {
			it.Outcome = IterationInterrupted
			exec.addIteration(it)
			exec.finish(StatusCancelled)
			e.persist(exec)
			e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
			return exec, nil
		}

		if agent.DetectCompletion(accumulated, e.PromiseToken) {
			it.Outcome = IterationCompleted
			exec.addIteration(it)
			e.persist(exec)
			e.publish(events.TypeIterationCompleted, map[string]any{"execution_id": exec.ID, "iteration": iterationNum, "outcome": it.Outcome})

			exec.finish(StatusSucceeded)
			e.persist(exec)
			e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
			return exec, nil
		}

		outcome := agent.Classify(accumulated, exitCode, exited)
		switch outcome.Kind {
		case agent.OutcomeRetryable:
			attempt++
			it.Outcome = IterationRetryable
			if attempt > e.Retry.MaxAttempts {
				exec.addIteration(it)
				exec.finish(StatusFailed)
				e.persist(exec)
				e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
				return exec, nil
			}
			delay := e.Retry.Delay(attempt + 1)
			delayMs := delay.Milliseconds()
			it.RetryDelayMs = &delayMs
			exec.addIteration(it)
			e.persist(exec)
			e.publish(events.TypeIterationCompleted, map[string]any{"execution_id": exec.ID, "iteration": iterationNum, "outcome": it.Outcome})
			if !e.sleepOrCancel(ctx, delay) {
				exec.finish(StatusCancelled)
				e.persist(exec)
				e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
				return exec, nil
			}
			iterationNum-- // retry doesn't consume an iteration slot
			continue

		case agent.OutcomeFatal:
			it.Outcome = IterationFatal
			exec.addIteration(it)
			exec.finish(StatusFailed)
			e.persist(exec)
			e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
			if runErr != nil {
				return exec, fmt.Errorf("ralph: fatal iteration: %w", runErr)
			}
			return exec, nil

		case agent.OutcomeExitedWithError:
			attempt++
			it.Outcome = IterationRetryable
			ec := outcome.ExitCode
			it.ExitCode = &ec
			if attempt > e.Retry.MaxAttempts {
				exec.addIteration(it)
				exec.finish(StatusFailed)
				e.persist(exec)
				e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
				return exec, nil
			}
			delay := e.Retry.Delay(attempt + 1)
			delayMs := delay.Milliseconds()
			it.RetryDelayMs = &delayMs
			exec.addIteration(it)
			e.persist(exec)
			e.publish(events.TypeIterationCompleted, map[string]any{"execution_id": exec.ID, "iteration": iterationNum, "outcome": it.Outcome})
			if !e.sleepOrCancel(ctx, delay) {
				exec.finish(StatusCancelled)
				e.persist(exec)
				e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
				return exec, nil
			}
			iterationNum--
			continue

		default: // agent.OutcomeCompleted, but no promise token seen yet
			it.Outcome = IterationCompleted
			exec.addIteration(it)
			e.persist(exec)
			e.publish(events.TypeIterationCompleted, map[string]any{"execution_id": exec.ID, "iteration": iterationNum, "outcome": it.Outcome})
			attempt = 0
		}
	}

	exec.finish(StatusFailed)
	lastIt := Iteration{Number: e.MaxIterations + 1, StartedAt: time.Now().UTC(), Outcome: IterationIterationCapped}
	exec.addIteration(lastIt)
	e.persist(exec)
	e.publish(events.TypeExecutionCompleted, map[string]any{"execution_id": exec.ID, "status": exec.Status})
	return exec, nil
}

// sleepOrCancel waits for delay, returning false if the context is
// cancelled or the engine's cancel token is observed first.
func (e *Engine) sleepOrCancel(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if e.isCancelled() {
				return false
			}
		}
	}
}

// startHeartbeat launches a goroutine that refreshes the Execution's
// heartbeat on the configured cadence until the returned stop func is
// called, per spec.md §4.4's persistence rhythm.
func (e *Engine) startHeartbeat(exec *Execution) (stop func()) {
	interval := e.Heartbeat
	if interval <= 0 {
		interval = config.DefaultEngineConfig().HeartbeatInterval()
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = exec.Heartbeat(e.ProjectRoot)
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// runIteration spawns one agent iteration and returns the accumulated
// output along with exit status. The spec it builds always has SpawnMode
// SpawnPiped, so the ptyreg.RunToCompletion branch is not taken.
func (e *Engine) runIteration(ctx context.Context, prompt string) (accumulated string, exitCode int, exited bool, err error) {
	spec := agent.Spec{
		AgentType:     e.Plugin.AgentType(),
		TaskID:        e.StoryID,
		WorktreePath:  e.WorktreePath,
		Branch:        e.Branch,
		MaxIterations: e.MaxIterations,
		Prompt:        prompt,
		Model:         e.Model,
		SpawnMode:     agent.SpawnPiped,
	}

	cmd, err := e.Plugin.BuildCommand(ctx, spec)
	if err != nil {
		return "", 0, false, err
	}

	if spec.SpawnMode == agent.SpawnPty {
		out, runErr := ptyreg.RunToCompletion(ctx, cmd, 120, 40)
		accumulated = string(out)
		exited = true
		if exitErr, ok := asExitError(runErr); ok {
			exitCode = exitErr.ExitCode()
		}
		return accumulated, exitCode, exited, nil
	}

	return e.runPiped(ctx, cmd)
}

// runPiped streams a piped child's stdout/stderr, publishing each parsed
// display event, and returns the accumulated combined output.
func (e *Engine) runPiped(ctx context.Context, cmd *exec.Cmd) (accumulated string, exitCode int, exited bool, err error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", 0, false, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", 0, false, err
	}

	if err := cmd.Start(); err != nil {
		return "", 0, false, err
	}

	var mu sync.Mutex
	var buf []byte
	var wg sync.WaitGroup

	streamLines := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			buf = append(buf, line...)
			buf = append(buf, '\n')
			mu.Unlock()

			evt := e.Plugin.ParseOutput(line)
			e.publish(events.TypeStatusChanged, map[string]any{"display_event": string(evt.Type), "text": evt.Text})
		}
	}

	wg.Add(2)
	go streamLines(stdout)
	go streamLines(stderr)
	wg.Wait()

	waitErr := cmd.Wait()
	mu.Lock()
	accumulated = string(buf)
	mu.Unlock()

	exited = true
	if exitErr, ok := asExitError(waitErr); ok {
		exitCode = exitErr.ExitCode()
		return accumulated, exitCode, exited, nil
	}
	if waitErr != nil {
		return accumulated, 0, false, waitErr
	}
	return accumulated, 0, exited, nil
}

func asExitError(err error) (*exec.ExitError, bool) {
	if err == nil {
		return nil, false
	}
	exitErr, ok := err.(*exec.ExitError)
	return exitErr, ok
}
