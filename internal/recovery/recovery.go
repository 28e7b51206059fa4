// Package recovery implements startup recovery (spec.md §4.8): on
// process start, for each registered project, it reclaims state left
// behind by a crash — stale session locks, stale execution snapshots,
// and agents whose process has died — into a clean, idempotent
// baseline.
//
// It ties together fsstore.FindStaleLocks, internal/ralph's
// Interrupted-iteration marking, and internal/session's orphaned-task
// unassignment the way the teacher's internal/loop.IsRunning/pid-check
// idiom is threaded through multiple commands, generalized here into a
// single entry point invoked from cmd/doctor.go and the server's
// startup path.
package recovery

import (
	"fmt"
	"time"

	"github.com/ralph-ui/ralph/internal/events"
	"github.com/ralph-ui/ralph/internal/fsstore"
	"github.com/ralph-ui/ralph/internal/ralph"
	"github.com/ralph-ui/ralph/internal/session"
)

// Report tallies what one recovery pass reclaimed.
type Report struct {
	SessionsPaused      int
	TasksUnassigned     int
	ExecutionsRecovered int
	AgentsIdled         int
}

// Options controls a recovery pass. A zero Options uses
// fsstore.DefaultStaleThreshold (120s) as the staleness threshold.
type Options struct {
	StaleThreshold time.Duration
	Broadcaster    events.Broadcaster
}

// Run performs one idempotent recovery pass over a project's
// .ralph-ui/ state. Calling it twice in a row without anything changing
// in between produces an empty second Report and emits no further
// events, because each step consumes the state it reclaims (locks and
// snapshots are removed; agents are left Idle, which the dead-PID check
// will no longer flag).
func Run(projectRoot string, opts Options) (*Report, error) {
	threshold := opts.StaleThreshold
	if threshold <= 0 {
		threshold = fsstore.DefaultStaleThreshold
	}

	report := &Report{}

	if err := recoverSessionLocks(projectRoot, threshold, report); err != nil {
		return report, fmt.Errorf("recovery: session locks: %w", err)
	}
	if err := recoverExecutions(projectRoot, threshold, opts.Broadcaster, report); err != nil {
		return report, fmt.Errorf("recovery: executions: %w", err)
	}
	if err := recoverAgents(projectRoot, opts.Broadcaster, report); err != nil {
		return report, fmt.Errorf("recovery: agents: %w", err)
	}
	return report, nil
}

// recoverSessionLocks finds stale session locks, pauses their owning
// session, unassigns any InProgress task back to Pending, and removes
// the lock so a live process can reacquire it.
func recoverSessionLocks(projectRoot string, threshold time.Duration, report *Report) error {
	dir := fsstore.RalphUIDir(projectRoot) + "/sessions"
	stale, err := fsstore.FindStaleLocks(dir, threshold)
	if err != nil {
		return err
	}

	for _, info := range stale {
		sess, err := session.Load(projectRoot, info.Lock.SessionID)
		if err != nil {
			fsstore.Remove(info.Path)
			continue
		}

		if sess.Status == session.StatusActive {
			sess.Status = session.StatusPaused
			report.SessionsPaused++
		}
		for i := range sess.Tasks {
			if sess.Tasks[i].Status == session.TaskInProgress {
				sess.Tasks[i].Status = session.TaskPending
				report.TasksUnassigned++
			}
		}
		if err := sess.Save(projectRoot); err != nil {
			return err
		}
		if err := fsstore.Remove(info.Path); err != nil {
			return err
		}
	}
	return nil
}

// recoverExecutions finds execution snapshots whose heartbeat has gone
// stale while Running, marks their in-flight iteration Interrupted,
// finishes the Execution Cancelled, publishes exactly one
// ralph:execution_completed event, then deletes the snapshot.
func recoverExecutions(projectRoot string, threshold time.Duration, bc events.Broadcaster, report *Report) error {
	ids, err := ralph.ListExecutionSnapshots(projectRoot)
	if err != nil {
		return err
	}

	for _, id := range ids {
		exec, err := ralph.LoadExecution(projectRoot, id)
		if err != nil {
			continue
		}
		if !exec.IsStale(threshold) {
			continue
		}

		exec.Interrupt()
		report.ExecutionsRecovered++

		if bc != nil {
			bc.Publish(events.Event{
				Type:    events.TypeExecutionCompleted,
				Payload: map[string]any{"execution_id": exec.ID, "status": exec.Status},
			})
		}

		if err := ralph.DeleteExecution(projectRoot, id); err != nil {
			return err
		}
	}
	return nil
}

// recoverAgents transitions any agent recorded with a PID that is no
// longer alive back to Idle and publishes a status-changed event.
func recoverAgents(projectRoot string, bc events.Broadcaster, report *Report) error {
	entries, err := session.ListAgents(projectRoot)
	if err != nil {
		return err
	}

	for _, e := range entries {
		a, err := session.LoadAgent(projectRoot, e.ID)
		if err != nil {
			continue
		}
		if a.Status == session.AgentIdle {
			continue
		}
		if a.ProcessID == 0 || fsstore.IsProcessAlive(a.ProcessID) {
			continue
		}

		a.Status = session.AgentIdle
		if err := a.Save(projectRoot); err != nil {
			return err
		}
		report.AgentsIdled++

		if bc != nil {
			bc.Publish(events.Event{
				Type:    "agent-status-changed",
				Payload: map[string]any{"agent_id": a.ID, "status": a.Status},
			})
		}
	}
	return nil
}
