package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/ralph-ui/ralph/internal/fsstore"
)

// AgentStatus is a live agent instance's current activity.
type AgentStatus string

const (
	AgentIdle         AgentStatus = "Idle"
	AgentThinking     AgentStatus = "Thinking"
	AgentReading      AgentStatus = "Reading"
	AgentImplementing AgentStatus = "Implementing"
	AgentTesting      AgentStatus = "Testing"
	AgentCommitting   AgentStatus = "Committing"
)

// Agent is a live agent instance bound to either a legacy Task or a PRD
// Story. Its state lives under .ralph-ui/agents/ and is gitignored — it
// is runtime-only and never expected to survive a clean checkout.
type Agent struct {
	ID             string      `json:"id"`
	SessionID      string      `json:"session_id"`
	TaskID         string      `json:"task_id,omitempty"`
	StoryID        string      `json:"story_id,omitempty"`
	Status         AgentStatus `json:"status"`
	ProcessID      int         `json:"process_id,omitempty"`
	WorktreePath   string      `json:"worktree_path"`
	Branch         string      `json:"branch"`
	IterationCount int         `json:"iteration_count"`
	Tokens         int64       `json:"tokens"`
	Cost           float64     `json:"cost"`
	Logs           []string    `json:"logs,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NewAgent creates an Idle agent for a legacy session task.
func NewAgent(sessionID, taskID, worktreePath, branch string) *Agent {
	return &Agent{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		TaskID:       taskID,
		Status:       AgentIdle,
		WorktreePath: worktreePath,
		Branch:       branch,
		UpdatedAt:    time.Now().UTC(),
	}
}

func agentsDir(projectRoot string) string {
	return fsstore.RalphUIDir(projectRoot) + "/agents"
}

func agentPath(projectRoot, id string) string {
	return agentsDir(projectRoot) + "/" + id + ".json"
}

// Save persists the agent and refreshes the agents/ index.
func (a *Agent) Save(projectRoot string) error {
	a.UpdatedAt = time.Now().UTC()
	if err := fsstore.WriteJSON(agentPath(projectRoot, a.ID), a); err != nil {
		return err
	}
	return fsstore.UpsertIndexEntry(agentsDir(projectRoot), fsstore.IndexEntry{
		ID:        a.ID,
		Label:     string(a.Status),
		UpdatedAt: a.UpdatedAt,
	})
}

// LoadAgent reads an agent by ID.
func LoadAgent(projectRoot, id string) (*Agent, error) {
	var a Agent
	if err := fsstore.ReadJSON(agentPath(projectRoot, id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAgents returns every agent registered for a project.
func ListAgents(projectRoot string) ([]fsstore.IndexEntry, error) {
	return fsstore.ReadIndex(agentsDir(projectRoot))
}

// AppendLog appends a line to the agent's in-memory log tail, capping it
// at maxAgentLogLines so a long-running agent doesn't grow its JSON file
// without bound.
const maxAgentLogLines = 500

func (a *Agent) AppendLog(line string) {
	a.Logs = append(a.Logs, line)
	if len(a.Logs) > maxAgentLogLines {
		a.Logs = a.Logs[len(a.Logs)-maxAgentLogLines:]
	}
}
