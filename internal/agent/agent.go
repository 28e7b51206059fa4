// Package agent abstracts over the CLI differences between supported
// coding agents (Claude, Opencode, Cursor, Codex, Gemini, Qwen, Droid),
// exposing a uniform Plugin interface (BuildCommand(spec) -> *exec.Cmd,
// ParseOutput(line) -> DisplayEvent) and a shared
// completion/error-classification pipeline the Ralph Execution Engine
// drives.
package agent

import (
	"context"
	"fmt"
	"os/exec"
)

// SpawnMode selects whether the driver pipes the child's stdout/stderr or
// hosts it inside a PTY (see internal/ptyreg).
type SpawnMode string

const (
	SpawnPiped SpawnMode = "Piped"
	SpawnPty   SpawnMode = "Pty"
)

// Kind identifies a supported agent CLI.
type Kind string

const (
	KindClaude   Kind = "claude"
	KindOpencode Kind = "opencode"
	KindCursor   Kind = "cursor"
	KindCodex    Kind = "codex"
	KindGemini   Kind = "gemini"
	KindQwen     Kind = "qwen"
	KindDroid    Kind = "droid"
)

// Spec is the input to Plugin.BuildCommand: everything a plugin needs to
// build a command for one iteration.
type Spec struct {
	AgentType     Kind
	TaskID        string
	WorktreePath  string
	Branch        string
	MaxIterations int
	Prompt        string
	Model         string
	SpawnMode     SpawnMode
	PluginConfig  map[string]string
	EnvVars       map[string]string
	DisableTools  []string
}

// ModelInfo describes one model a plugin's discover_models reported or
// fell back to.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Plugin is the uniform interface every supported agent CLI implements.
type Plugin interface {
	AgentType() Kind
	IsAvailable() bool
	DiscoverModels(ctx context.Context) ([]ModelInfo, error)
	BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error)
	ParseOutput(line string) DisplayEvent
}

// registry maps a Kind to its plugin implementation. Populated by each
// plugin file's init().
var registry = map[Kind]Plugin{}

// Register adds a plugin to the registry. Called from each agent kind's
// init().
func Register(p Plugin) {
	registry[p.AgentType()] = p
}

// Get returns the plugin for a kind, or an error if it isn't registered.
func Get(kind Kind) (Plugin, error) {
	p, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("agent: no plugin registered for %q", kind)
	}
	return p, nil
}

// Available returns every Kind whose CLI is currently on PATH.
func Available() []Kind {
	var out []Kind
	for kind, p := range registry {
		if p.IsAvailable() {
			out = append(out, kind)
		}
	}
	return out
}
