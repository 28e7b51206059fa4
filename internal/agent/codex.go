package agent

import (
	"context"
	"encoding/json"
	"os/exec"
)

func init() {
	Register(codexPlugin{})
}

type codexPlugin struct{}

func (codexPlugin) AgentType() Kind { return KindCodex }

func (codexPlugin) IsAvailable() bool {
	_, err := exec.LookPath("codex")
	return err == nil
}

var codexFallbackModels = []ModelInfo{
	{ID: "o1", Name: "O1", Provider: "openai"},
	{ID: "gpt-4o", Name: "Gpt 4o", Provider: "openai"},
}

func (codexPlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return runListModels(KindCodex, "codex", []string{"--list-models"}, codexFallbackModels), nil
}

func (codexPlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"exec", "--json"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	args = append(args, spec.Prompt)

	cmd := exec.CommandContext(ctx, "codex", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

type codexEvent struct {
	Type string `json:"type"`
	Msg  string `json:"message,omitempty"`
}

func (codexPlugin) ParseOutput(line string) DisplayEvent {
	var evt codexEvent
	if err := json.Unmarshal([]byte(line), &evt); err != nil {
		return DisplayEvent{Type: EventRaw, Text: line}
	}
	if evt.Type == "message" {
		return DisplayEvent{Type: EventAssistantText, Text: evt.Msg}
	}
	return DisplayEvent{Type: EventRaw, Text: line}
}
