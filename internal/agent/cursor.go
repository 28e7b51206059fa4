package agent

import (
	"context"
	"os/exec"
)

func init() {
	Register(cursorPlugin{})
}

type cursorPlugin struct{}

func (cursorPlugin) AgentType() Kind { return KindCursor }

func (cursorPlugin) IsAvailable() bool {
	_, err := exec.LookPath("cursor-agent")
	return err == nil
}

var cursorFallbackModels = []ModelInfo{
	{ID: "gpt-4o", Name: "Gpt 4o", Provider: "openai"},
	{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "anthropic"},
}

func (cursorPlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return cursorFallbackModels, nil
}

func (cursorPlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"-p", spec.Prompt, "--force"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}

	cmd := exec.CommandContext(ctx, "cursor-agent", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

// ParseOutput passes lines through unchanged: Cursor's CLI output is
// opaque prose, not a structured streaming format.
func (cursorPlugin) ParseOutput(line string) DisplayEvent {
	return DisplayEvent{Type: EventRaw, Text: line}
}
