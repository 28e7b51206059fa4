package agent

import (
	"context"
	"os/exec"
)

func init() {
	Register(qwenPlugin{})
}

type qwenPlugin struct{}

func (qwenPlugin) AgentType() Kind { return KindQwen }

func (qwenPlugin) IsAvailable() bool {
	_, err := exec.LookPath("qwen")
	return err == nil
}

var qwenFallbackModels = []ModelInfo{
	{ID: "qwen2.5-coder", Name: "Qwen2.5 Coder", Provider: "alibaba"},
}

func (qwenPlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return runListModels(KindQwen, "qwen", []string{"--list-models"}, qwenFallbackModels), nil
}

func (qwenPlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"-p", spec.Prompt, "--yolo"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}

	cmd := exec.CommandContext(ctx, "qwen", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

// ParseOutput passes lines through unchanged, same as Gemini (Qwen's CLI
// is a fork of the Gemini CLI and shares its plain-text output).
func (qwenPlugin) ParseOutput(line string) DisplayEvent {
	return DisplayEvent{Type: EventRaw, Text: line}
}
