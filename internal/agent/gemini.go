package agent

import (
	"context"
	"os/exec"
)

func init() {
	Register(geminiPlugin{})
}

type geminiPlugin struct{}

func (geminiPlugin) AgentType() Kind { return KindGemini }

func (geminiPlugin) IsAvailable() bool {
	_, err := exec.LookPath("gemini")
	return err == nil
}

var geminiFallbackModels = []ModelInfo{
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "google"},
	{ID: "gemini-2.0-pro", Name: "Gemini 2.0 Pro", Provider: "google"},
}

func (geminiPlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return runListModels(KindGemini, "gemini", []string{"--list-models"}, geminiFallbackModels), nil
}

func (geminiPlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"-p", spec.Prompt, "--yolo"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}

	cmd := exec.CommandContext(ctx, "gemini", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

// ParseOutput passes lines through unchanged: Gemini's CLI streams plain
// text, not a structured event format.
func (geminiPlugin) ParseOutput(line string) DisplayEvent {
	return DisplayEvent{Type: EventRaw, Text: line}
}
