package agent

import (
	"context"
	"os/exec"
)

func init() {
	Register(droidPlugin{})
}

type droidPlugin struct{}

func (droidPlugin) AgentType() Kind { return KindDroid }

func (droidPlugin) IsAvailable() bool {
	_, err := exec.LookPath("droid")
	return err == nil
}

var droidFallbackModels = []ModelInfo{
	{ID: "droid-default", Name: "Droid Default", Provider: "factory"},
}

func (droidPlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return droidFallbackModels, nil
}

func (droidPlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"exec", spec.Prompt, "--auto", "high"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}

	cmd := exec.CommandContext(ctx, "droid", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

// ParseOutput passes lines through unchanged: Droid's CLI is opaque.
func (droidPlugin) ParseOutput(line string) DisplayEvent {
	return DisplayEvent{Type: EventRaw, Text: line}
}
