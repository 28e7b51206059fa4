package agent

import (
	"context"
	"encoding/json"
	"os/exec"
)

func init() {
	Register(opencodePlugin{})
}

type opencodePlugin struct{}

func (opencodePlugin) AgentType() Kind { return KindOpencode }

func (opencodePlugin) IsAvailable() bool {
	_, err := exec.LookPath("opencode")
	return err == nil
}

var opencodeFallbackModels = []ModelInfo{
	{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "anthropic"},
	{ID: "gpt-4o", Name: "Gpt 4o", Provider: "openai"},
}

func (opencodePlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return runListModels(KindOpencode, "opencode", []string{"models"}, opencodeFallbackModels), nil
}

func (opencodePlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"run", "--format", "json"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	args = append(args, spec.Prompt)

	cmd := exec.CommandContext(ctx, "opencode", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

// opencodeEvent mirrors the JSON-objects-per-line format Opencode streams.
type opencodeEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Tool    string `json:"tool,omitempty"`
	ID      string `json:"id,omitempty"`
	Input   string `json:"input,omitempty"`
	Output  string `json:"output,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

func (opencodePlugin) ParseOutput(line string) DisplayEvent {
	var evt opencodeEvent
	if err := json.Unmarshal([]byte(line), &evt); err != nil {
		return DisplayEvent{Type: EventRaw, Text: line}
	}

	switch evt.Type {
	case "text":
		return DisplayEvent{Type: EventAssistantText, Text: evt.Text}
	case "tool_call":
		return DisplayEvent{Type: EventToolCall, ToolCallID: evt.ID, ToolName: evt.Tool, ToolInput: evt.Input}
	case "tool_result":
		return DisplayEvent{Type: EventToolResult, ToolCallID: evt.ID, ToolOutput: evt.Output, ToolIsError: evt.IsError}
	default:
		return DisplayEvent{Type: EventRaw, Text: line}
	}
}
