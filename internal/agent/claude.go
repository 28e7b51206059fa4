package agent

import (
	"context"
	"encoding/json"
	"os/exec"

	"github.com/ralph-ui/ralph/internal/config"
)

func init() {
	Register(claudePlugin{})
}

type claudePlugin struct{}

func (claudePlugin) AgentType() Kind { return KindClaude }

func (claudePlugin) IsAvailable() bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

var claudeFallbackModels = []ModelInfo{
	{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Provider: "anthropic"},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: "anthropic"},
	{ID: "claude-haiku-4-20250514", Name: "Claude Haiku 4", Provider: "anthropic"},
}

func (claudePlugin) DiscoverModels(ctx context.Context) ([]ModelInfo, error) {
	return runListModels(KindClaude, "claude", []string{"models", "list", "--json"}, claudeFallbackModels), nil
}

// BuildCommand generalizes cmd/run.go's hard-coded
// `claude --print --dangerously-skip-permissions -p <prompt>` invocation
// into a plugin that also streams structured events and supports
// Claude-compatible alternative providers (see config.AltProviderPresets).
func (claudePlugin) BuildCommand(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	args := []string{"--print", "--output-format", "stream-json", "--dangerously-skip-permissions"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	for _, tool := range spec.DisableTools {
		args = append(args, "--disallowedTools", tool)
	}
	args = append(args, "-p", spec.Prompt)

	cmd := exec.CommandContext(ctx, "claude", args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = buildEnv(spec)
	return cmd, nil
}

// buildEnv starts from the process environment, layers in spec.EnvVars,
// and injects the alternative-provider preset named by
// spec.PluginConfig["provider"], if any.
func buildEnv(spec Spec) []string {
	base := map[string]string{}
	for k, v := range spec.EnvVars {
		base[k] = v
	}
	if providerKey := spec.PluginConfig["provider"]; providerKey != "" {
		if preset, ok := config.AltProviderPresets[providerKey]; ok {
			for k, v := range preset.EnvVars(spec.PluginConfig["auth_token"]) {
				base[k] = v
			}
		}
	}

	env := envWithOverrides(base)
	return env
}

// claudeStreamEvent mirrors the subset of Claude's stream-json object
// shapes this driver understands.
type claudeStreamEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Model   string `json:"model,omitempty"`

	Message *struct {
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text,omitempty"`
			ID    string          `json:"id,omitempty"`
			Name  string          `json:"name,omitempty"`
			Input json.RawMessage `json:"input,omitempty"`
		} `json:"content"`
	} `json:"message,omitempty"`

	DurationMs int64   `json:"duration_ms,omitempty"`
	CostUSD    float64 `json:"total_cost_usd,omitempty"`
	IsError    bool    `json:"is_error,omitempty"`
}

func (claudePlugin) ParseOutput(line string) DisplayEvent {
	var evt claudeStreamEvent
	if err := json.Unmarshal([]byte(line), &evt); err != nil {
		return DisplayEvent{Type: EventRaw, Text: line}
	}

	switch evt.Type {
	case "system":
		return DisplayEvent{Type: EventSystemInit, Model: evt.Model}
	case "assistant":
		if evt.Message != nil {
			for _, c := range evt.Message.Content {
				switch c.Type {
				case "text":
					return DisplayEvent{Type: EventAssistantText, Text: c.Text}
				case "tool_use":
					return DisplayEvent{Type: EventToolCall, ToolCallID: c.ID, ToolName: c.Name, ToolInput: string(c.Input)}
				}
			}
		}
		return DisplayEvent{Type: EventRaw, Text: line}
	case "user":
		if evt.Message != nil {
			for _, c := range evt.Message.Content {
				if c.Type == "tool_result" {
					return DisplayEvent{Type: EventToolResult, ToolCallID: c.ID, ToolOutput: c.Text}
				}
			}
		}
		return DisplayEvent{Type: EventRaw, Text: line}
	case "result":
		return DisplayEvent{Type: EventCompletion, DurationMs: evt.DurationMs, CostUSD: evt.CostUSD}
	default:
		return DisplayEvent{Type: EventRaw, Text: line}
	}
}
