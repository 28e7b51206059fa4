package agent

// DisplayEventType tags which variant of DisplayEvent is populated.
type DisplayEventType string

const (
	EventSystemInit    DisplayEventType = "SystemInit"
	EventAssistantText DisplayEventType = "AssistantText"
	EventToolCall      DisplayEventType = "ToolCall"
	EventToolResult    DisplayEventType = "ToolResult"
	EventCompletion    DisplayEventType = "Completion"
	EventRaw           DisplayEventType = "Raw"
)

// DisplayEvent is the common, normalized shape every plugin's ParseOutput
// produces from its own streaming format (Claude's stream-json, Opencode's
// JSON objects, Gemini's plain text, ...). Plugins whose output is opaque
// pass the line through unchanged as EventRaw.
type DisplayEvent struct {
	Type DisplayEventType

	Model string // SystemInit

	Text string // AssistantText, Raw

	ToolCallID   string // ToolCall, ToolResult
	ToolName     string // ToolCall
	ToolInput    string // ToolCall
	ToolOutput   string // ToolResult
	ToolIsError  bool   // ToolResult

	DurationMs int64   // Completion
	CostUSD    float64 // Completion
}
