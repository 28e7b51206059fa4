package ptyreg

import "encoding/json"

// ClientFrameType tags the shape of a text frame sent from the browser
// over the PTY WebSocket. Anything that doesn't parse as one of these is
// treated as raw bytes and written straight to the PTY, per spec.md §4.2 —
// this keeps the channel transparent for clients that send escape
// sequences directly.
type ClientFrameType string

const (
	FrameSetup  ClientFrameType = "setup"
	FrameResize ClientFrameType = "resize"
	FrameInput  ClientFrameType = "input"
)

// ClientFrame is the client->server schema. Setup carries Cols/Rows/Cwd;
// resize carries Cols/Rows; input carries Data.
type ClientFrame struct {
	Type ClientFrameType `json:"type"`
	Cols int             `json:"cols,omitempty"`
	Rows int             `json:"rows,omitempty"`
	Cwd  string          `json:"cwd,omitempty"`
	Data string          `json:"data,omitempty"`
}

// ParseClientFrame attempts to interpret raw as a ClientFrame. ok is false
// (and raw should be forwarded to the PTY verbatim) when raw isn't valid
// JSON or doesn't carry a recognized "type".
func ParseClientFrame(raw []byte) (ClientFrame, bool) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ClientFrame{}, false
	}
	switch f.Type {
	case FrameSetup, FrameResize, FrameInput:
		return f, true
	default:
		return ClientFrame{}, false
	}
}

// ServerFrameType tags the shape of a frame sent from server to client.
type ServerFrameType string

const (
	FrameSession ServerFrameType = "session"
	FrameReplay  ServerFrameType = "replay"
	FrameOutput  ServerFrameType = "output"
	FrameExit    ServerFrameType = "exit"
)

// ServerFrame is the server->client schema.
type ServerFrame struct {
	Type ServerFrameType `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SessionData is the payload of a "session" frame, sent once on creation.
type SessionData struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}
