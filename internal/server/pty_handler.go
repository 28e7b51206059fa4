package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ralph-ui/ralph/internal/ptyreg"
)

const ptyWriteWait = 10 * time.Second

// handlePtyNew upgrades to a WebSocket, spawns a fresh PTY session for the
// {terminal_id} path variable, and relays frames bidirectionally until
// either side disconnects, per spec.md §4.2/§6.
func (s *Server) handlePtyNew(w http.ResponseWriter, r *http.Request) {
	terminalID := mux.Vars(r)["terminal_id"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	setup, ok := ptyreg.ParseClientFrame(raw)
	if !ok || setup.Type != ptyreg.FrameSetup {
		writeServerFrame(conn, ptyreg.FrameExit, map[string]string{"error": "expected setup frame"})
		return
	}

	sess, err := s.PtyRegistry.Create(terminalID, setup.Cols, setup.Rows, setup.Cwd)
	if err != nil {
		writeServerFrame(conn, ptyreg.FrameExit, map[string]string{"error": err.Error()})
		return
	}

	data, _ := json.Marshal(ptyreg.SessionData{SessionID: sess.ID, TerminalID: sess.TerminalID})
	if err := writeServerFrame(conn, ptyreg.FrameSession, data); err != nil {
		return
	}

	s.servePty(conn, sess)
}

// handlePtyReconnect upgrades to a WebSocket, resumes an existing PTY
// session, replays its ring buffer, and then relays live frames.
func (s *Server) handlePtyReconnect(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess, err := s.PtyRegistry.Reconnect(sessionID)
	if err != nil {
		writeServerFrame(conn, ptyreg.FrameExit, map[string]string{"error": err.Error()})
		return
	}

	replay, _ := json.Marshal(string(sess.Replay()))
	if err := writeServerFrame(conn, ptyreg.FrameReplay, replay); err != nil {
		return
	}

	s.servePty(conn, sess)
}

// servePty pumps PTY output to the client and client frames to the PTY
// until either the connection or the child process ends.
func (s *Server) servePty(conn *websocket.Conn, sess *ptyreg.Session) {
	out, cancel := sess.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := s.PtyRegistry.HandleRawFrame(sess.ID, raw); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				writeServerFrame(conn, ptyreg.FrameExit, nil)
				return
			}
			data, _ := json.Marshal(string(chunk))
			if err := writeServerFrame(conn, ptyreg.FrameOutput, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// writeServerFrame marshals data (nil, []byte/json.RawMessage already
// encoded, or any other JSON-able value) into a ServerFrame and writes it.
func writeServerFrame(conn *websocket.Conn, typ ptyreg.ServerFrameType, data any) error {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}
	conn.SetWriteDeadline(time.Now().Add(ptyWriteWait))
	return conn.WriteJSON(ptyreg.ServerFrame{Type: typ, Data: raw})
}
