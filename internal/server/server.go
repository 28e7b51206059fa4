// Package server exposes the HTTP/WebSocket boundary of spec.md §6:
// command RPC, an event stream, and PTY terminal sockets, routed with
// gorilla/mux the way
// nickmisasi-mattermost-plugin-cursor/server/api.go's initRouter builds
// an authed subrouter, and upgraded to gorilla/websocket connections the
// way the pack's websocket-based agent UIs multiplex PTY frames.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ralph-ui/ralph/internal/events"
	"github.com/ralph-ui/ralph/internal/ptyreg"
)

// Version is reported by /api/version. Set by the main package at
// build time (see cmd/root.go's existing version variable convention).
var Version = "dev"

// ReleaseURL is reported alongside Version by /api/version.
var ReleaseURL = "https://github.com/ralph-ui/ralph/releases"

// InvokeHandler executes one named command with its argument object and
// returns a JSON-able result, or an error. Registered per command name
// via Server.HandleInvoke.
type InvokeHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Server is the HTTP/WebSocket boundary described by spec.md §6: a
// single bearer-token check is the only auth, per the documented
// non-goal on richer auth/CORS.
type Server struct {
	Token       string
	Broadcaster events.Broadcaster
	PtyRegistry *ptyreg.Registry

	router   *mux.Router
	upgrader websocket.Upgrader
	invokers map[string]InvokeHandler
	httpSrv  *http.Server
}

// New builds a Server with every route of spec.md §6 wired, requiring
// bearer auth on every route but /health when token is non-empty. With an
// empty token every route is served without auth.
func New(token string, broadcaster events.Broadcaster, reg *ptyreg.Registry) *Server {
	s := &Server{
		Token:       token,
		Broadcaster: broadcaster,
		PtyRegistry: reg,
		invokers:    make(map[string]InvokeHandler),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	return s
}

// HandleInvoke registers the handler for one /api/invoke command name.
func (s *Server) HandleInvoke(cmd string, handler InvokeHandler) {
	s.invokers[cmd] = handler
}

func (s *Server) buildRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	authed := router.NewRoute().Subrouter()
	authed.Use(s.requireBearerToken)

	authed.HandleFunc("/api/version", s.handleVersion).Methods(http.MethodGet)
	authed.HandleFunc("/api/invoke", s.handleInvoke).Methods(http.MethodPost)
	authed.HandleFunc("/ws/events", s.handleEventStream)
	authed.HandleFunc("/ws/pty/{terminal_id}", s.handlePtyNew)
	authed.HandleFunc("/ws/pty/{terminal_id}/reconnect/{session_id}", s.handlePtyReconnect)

	return router
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requireBearerToken rejects any request whose Authorization header
// doesn't carry the configured bearer token, or whose ?token= query
// param doesn't match — WebSocket upgrade requests can't set headers
// from a browser, so both forms are accepted per spec.md §6's `?token=`
// convention on the ws routes.
func (s *Server) requireBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.URL.Query().Get("token")
		if got == "" {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				got = auth[len(prefix):]
			}
		}
		if got != s.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

type versionResponse struct {
	Version    string `json:"version"`
	ReleaseURL string `json:"release_url"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: Version, ReleaseURL: ReleaseURL})
}

type invokeRequest struct {
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	handler, ok := s.invokers[req.Cmd]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown command %q", req.Cmd), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), req.Args)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Shutdown gracefully stops the underlying HTTP server, if Listen has
// been called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Listen starts serving on addr, blocking until the context is
// cancelled or ListenAndServe returns a non-shutdown error.
func (s *Server) Listen(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
