// Package server exposes the local HTTP surface: a websocket feed of
// live quality snapshots for the capture UI and a health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visiona/studio-capture/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is served to the local capture UI only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server broadcasts quality snapshots over websockets. It implements
// the studio's SnapshotSink.
type Server struct {
	addr string
	http *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// New creates a server bound to addr.
func New(addr string) *Server {
	s := &Server{
		addr:    addr,
		clients: make(map[*websocket.Conn]chan []byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/quality", s.handleQualityFeed)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("quality feed listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("quality feed server stopped", "error", err)
		}
	}()
}

// Shutdown stops the server and closes all feed connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()

	return s.http.Shutdown(ctx)
}

// PublishSnapshot fans a snapshot out to every connected feed client.
// Slow clients are dropped rather than allowed to back up the
// analysis loop.
func (s *Server) PublishSnapshot(snap types.CompositeQualitySnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Warn("snapshot marshal failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- payload:
		default:
			slog.Warn("dropping slow quality feed client", "remote", conn.RemoteAddr())
			close(ch)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleQualityFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	slog.Info("quality feed client connected", "remote", conn.RemoteAddr())

	// Reader goroutine exists only to notice the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(conn)
				return
			}
		}
	}()

	for payload := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.dropClient(conn)
			return
		}
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[conn]; ok {
		close(ch)
		delete(s.clients, conn)
	}
	conn.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.clientCount(),
	})
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
