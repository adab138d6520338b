// ABOUTME: WebSocket feed of sync outcomes
// ABOUTME: Broadcasts every outcome as JSON and replays history to new subscribers
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/timesync-go/internal/logger"
	"github.com/Resonate-Protocol/timesync-go/pkg/syncclient"
)

// Message types sent on the feed
const (
	TypeHistory = "history"
	TypeOutcome = "outcome"
)

// FeedPath is where the websocket endpoint is mounted
const FeedPath = "/outcomes"

// Message is the envelope for every feed message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of subscribers and broadcasts outcomes to them
type Hub struct {
	history *syncclient.History

	clients   map[*websocket.Conn]bool
	mu        sync.Mutex
	broadcast chan []byte

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub creates a hub; history may be nil
func NewHub(history *syncclient.History) *Hub {
	return &Hub{
		history:   history,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// read-only feed for local tooling
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.WithComponent("monitor"),
	}
}

// Run delivers broadcasts until ctx is done, then closes every subscriber
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("Error writing to websocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an outcome for every subscriber. It never blocks.
func (h *Hub) Publish(o syncclient.Outcome) {
	data, err := json.Marshal(Message{Type: TypeOutcome, Data: o})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal outcome")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Msg("Broadcast channel is full, dropping outcome")
	}
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the subscriber.
// The history snapshot is written before registration so it always arrives first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upgrade websocket")
		return
	}

	h.mu.Lock()
	if err := h.sendHistory(conn); err != nil {
		h.mu.Unlock()
		h.log.Warn().Err(err).Msg("Failed to send history snapshot")
		conn.Close()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	h.log.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client registered")

	// read pump: only here to notice the client going away
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Msg("Unexpected websocket close")
				}
				return
			}
		}
	}()
}

func (h *Hub) sendHistory(conn *websocket.Conn) error {
	entries := []syncclient.Outcome{}
	if h.history != nil {
		entries = h.history.Entries()
	}
	return conn.WriteJSON(Message{Type: TypeHistory, Data: entries})
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		h.log.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("WebSocket client unregistered")
	}
}

// Serve runs an HTTP server exposing the feed on addr until ctx is done
func Serve(ctx context.Context, addr string, hub *Hub) error {
	mux := http.NewServeMux()
	mux.Handle(FeedPath, hub)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go hub.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	hub.log.Info().Str("addr", addr).Str("path", FeedPath).Msg("Outcome feed listening")

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
