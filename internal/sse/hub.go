package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/realtime"
)

// Client is one open event stream. Outbound is buffered; a client that
// cannot keep up drops events rather than blocking the hub.
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan realtime.TaskEvent
	done     chan struct{}
}

// Hub fans task events out to every connected stream. Events arrive either
// from the local notifier or from the cross-instance bus forwarder.
type Hub struct {
	mu      sync.RWMutex
	log     *logger.Logger
	clients map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:     log.With("component", "SSEHub"),
		clients: make(map[*Client]bool),
	}
}

func (hub *Hub) NewClient(userID uuid.UUID) *Client {
	client := &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan realtime.TaskEvent, 16),
		done:     make(chan struct{}),
	}

	hub.mu.Lock()
	hub.clients[client] = true
	hub.mu.Unlock()

	hub.log.Debug("SSE client connected", "clientID", client.ID, "userID", userID)
	return client
}

func (hub *Hub) Broadcast(event realtime.TaskEvent) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for c := range hub.clients {
		select {
		case c.Outbound <- event:
		default:
			hub.log.Warn("Dropping task event; outbound buffer full", "clientID", c.ID)
		}
	}
}

func (hub *Hub) CloseClient(client *Client) {
	hub.mu.Lock()
	if _, ok := hub.clients[client]; !ok {
		hub.mu.Unlock()
		return
	}
	delete(hub.clients, client)
	hub.mu.Unlock()

	close(client.done)
	close(client.Outbound)
	hub.log.Debug("SSE client disconnected", "clientID", client.ID)
}

func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-client.Outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(event)
			if err != nil {
				hub.log.Warn("Failed to marshal task event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\n", event.Type)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", string(raw))
			flusher.Flush()
		}
	}
}
