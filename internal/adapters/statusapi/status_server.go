// Package statusapi implements the status/websocket surface (C15): a
// gorilla/mux HTTP API exposing the mood/epoch snapshot (/status) and
// Prometheus metrics (/metrics), and a gorilla/websocket endpoint (/ws)
// that pushes the same snapshot every 2 seconds (there is no registry
// dump and no per-transition event), adapted from
// the teacher's WSManager/broadcast-loop pattern (internal/adapters/web)
// without its multi-user auth layer — out of scope here, single operator
// per device.
package statusapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// StatusSource is the read-only view the status layer needs from the engine.
type StatusSource interface {
	MoodSnapshot() domain.MoodSnapshot
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts mood snapshots to connected websocket clients on a fixed
// tick, mirroring the teacher's processAndBroadcast loop.
type Hub struct {
	engine StatusSource

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer wires the gorilla/mux router for the status API and websocket
// feed over engine.
func NewServer(engine StatusSource) (*mux.Router, *Hub) {
	hub := &Hub{engine: engine, clients: make(map[*websocket.Conn]bool)}

	r := mux.NewRouter()
	r.HandleFunc("/status", hub.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws", hub.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())
	return r, hub
}

// Start launches the periodic broadcast loop until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	go h.broadcastLoop(ctx)
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.MoodSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("statusapi: websocket upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer conn.Close()
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(h.engine.MoodSnapshot())
		}
	}
}

func (h *Hub) broadcast(snap domain.MoodSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(snap); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
