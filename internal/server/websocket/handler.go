package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
	"github.com/repod-io/repod/internal/hub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Send buffer size per client.
	sendBufferSize = 1024

	// Application-level heartbeat interval. Sent as a JSON event (not a
	// WebSocket ping) for client-side monitoring.
	heartbeatInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds to localhost by default; origin checks are left
		// to a fronting proxy when exposed.
		return true
	},
}

// RepoCounter reports how many repositories are registered, for heartbeats.
type RepoCounter interface {
	IDs() []string
}

// clientCommand is the JSON shape of incoming client messages.
type clientCommand struct {
	Action string `json:"action"` // subscribe, unsubscribe, subscribe_all
	RepoID string `json:"repo_id,omitempty"`
}

// Handler accepts WebSocket connections and bridges them to the event hub.
// Each client gets a repository filter it can adjust with subscribe commands;
// a client with no filter receives events from every repository.
type Handler struct {
	hub   ports.EventHub
	repos RepoCounter

	mu      sync.RWMutex
	clients map[string]*Client
	filters map[string]*hub.FilteredSubscriber

	heartbeatDone chan struct{}
	heartbeatSeq  int64
	startTime     time.Time
	stopOnce      sync.Once
}

// NewHandler creates a new WebSocket handler.
func NewHandler(eventHub ports.EventHub, repos RepoCounter) *Handler {
	h := &Handler{
		hub:           eventHub,
		repos:         repos,
		clients:       make(map[string]*Client),
		filters:       make(map[string]*hub.FilteredSubscriber),
		heartbeatDone: make(chan struct{}),
		startTime:     time.Now(),
	}
	go h.heartbeatLoop()
	return h
}

// ServeHTTP upgrades the request and registers the client with the hub.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, h.handleCommand, func(id string) {
		if h.hub != nil {
			h.hub.Unsubscribe(id)
		}
		h.removeClient(id)
	})

	filtered := hub.NewFilteredSubscriber(NewClientSubscriber(client))

	h.mu.Lock()
	h.clients[client.ID()] = client
	h.filters[client.ID()] = filtered
	h.mu.Unlock()

	if h.hub != nil {
		h.hub.Subscribe(filtered)
	}

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("client connected")

	client.Start()
}

// handleCommand processes an incoming client message.
func (h *Handler) handleCommand(clientID string, message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Debug().Err(err).Str("client_id", clientID).Msg("invalid client command")
		h.sendError(clientID, "invalid_command", "message is not valid JSON")
		return
	}

	h.mu.RLock()
	filtered := h.filters[clientID]
	h.mu.RUnlock()
	if filtered == nil {
		return
	}

	switch cmd.Action {
	case "subscribe":
		if cmd.RepoID == "" {
			h.sendError(clientID, "invalid_command", "subscribe requires repo_id")
			return
		}
		filtered.SubscribeRepo(cmd.RepoID)
	case "unsubscribe":
		if cmd.RepoID == "" {
			h.sendError(clientID, "invalid_command", "unsubscribe requires repo_id")
			return
		}
		filtered.UnsubscribeRepo(cmd.RepoID)
	case "subscribe_all":
		filtered.SubscribeAll()
	default:
		h.sendError(clientID, "unknown_action", "action must be subscribe, unsubscribe, or subscribe_all")
	}
}

func (h *Handler) sendError(clientID, code, message string) {
	h.mu.RLock()
	client := h.clients[clientID]
	h.mu.RUnlock()
	if client == nil {
		return
	}

	data, err := events.NewErrorEvent(code, message).ToJSON()
	if err != nil {
		return
	}
	client.Send(data)
}

// removeClient removes a client from the handler.
func (h *Handler) removeClient(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	delete(h.filters, id)
	h.mu.Unlock()
	log.Info().Str("client_id", id).Msg("client disconnected")
}

// Broadcast sends a message to all connected clients.
func (h *Handler) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.Send(message)
	}
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes all client connections and stops the heartbeat loop.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.heartbeatDone)
	})

	h.mu.Lock()
	for _, client := range h.clients {
		client.Close()
	}
	h.clients = make(map[string]*Client)
	h.filters = make(map[string]*hub.FilteredSubscriber)
	h.mu.Unlock()
}

// heartbeatLoop broadcasts periodic heartbeat events to all connected clients.
func (h *Handler) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.heartbeatDone:
			return
		case <-ticker.C:
			h.broadcastHeartbeat()
		}
	}
}

func (h *Handler) broadcastHeartbeat() {
	if h.ClientCount() == 0 {
		return
	}

	repoCount := 0
	if h.repos != nil {
		repoCount = len(h.repos.IDs())
	}

	seq := atomic.AddInt64(&h.heartbeatSeq, 1)
	heartbeat := events.NewHeartbeatEvent(seq, repoCount, int64(time.Since(h.startTime).Seconds()))

	data, err := heartbeat.ToJSON()
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize heartbeat")
		return
	}

	h.Broadcast(data)
}
