package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"courtwatch/internal/monitor"
	"courtwatch/internal/pkg/models"
)

// WSMessage is the envelope pushed to websocket clients.
type WSMessage struct {
	Type  string `json:"type"`
	Event any    `json:"event,omitempty"`
	Count int    `json:"count,omitempty"`
}

// Client is one connected websocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans change events out to connected websocket clients. It doubles as a
// cycle subscriber so events reach the browser in the same cycle they were
// detected.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WSMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

var _ monitor.Subscriber = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Name() string { return "websocket" }

// OnCycleComplete pushes each change event, then a cycle marker so clients
// can tell a quiet cycle from a stalled connection.
func (h *Hub) OnCycleComplete(_ []models.MatchRecord, events []models.ChangeEvent) {
	for _, ev := range events {
		h.publish(&WSMessage{Type: string(ev.Kind), Event: ev})
	}
	h.publish(&WSMessage{Type: "cycle_complete", Count: len(events)})
}

func (h *Hub) publish(msg *WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("Websocket broadcast buffer full, dropping message", "type", msg.Type)
	}
}

// Run owns the client set. It runs until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("Websocket client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("Websocket client unregistered", "total_clients", total)

		case message := <-h.broadcast:
			data := marshalMessage(message)
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func marshalMessage(message *WSMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		slog.Error("Failed to marshal websocket message", "error", err)
		return []byte("{}")
	}
	return data
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from arbitrary hosts in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and registers the client.
func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound frames; it exists to detect disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("Websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
