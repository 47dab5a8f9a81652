// Package ws streams conversation events to admin dashboards over websockets.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"sportsreport-bot/internal/models"
)

const (
	EventDraftSaved          = "draft_saved"
	EventSubscriberCommitted = "subscriber_committed"
	EventSubscriberUpdated   = "subscriber_updated"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected dashboard.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every registered client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts for the life of the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client unregistered")
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BroadcastEvent queues an event for every client. Events are dropped when
// the queue is full so a slow hub never stalls a conversation.
func (h *Hub) BroadcastEvent(eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("marshal websocket event", "type", eventType, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("websocket queue full, dropping event", "type", eventType)
	}
}

type draftEvent struct {
	SenderID     string       `json:"sender_id"`
	Phase        models.Phase `json:"phase"`
	ChildName    string       `json:"child_name,omitempty"`
	SubscriberID string       `json:"subscriber_id,omitempty"`
	Version      int64        `json:"version"`
}

func (h *Hub) NotifyDraft(d *models.Draft) {
	h.BroadcastEvent(EventDraftSaved, draftEvent{
		SenderID:     d.SenderID,
		Phase:        d.Phase,
		ChildName:    d.ChildName,
		SubscriberID: d.SubscriberID,
		Version:      d.Version,
	})
}

// subscriberEvent puts back the owning number, which a subscriber's public
// JSON leaves out, for the operator feed.
type subscriberEvent struct {
	*models.Subscriber
	SenderID string `json:"sender_id"`
}

func (h *Hub) NotifyCommitted(sub *models.Subscriber) {
	h.BroadcastEvent(EventSubscriberCommitted, subscriberEvent{Subscriber: sub, SenderID: sub.SenderID})
}

func (h *Hub) NotifyUpdated(sub *models.Subscriber) {
	h.BroadcastEvent(EventSubscriberUpdated, subscriberEvent{Subscriber: sub, SenderID: sub.SenderID})
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "error", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Clients only send control frames; reading detects disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
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
