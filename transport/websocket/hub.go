package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound messages buffered per client before it is dropped.
	sendBuffer = 256
)

// ErrNotConnected is returned by Emit for an unknown connection.
var ErrNotConnected = errors.New("connection not found")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from other origins
		return true
	},
}

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the lifecycle and inbound events of every connection.
// Messages from one connection are delivered in order.
type Handler interface {
	Connect(ctx context.Context, connID, token string) error
	Message(ctx context.Context, connID, event string, data json.RawMessage)
	Disconnect(ctx context.Context, connID string)
}

// Client represents a WebSocket client
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
}

// Hub owns the connections of one namespace and routes their events to a
// Handler
type Hub struct {
	namespace string
	handler   Handler

	mu      sync.RWMutex
	clients map[string]*Client

	// Unregister requests from clients
	unregister chan *Client

	ctx  context.Context
	done chan struct{}
}

// NewHub creates a hub. namespace prefixes the error events the hub sends
// on its own, such as a malformed frame.
func NewHub(namespace string, handler Handler) *Hub {
	return &Hub{
		namespace:  namespace,
		handler:    handler,
		clients:    make(map[string]*Client),
		unregister: make(chan *Client, 64),
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Run processes disconnects until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	defer close(h.done)

	for {
		select {
		case client := <-h.unregister:
			if h.unregisterClient(client) {
				h.handler.Disconnect(ctx, client.connID)
			}

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) context() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

// ServeWS upgrades the request, registers the client and hands it to the
// handler. A connection the handler rejects is closed after its pending
// pushes are flushed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		connID: uuid.NewString(),
	}
	h.registerClient(client)

	go client.writePump()

	if err := h.handler.Connect(h.context(), client.connID, token); err != nil {
		log.Printf("[WS] %s connection %s rejected: %v", h.namespace, client.connID, err)
		h.unregisterClient(client)
		return
	}

	go client.readPump()
}

// TokenFromRequest reads the access token from the token query parameter or
// a bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// Emit sends one event to a connection.
func (h *Hub) Emit(connID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.RUnlock()
		return ErrNotConnected
	}
	select {
	case client.send <- frame:
		h.mu.RUnlock()
		return nil
	default:
	}
	h.mu.RUnlock()

	// Client's send channel is full, drop it
	log.Printf("[WS] %s connection %s is not keeping up, closing", h.namespace, connID)
	h.drop(client)
	return ErrNotConnected
}

// drop queues a client for unregistration unless the hub has stopped.
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// registerClient adds a client
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.connID] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Client %s registered on %s (total clients: %d)", client.connID, h.namespace, total)
}

// unregisterClient removes a client and closes its send channel. It reports
// whether the client was still registered.
func (h *Hub) unregisterClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.connID]; !ok || current != client {
		return false
	}
	delete(h.clients, client.connID)
	close(client.send)

	log.Printf("Client %s unregistered from %s (remaining clients: %d)",
		client.connID, h.namespace, len(h.clients))
	return true
}

// readPump pumps messages from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			_ = c.hub.Emit(c.connID, c.hub.namespace+":error", map[string]string{"message": "malformed frame"})
			continue
		}
		c.hub.handler.Message(c.hub.context(), c.connID, msg.Event, msg.Data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per event so clients can decode each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
