// Package websocket provides the live channel used by the search input. Clients
// receive saved search changes from the event bus and can ask the server to
// format or edit the query they are typing.
package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"telemetry_search/events"
	"telemetry_search/metrics"
	"telemetry_search/query"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	// MessageTypeSavedSearchCreated is sent when a saved search is created.
	MessageTypeSavedSearchCreated MessageType = "saved_search_created"
	// MessageTypeSavedSearchUpdated is sent when a saved search changes.
	MessageTypeSavedSearchUpdated MessageType = "saved_search_updated"
	// MessageTypeSavedSearchDeleted is sent when a saved search is removed.
	MessageTypeSavedSearchDeleted MessageType = "saved_search_deleted"
	// MessageTypeQueryResult answers a format or edit request.
	MessageTypeQueryResult MessageType = "query_result"
	// MessageTypeError answers a request that could not be processed.
	MessageTypeError MessageType = "error"
)

// RequestType is the kind of request a client sends.
type RequestType string

const (
	RequestFormat RequestType = "format"
	RequestEdit   RequestType = "edit"
)

// Request is a message sent by a client.
type Request struct {
	Type  RequestType  `json:"type"`
	ID    string       `json:"id,omitempty"` // Echoed in the reply
	Query string       `json:"query"`
	Edits []query.Edit `json:"edits,omitempty"`
}

// Message represents a WebSocket message sent to clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp in milliseconds
	Payload   interface{} `json:"payload"`
}

// SavedSearchPayload describes a saved search change.
type SavedSearchPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
	Owner string `json:"owner,omitempty"`
	Actor string `json:"actor,omitempty"`
}

// QueryResultPayload answers a format or edit request.
type QueryResultPayload struct {
	RequestID string        `json:"request_id,omitempty"`
	Result    *query.Result `json:"result"`
}

// ErrorPayload describes a rejected request.
type ErrorPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// reply is a message addressed to a single client.
type reply struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	replies    chan reply
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	wg         sync.WaitGroup

	maxQueryLength int

	// Event bus subscription
	eventBus      *events.Bus
	subscriptions []*events.Subscription
}

// NewHub creates a new WebSocket hub. Requests with query text longer than
// maxQueryLength bytes are rejected; zero disables the check.
func NewHub(eventBus *events.Bus, maxQueryLength int) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan []byte, 256),
		replies:        make(chan reply, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		stopCh:         make(chan struct{}),
		maxQueryLength: maxQueryLength,
		eventBus:       eventBus,
	}
}

// Start begins the hub's main loop.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	h.subscribeToEvents()

	h.wg.Add(1)
	go h.run()

	log.Printf("WebSocket hub started")
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	for _, sub := range h.subscriptions {
		sub.Unsubscribe()
	}
	h.subscriptions = nil

	close(h.stopCh)
	h.wg.Wait()

	log.Printf("WebSocket hub stopped")
}

var eventMessageTypes = map[events.EventType]MessageType{
	events.SavedSearchCreated: MessageTypeSavedSearchCreated,
	events.SavedSearchUpdated: MessageTypeSavedSearchUpdated,
	events.SavedSearchDeleted: MessageTypeSavedSearchDeleted,
}

// subscribeToEvents forwards saved search events to every client.
func (h *Hub) subscribeToEvents() {
	if h.eventBus == nil {
		return
	}
	h.subscriptions = h.eventBus.SubscribeAll(func(e events.Event) {
		evt, ok := e.(*events.SavedSearchEvent)
		if !ok {
			return
		}
		h.broadcastMessage(Message{
			Type:      eventMessageTypes[evt.Type()],
			Timestamp: evt.Timestamp().UnixMilli(),
			Payload: SavedSearchPayload{
				ID:    evt.ID,
				Name:  evt.Name,
				Query: evt.Query,
				Owner: evt.Owner,
				Actor: evt.Actor,
			},
		})
	})
}

// broadcastMessage serializes and broadcasts a message to all clients.
func (h *Hub) broadcastMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket: failed to marshal message: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Printf("WebSocket: broadcast channel full, dropping message")
	}
}

// sendTo queues a message for one client. The hub loop drops it if the
// client has gone away in the meantime.
func (h *Hub) sendTo(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket: failed to marshal reply: %v", err)
		return
	}

	select {
	case h.replies <- reply{client: c, data: data}:
	case <-h.stopCh:
	}
}

// run is the main hub loop.
func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopCh:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket: client connected (total: %d)", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket: client disconnected (total: %d)", clientCount)

		case r := <-h.replies:
			h.mu.RLock()
			if h.clients[r.client] {
				select {
				case r.client.send <- r.data:
				default:
					log.Printf("WebSocket: client buffer full, dropping reply")
				}
			}
			h.mu.RUnlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, close connection
					go h.dropClient(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// dropClient unregisters a client that cannot keep up. It gives up once the
// hub stops, since run no longer reads unregister then.
func (h *Hub) dropClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopCh:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns an HTTP handler for WebSocket connections.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket: upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:  h,
			conn: conn,
			send: make(chan []byte, 256),
		}

		h.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// handleRequest answers one client request.
func (h *Hub) handleRequest(c *Client, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(c, "", fmt.Sprintf("invalid request: %v", err))
		return
	}

	result, err := h.process(req)
	if err != nil {
		h.sendError(c, req.ID, err.Error())
		return
	}

	metrics.ObserveResult("ws", string(req.Type), result)
	h.sendTo(c, Message{
		Type:      MessageTypeQueryResult,
		Timestamp: time.Now().UnixMilli(),
		Payload:   QueryResultPayload{RequestID: req.ID, Result: result},
	})
}

// process runs a request against the query engine.
func (h *Hub) process(req Request) (*query.Result, error) {
	if h.maxQueryLength > 0 && len(req.Query) > h.maxQueryLength {
		return nil, fmt.Errorf("query exceeds %d bytes", h.maxQueryLength)
	}

	switch req.Type {
	case RequestFormat:
		return query.Compile(req.Query), nil
	case RequestEdit:
		expr := query.Parse(req.Query)
		if err := expr.Apply(req.Edits...); err != nil {
			metrics.ObserveEditError()
			return nil, err
		}
		return query.Summarize(expr), nil
	default:
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
}

func (h *Hub) sendError(c *Client, requestID, message string) {
	h.sendTo(c, Message{
		Type:      MessageTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload:   ErrorPayload{RequestID: requestID, Error: message},
	})
}

// readPump reads client requests until the connection closes.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
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
				log.Printf("WebSocket: read error: %v", err)
			}
			break
		}
		c.hub.handleRequest(c, data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
