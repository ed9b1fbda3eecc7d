package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Constants for hub configuration
const (
	MaxClients         = 500
	WriteTimeout       = 10 * time.Second
	PongTimeout        = 60 * time.Second
	PingInterval       = 30 * time.Second
	SendBufferSize     = 256
	BroadcastQueueSize = 512
)

// Publisher pushes a payload to every connection joined to a destination
// channel. Publish failures are logged, never surfaced to the caller; the
// poll loops must keep ticking regardless of a slow or gone client.
type Publisher interface {
	Publish(destination string, payload interface{})
}

// UserAlertChannel is the per-user destination for alert trigger events. All
// of a user's open connections receive the same event.
func UserAlertChannel(userID uint) string {
	return fmt.Sprintf("alerts.%d", userID)
}

// UserTradeChannel is the per-user destination for automated trade results.
func UserTradeChannel(userID uint) string {
	return fmt.Sprintf("trades.%d", userID)
}

// Message is the wire envelope for everything pushed over a websocket.
type Message struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
	Time    string      `json:"time"`
}

// Hub owns all websocket connections and routes published messages to the
// connections joined to each destination channel.
type Hub struct {
	clients    map[*Client]bool
	byConn     map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader

	// onConnectionClosed tears down every subscription owned by the
	// connection; set by main during wiring.
	onConnectionClosed func(connectionID string)
}

// NewHub creates a hub. Call Run in a goroutine to start routing.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byConn:     make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, BroadcastQueueSize),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// OnConnectionClosed registers the cleanup hook invoked when a connection
// goes away for any reason.
func (h *Hub) OnConnectionClosed(fn func(connectionID string)) {
	h.onConnectionClosed = fn
}

// Run is the hub loop: registration, teardown and fan-out.
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxClients {
				h.mu.Unlock()
				client.close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxClients)
				continue
			}
			h.clients[client] = true
			h.byConn[client.ConnectionID] = client
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (conn=%s user=%d). Total clients: %d",
				client.ConnectionID, client.UserID, count)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Shutdown closes the hub loop and every live connection.
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]bool)
	h.byConn = make(map[string]*Client)
	h.mu.Unlock()

	log.Println("WebSocket hub shut down")
}

// Publish queues a payload for every connection joined to the destination.
// A full queue drops the message with a log line rather than blocking the
// calling poll loop.
func (h *Hub) Publish(destination string, payload interface{}) {
	msg := Message{
		Channel: destination,
		Data:    payload,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("Broadcast queue full, dropping message for %s", destination)
	}
}

// Join subscribes a connection to a destination channel.
func (h *Hub) Join(connectionID, channel string) error {
	h.mu.RLock()
	client, ok := h.byConn[connectionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown connection %s", connectionID)
	}
	client.join(channel)
	return nil
}

// Leave unsubscribes a connection from a destination channel.
func (h *Hub) Leave(connectionID, channel string) {
	h.mu.RLock()
	client, ok := h.byConn[connectionID]
	h.mu.RUnlock()
	if ok {
		client.leave(channel)
	}
}

// HasConnection reports whether the connection is currently registered.
func (h *Hub) HasConnection(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byConn[connectionID]
	return ok
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a websocket connection owned by the
// given user and returns its connection ID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()
	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ConnectionID: uuid.NewString(),
		UserID:       userID,
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, SendBufferSize),
		channels:     make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	// Tell the client its connection ID so subscribe requests can carry it.
	client.enqueue(Message{
		Channel: "system",
		Data:    map[string]string{"event": "connected", "connection_id": client.ConnectionID},
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		delete(h.byConn, client.ConnectionID)
		client.close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	log.Printf("WebSocket client disconnected (conn=%s). Total clients: %d", client.ConnectionID, count)
	if h.onConnectionClosed != nil {
		h.onConnectionClosed(client.ConnectionID)
	}
}

func (h *Hub) deliver(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message for %s: %v", msg.Channel, err)
		return
	}

	h.mu.RLock()
	var dead []*Client
	for client := range h.clients {
		if !client.joined(msg.Channel) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client buffer full, mark for removal
			dead = append(dead, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dead {
		h.removeClient(client)
	}
}
