package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vnkhanh/scholar-ai-backend/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub fans messages out to websocket listeners: per-upload listeners keyed
// by upload id, and global listeners of guide list changes.
type Hub struct {
	clients       map[string]map[*websocket.Conn]*Client
	globalClients map[*websocket.Conn]*Client
	mu            sync.RWMutex
	log           *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]map[*websocket.Conn]*Client),
		globalClients: make(map[*websocket.Conn]*Client),
		log:           logger.OrNop(log),
	}
}

// UploadStatusUpdate is pushed to listeners of one upload.
type UploadStatusUpdate struct {
	UploadID string `json:"upload_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

func (h *Hub) Register(uploadID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[uploadID]; !ok {
		h.clients[uploadID] = make(map[*websocket.Conn]*Client)
	}
	client := &Client{Conn: conn, Send: make(chan []byte, sendBuffer)}
	h.clients[uploadID][conn] = client
	return client
}

func (h *Hub) RegisterGlobal(conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	client := &Client{Conn: conn, Send: make(chan []byte, sendBuffer)}
	h.globalClients[conn] = client
	return client
}

func (h *Hub) Unregister(uploadID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[uploadID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.clients, uploadID)
		}
	}
}

func (h *Hub) UnregisterGlobal(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.globalClients[conn]; ok {
		close(client.Send)
		delete(h.globalClients, conn)
	}
}

// Broadcast drops the message for clients whose buffer is full.
func (h *Hub) Broadcast(uploadID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[uploadID] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

func (h *Hub) BroadcastGlobal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.globalClients {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// UploadStatus implements services.Notifier. Uploads without an id have no
// listeners.
func (h *Hub) UploadStatus(uploadID, status string, progress int, errMsg string) {
	if uploadID == "" {
		return
	}
	data, err := json.Marshal(UploadStatusUpdate{
		UploadID: uploadID,
		Status:   status,
		Progress: progress,
		Error:    errMsg,
	})
	if err != nil {
		h.log.Warn("marshal upload status", "error", err)
		return
	}
	h.Broadcast(uploadID, data)
}

// GuidesChanged implements services.Notifier.
func (h *Hub) GuidesChanged() {
	h.BroadcastGlobal([]byte(`{"type":"guide_list_changed"}`))
}

type Stats struct {
	UploadListeners int `json:"upload_listeners"`
	GlobalListeners int `json:"global_listeners"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return Stats{UploadListeners: n, GlobalListeners: len(h.globalClients)}
}

// writePump drains client.Send until it is closed by Unregister and keeps
// the connection alive with pings.
func writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the peer goes away. Incoming messages are ignored.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
