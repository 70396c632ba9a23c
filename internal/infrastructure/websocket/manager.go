package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"unimarket/pkg/logger"
)

// Client represents one WebSocket connection bound to a user. A user may
// hold several clients at once (multiple tabs/devices).
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager owns the session registry (user -> active connections) and the
// room membership map. All access to either goes through the Manager;
// business logic never reads them directly.
type Manager struct {
	sessions map[string]map[*Client]bool
	rooms    map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client

	mutex sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions:   make(map[string]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the registration loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.addClient(client)
				logger.Info("Client registered: user=%s", client.UserID)

			case client := <-m.Unregister:
				m.removeClient(client)
				logger.Info("Client unregistered: user=%s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) addClient(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.sessions[client.UserID] == nil {
		m.sessions[client.UserID] = make(map[*Client]bool)
	}
	m.sessions[client.UserID][client] = true
}

func (m *Manager) removeClient(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if clients, ok := m.sessions[client.UserID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.Send)
		}
		if len(clients) == 0 {
			delete(m.sessions, client.UserID)
		}
	}

	for room, members := range m.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

// JoinRoom subscribes a connection to a room. Room names are canonical
// pair keys, so both participants compute the same name independently.
func (m *Manager) JoinRoom(room string, client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.rooms[room] == nil {
		m.rooms[room] = make(map[*Client]bool)
	}
	m.rooms[room][client] = true
}

func (m *Manager) LeaveRoom(room string, client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if members, ok := m.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

// BroadcastToRoom delivers a payload to every connection in the room,
// optionally excluding one user (typically the sender, which already holds
// the message locally).
func (m *Manager) BroadcastToRoom(room string, payload []byte, excludeUserID string) {
	m.mutex.RLock()
	var targets []*Client
	for client := range m.rooms[room] {
		if excludeUserID != "" && client.UserID == excludeUserID {
			continue
		}
		targets = append(targets, client)
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		m.deliver(client, payload)
	}
}

// SendToUser delivers a payload to every connection of a user, regardless
// of room membership. Returns false if the user has no live connection.
func (m *Manager) SendToUser(userID string, payload []byte) bool {
	m.mutex.RLock()
	var targets []*Client
	for client := range m.sessions[userID] {
		targets = append(targets, client)
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		m.deliver(client, payload)
	}
	return len(targets) > 0
}

// IsUserInRoom reports whether any of the user's connections is currently
// subscribed to the room.
func (m *Manager) IsUserInRoom(room, userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for client := range m.rooms[room] {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

func (m *Manager) deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		// Slow consumer; drop the connection rather than block broadcasts.
		logger.Warn("Send buffer full for user %s, dropping connection", client.UserID)
		m.removeClient(client)
	}
}

// ReadPump reads messages from the connection and dispatches them to the
// protocol handler until the peer disconnects. Disconnection only removes
// registry entries; stored data is never touched.
func (c *Client) ReadPump(m *Manager, h *ProtocolHandler) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error for user %s: %v", c.UserID, err)
			}
			break
		}
		h.HandleClientMessage(c, payload)
	}
}

// WritePump sends queued payloads to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		payload, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Error("WebSocket write error for user %s: %v", c.UserID, err)
			return
		}
	}
}
