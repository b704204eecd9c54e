package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/christopherjohns/roomchat/internal/message"
	"github.com/christopherjohns/roomchat/internal/user"
	"nhooyr.io/websocket"
)

// Client represents a connected WebSocket.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	connID     string
	remoteAddr string
}

// ConnID returns the identifier the registry knows this client by.
func (c *Client) ConnID() string {
	return c.connID
}

// Members resolves which connections belong to a room.
type Members interface {
	UsersInRoom(room string) []user.User
}

// Hub routes events to connected clients. Room membership is not stored
// here: every broadcast asks the registry who is in the room right now.
type Hub struct {
	members Members
	conns   *ConnManager
	logger  *slog.Logger
}

// NewHub creates a Hub that resolves rooms through members.
func NewHub(members Members, logger *slog.Logger, opts ...ConnManagerOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]ConnManagerOption{WithConnLogger(logger)}, opts...)
	return &Hub{
		members: members,
		conns:   NewConnManager(opts...),
		logger:  logger,
	}
}

// ConnMgr returns the connection manager for this hub.
func (h *Hub) ConnMgr() *ConnManager {
	return h.conns
}

// Envelope is the JSON frame exchanged over the socket. ID is echoed back
// verbatim in the matching ack so clients can pair requests with replies.
type Envelope struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ack is the payload of an ack frame. Exactly one of Error or Status is set
// when the event produced one.
type Ack struct {
	Error  string `json:"error,omitempty"`
	Status string `json:"status,omitempty"`
}

// addClient registers c and starts its write pump. The returned context is
// already done when the connection was refused.
func (h *Hub) addClient(c *Client) context.Context {
	return h.conns.Add(c)
}

// removeClient unregisters c and stops its write pump.
func (h *Hub) removeClient(c *Client) {
	h.conns.Remove(c)
}

func (h *Hub) client(connID string) *Client {
	return h.conns.Lookup(connID)
}

// BroadcastToRoom queues event for every connection registered in room,
// skipping exclude. Delivery is fire-and-forget: a closed or saturated
// recipient loses that one frame and the caller is not told.
func (h *Hub) BroadcastToRoom(room string, event message.Event, payload any, exclude string) {
	data, err := encode(string(event), nil, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "event", event, "error", err)
		return
	}

	sent := 0
	for _, u := range h.members.UsersInRoom(room) {
		if u.ConnID == exclude {
			continue
		}
		c := h.client(u.ConnID)
		if c == nil {
			continue
		}
		if h.conns.Send(c, data) {
			sent++
		}
	}
	h.logger.Debug("broadcast", "room", room, "event", event, "recipients", sent)
}

// SendToConnection queues event for a single connection and reports whether
// it was queued.
func (h *Hub) SendToConnection(connID string, event message.Event, payload any) bool {
	c := h.client(connID)
	if c == nil {
		return false
	}
	data, err := encode(string(event), nil, payload)
	if err != nil {
		h.logger.Error("failed to encode message", "event", event, "error", err)
		return false
	}
	return h.conns.Send(c, data)
}

// sendAck relays the outcome of a client event back to that client.
func (h *Hub) sendAck(c *Client, id json.RawMessage, ack Ack) {
	data, err := encode(eventAck, id, ack)
	if err != nil {
		h.logger.Error("failed to encode ack", "error", err)
		return
	}
	h.conns.Send(c, data)
}

// ClientCount returns the number of connected clients, joined or not.
func (h *Hub) ClientCount() int {
	return h.conns.Count()
}

// Connections lists the live sockets, oldest first.
func (h *Hub) Connections() []ConnInfo {
	infos := h.conns.Clients()
	slices.SortFunc(infos, func(a, b ConnInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return infos
}

// Stats returns the connection counters.
func (h *Hub) Stats() ConnStats {
	return h.conns.Stats()
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.conns.Shutdown()
}

func encode(event string, id json.RawMessage, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env, err := json.Marshal(Envelope{Type: event, ID: id, Payload: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return env, nil
}
