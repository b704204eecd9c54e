package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/christopherjohns/roomchat/internal/chat"
	"github.com/christopherjohns/roomchat/internal/message"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// minReadLimit is the smallest frame limit that still fits a sendMessage
// envelope carrying chat.MaxMessageLength runes of any width.
const minReadLimit = chat.MaxMessageLength*utf8.UTFMax + 1024

// Handler upgrades HTTP requests to WebSockets and dispatches each inbound
// event to the connection's chat session.
type Handler struct {
	hub       *Hub
	ctrl      *chat.Controller
	origins   []string
	readLimit int64
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOriginPatterns allows cross-origin upgrades from hosts matching
// patterns. With none, only same-origin requests are accepted.
func WithOriginPatterns(patterns []string) HandlerOption {
	return func(h *Handler) {
		h.origins = patterns
	}
}

// WithReadLimit caps the size of a single inbound frame. Values below
// minReadLimit are raised to it.
func WithReadLimit(n int64) HandlerOption {
	return func(h *Handler) {
		h.readLimit = n
	}
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a WebSocket Handler.
func NewHandler(hub *Hub, ctrl *chat.Controller, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub:    hub,
		ctrl:   ctrl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.readLimit > 0 && h.readLimit < minReadLimit {
		h.readLimit = minReadLimit
	}
	return h
}

// ServeHTTP upgrades the connection and runs its read loop until the client
// goes away. The session is always disconnected on the way out, so the
// room hears about the departure however the socket ended.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	client := &Client{
		conn:       conn,
		connID:     uuid.NewString(),
		remoteAddr: r.RemoteAddr,
	}

	connCtx := h.hub.addClient(client)
	if connCtx.Err() != nil {
		return
	}
	h.logger.Debug("client connected", "conn_id", client.connID, "remote_addr", client.remoteAddr)

	session := h.ctrl.NewSession(client.connID)
	defer func() {
		session.Disconnect()
		h.hub.removeClient(client)
		h.logger.Debug("client disconnected", "conn_id", client.connID)
	}()

	h.readLoop(r.Context(), connCtx, client, session)
}

// readLoop reads frames until the connection closes or the connection
// manager cancels connCtx.
func (h *Handler) readLoop(ctx, connCtx context.Context, client *Client, session *chat.Session) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return
		}
		h.hub.ConnMgr().TouchActivity(client)

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Debug("ignoring malformed frame", "conn_id", client.connID, "error", err)
			continue
		}
		h.hub.sendAck(client, env.ID, h.dispatch(session, env))
	}
}

// dispatch applies one event to the session and returns the ack to relay.
func (h *Handler) dispatch(session *chat.Session, env Envelope) Ack {
	if !validator.known(env.Type) {
		return Ack{Error: "Unknown event " + env.Type + "!"}
	}
	if err := validator.validate(env.Type, env.Payload); err != nil {
		h.logger.Debug("rejected payload", "conn_id", session.ConnID(), "event", env.Type, "error", err)
		return Ack{Error: "Invalid " + env.Type + " payload!"}
	}

	switch env.Type {
	case eventJoin:
		var req chat.JoinRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return Ack{Error: "Invalid " + env.Type + " payload!"}
		}
		_, err := session.Join(req)
		return h.ackFor(session, env.Type, "", err)

	case eventSendMessage:
		var text string
		if err := json.Unmarshal(env.Payload, &text); err != nil {
			return Ack{Error: "Invalid " + env.Type + " payload!"}
		}
		status, err := session.SendMessage(text)
		return h.ackFor(session, env.Type, status, err)

	case eventSendLocation:
		var coords message.Coordinates
		if err := json.Unmarshal(env.Payload, &coords); err != nil {
			return Ack{Error: "Invalid " + env.Type + " payload!"}
		}
		return h.ackFor(session, env.Type, "", session.SendLocation(coords))
	}
	return Ack{}
}

func (h *Handler) ackFor(session *chat.Session, event, status string, err error) Ack {
	if err == nil {
		return Ack{Status: status}
	}
	level := slog.LevelDebug
	if !chat.IsClientError(err) {
		level = slog.LevelWarn
	}
	h.logger.Log(context.Background(), level, "event rejected",
		"conn_id", session.ConnID(), "event", event, "error", err)
	return Ack{Error: chat.ClientMessage(err)}
}
