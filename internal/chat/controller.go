// Package chat runs the join, message, location and disconnect flows for
// each connection against the shared registry.
package chat

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/christopherjohns/roomchat/internal/filter"
	"github.com/christopherjohns/roomchat/internal/message"
	"github.com/christopherjohns/roomchat/internal/room"
	"github.com/christopherjohns/roomchat/internal/user"
)

// MaxMessageLength is the longest chat message accepted, in runes.
const MaxMessageLength = 2000

// Router delivers events to connections. The ws.Hub implements it.
type Router interface {
	BroadcastToRoom(room string, event message.Event, payload any, exclude string)
	SendToConnection(connID string, event message.Event, payload any) bool
}

// JoinRequest is the payload of a join event.
type JoinRequest struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// Controller applies inbound events to the registry and fans the results
// out through the router. Events are applied one at a time: each runs to
// completion, broadcasts included, before the next starts.
type Controller struct {
	mu      sync.Mutex
	users   *user.Registry
	rooms   *room.Directory
	router  Router
	checker filter.Checker
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the timestamp source for generated messages.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController wires a Controller. A nil checker accepts every message.
func NewController(users *user.Registry, rooms *room.Directory, router Router, checker filter.Checker, opts ...Option) *Controller {
	c := &Controller{
		users:   users,
		rooms:   rooms,
		router:  router,
		checker: checker,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join registers connID under req and announces it. On error nothing is
// sent and the registry is unchanged.
func (c *Controller) Join(connID string, req JoinRequest) (user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := c.users.AddUser(connID, req.Username, req.Room)
	if err != nil {
		return user.User{}, err
	}

	now := c.now()
	c.router.SendToConnection(connID, message.EventMessage, message.Admin("Welcome!", now))
	c.router.BroadcastToRoom(u.Room, message.EventMessage,
		message.Admin(u.Username+" has joined!", now), connID)
	c.router.BroadcastToRoom(u.Room, message.EventRoomData, c.rooms.Roster(u.Room), "")

	c.logger.Info("user joined", "conn_id", connID, "username", u.Username, "room", u.Room)
	return u, nil
}

// SendMessage broadcasts text to the sender's room, sender included, and
// returns the delivery status.
func (c *Controller) SendMessage(connID, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users.GetUser(connID)
	if !ok {
		return "", ErrNotJoined
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageLength {
		return "", fmt.Errorf("%w: %d characters", ErrMessageTooLong, n)
	}
	if c.checker != nil && c.checker.IsProfane(text) {
		c.logger.Debug("message rejected", "conn_id", connID, "room", u.Room)
		return "", ErrProfanity
	}

	c.router.BroadcastToRoom(u.Room, message.EventMessage, message.New(u.Username, text, c.now()), "")
	return StatusDelivered, nil
}

// SendLocation broadcasts a map link for coords to the sender's room.
func (c *Controller) SendLocation(connID string, coords message.Coordinates) error {
	if err := coords.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users.GetUser(connID)
	if !ok {
		return ErrNotJoined
	}

	c.router.BroadcastToRoom(u.Room, message.EventLocation,
		message.NewLocation(u.Username, message.MapURL(coords), c.now()), "")
	return nil
}

// Disconnect removes connID and tells the rest of its room. It is a no-op
// for connections that never joined.
func (c *Controller) Disconnect(connID string) (user.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users.RemoveUser(connID)
	if !ok {
		return user.User{}, false
	}

	c.router.BroadcastToRoom(u.Room, message.EventMessage, message.Admin(u.Username+" has left!", c.now()), "")
	c.router.BroadcastToRoom(u.Room, message.EventRoomData, c.rooms.Roster(u.Room), "")

	c.logger.Info("user left", "conn_id", connID, "username", u.Username, "room", u.Room)
	return u, true
}
