package chat

import (
	"sync"

	"github.com/christopherjohns/roomchat/internal/message"
	"github.com/christopherjohns/roomchat/internal/user"
)

// State is the lifecycle position of one connection.
type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session tracks one connection through Unjoined → Joined → Disconnected.
// A connection joins at most once; re-joining needs a new connection.
type Session struct {
	mu     sync.Mutex
	connID string
	state  State
	ctrl   *Controller
}

// NewSession starts an Unjoined session for connID.
func (c *Controller) NewSession(connID string) *Session {
	return &Session{connID: connID, ctrl: c}
}

// ConnID returns the connection the session belongs to.
func (s *Session) ConnID() string {
	return s.connID
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join moves an Unjoined session to Joined. A failed join leaves the
// session Unjoined so the client may retry with another name.
func (s *Session) Join(req JoinRequest) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateJoined:
		return user.User{}, ErrAlreadyJoined
	case StateDisconnected:
		return user.User{}, ErrDisconnected
	}

	u, err := s.ctrl.Join(s.connID, req)
	if err != nil {
		return user.User{}, err
	}
	s.state = StateJoined
	return u, nil
}

// SendMessage posts text to the session's room.
func (s *Session) SendMessage(text string) (string, error) {
	if err := s.requireJoined(); err != nil {
		return "", err
	}
	return s.ctrl.SendMessage(s.connID, text)
}

// SendLocation shares coords with the session's room.
func (s *Session) SendLocation(coords message.Coordinates) error {
	if err := s.requireJoined(); err != nil {
		return err
	}
	return s.ctrl.SendLocation(s.connID, coords)
}

// Disconnect ends the session. Calling it more than once is harmless.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return
	}
	s.state = StateDisconnected
	s.ctrl.Disconnect(s.connID)
}

func (s *Session) requireJoined() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUnjoined:
		return ErrNotJoined
	case StateDisconnected:
		return ErrDisconnected
	}
	return nil
}
