package user

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrValidation is returned when the username or room is empty after trimming.
	ErrValidation = errors.New("username and room are required")

	// ErrDuplicateUsername is returned when the room already has a member
	// whose name matches case-insensitively.
	ErrDuplicateUsername = errors.New("username is in use")

	// ErrConnectionRegistered is returned when a connection already owns a record.
	ErrConnectionRegistered = errors.New("connection already joined")
)

// User is the registry record for one live connection.
type User struct {
	ConnID   string    `json:"-"`
	Username string    `json:"username"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"joined_at"`
}

// NormalizeRoom trims and lower-cases a room name so that "Office " and
// "office" address the same room.
func NormalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}

// NormalizeUsername trims surrounding whitespace, keeping the display case.
func NormalizeUsername(name string) string {
	return strings.TrimSpace(name)
}
