package chat

import (
	"errors"

	"github.com/christopherjohns/roomchat/internal/message"
	"github.com/christopherjohns/roomchat/internal/user"
)

var (
	// ErrProfanity is returned when a message trips the profanity filter.
	ErrProfanity = errors.New("profanity is not allowed")

	// ErrEmptyMessage is returned for a message that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned for a message over MaxMessageLength runes.
	ErrMessageTooLong = errors.New("message too long")

	// ErrNotJoined is returned when a session sends before joining a room.
	ErrNotJoined = errors.New("not joined to a room")

	// ErrAlreadyJoined is returned when a joined session tries to join again.
	ErrAlreadyJoined = errors.New("already joined to a room")

	// ErrDisconnected is returned for any operation on a closed session.
	ErrDisconnected = errors.New("connection closed")
)

// StatusDelivered is the acknowledgement for a broadcast chat message.
const StatusDelivered = "Delivered!"

const genericClientMessage = "Something went wrong!"

// clientMessages maps expected failures to the text shown to the client.
var clientMessages = []struct {
	err  error
	text string
}{
	{user.ErrValidation, "Username and room are required!"},
	{user.ErrDuplicateUsername, "Username is in use!"},
	{user.ErrConnectionRegistered, "You have already joined a room!"},
	{ErrAlreadyJoined, "You have already joined a room!"},
	{ErrProfanity, "Profanity is not allowed!"},
	{ErrEmptyMessage, "Message cannot be empty!"},
	{ErrMessageTooLong, "Message exceeds maximum length of 2000 characters!"},
	{ErrNotJoined, "You must join a room first!"},
	{ErrDisconnected, "Connection closed!"},
	{message.ErrInvalidCoordinates, "Invalid location!"},
}

// ClientMessage converts err into the text sent back in an acknowledgement.
// Unexpected errors get a generic string so internals do not leak.
func ClientMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return m.text
		}
	}
	return genericClientMessage
}

// IsClientError reports whether err is an expected result of client input
// rather than a server fault.
func IsClientError(err error) bool {
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
