package message

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Event names the server→client events.
type Event string

const (
	EventMessage  Event = "message"
	EventLocation Event = "locationMessage"
	EventRoomData Event = "roomData"
)

// AdminName is the author of server-generated announcements.
const AdminName = "Admin"

// mapURLFormat builds the shared-location link.
const mapURLFormat = "https://google.com/maps/?q=%s,%s"

// ErrInvalidCoordinates is returned for latitudes/longitudes out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Message is a chat line delivered to a room.
type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// LocationMessage is a shared map link delivered to a room.
type LocationMessage struct {
	Username  string `json:"username"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"createdAt"`
}

// Coordinates is the payload of a sendLocation event.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinates are finite and within range.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return fmt.Errorf("%w: not a number", ErrInvalidCoordinates)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

// New builds a chat message stamped with now in Unix milliseconds.
func New(username, text string, now time.Time) Message {
	return Message{
		Username:  username,
		Text:      text,
		CreatedAt: now.UnixMilli(),
	}
}

// Admin builds a server announcement.
func Admin(text string, now time.Time) Message {
	return New(AdminName, text, now)
}

// NewLocation builds a location message stamped with now in Unix milliseconds.
func NewLocation(username, url string, now time.Time) LocationMessage {
	return LocationMessage{
		Username:  username,
		URL:       url,
		CreatedAt: now.UnixMilli(),
	}
}

// MapURL returns the map link for c, using the shortest decimal form of
// each coordinate.
func MapURL(c Coordinates) string {
	return fmt.Sprintf(mapURLFormat,
		strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		strconv.FormatFloat(c.Longitude, 'f', -1, 64),
	)
}
