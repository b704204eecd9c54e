package room

import (
	"slices"
	"strings"

	"github.com/christopherjohns/roomchat/internal/user"
)

// Members is the part of the connection registry the directory reads.
type Members interface {
	Users() []user.User
	UsersInRoom(room string) []user.User
}

// Member is the public projection of a user shown in a roster.
type Member struct {
	Username string `json:"username"`
}

// Roster is the roomData payload: a room and the people currently in it.
type Roster struct {
	Room  string   `json:"room"`
	Users []Member `json:"users"`
}

// Summary describes one active room for the lobby listing.
type Summary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Directory derives rooms and rosters from the registry on every call.
// It holds no state of its own, so it can never disagree with the registry.
type Directory struct {
	members Members
}

// NewDirectory creates a Directory reading from members.
func NewDirectory(members Members) *Directory {
	return &Directory{members: members}
}

// ListRooms returns the distinct names of rooms that have at least one member.
func (d *Directory) ListRooms() []string {
	seen := make(map[string]struct{})
	rooms := []string{}
	for _, u := range d.members.Users() {
		if _, ok := seen[u.Room]; ok {
			continue
		}
		seen[u.Room] = struct{}{}
		rooms = append(rooms, u.Room)
	}
	slices.Sort(rooms)
	return rooms
}

// UsersInRoom projects the members of room down to their display names.
func (d *Directory) UsersInRoom(room string) []Member {
	users := d.members.UsersInRoom(room)
	result := make([]Member, 0, len(users))
	for _, u := range users {
		result = append(result, Member{Username: u.Username})
	}
	return result
}

// Roster builds the roomData payload for room.
func (d *Directory) Roster(room string) Roster {
	return Roster{
		Room:  user.NormalizeRoom(room),
		Users: d.UsersInRoom(room),
	}
}

// Summaries returns every active room sorted by member count (descending),
// then by name.
func (d *Directory) Summaries() []Summary {
	counts := make(map[string]int)
	for _, u := range d.members.Users() {
		counts[u.Room]++
	}

	result := make([]Summary, 0, len(counts))
	for name, n := range counts {
		result = append(result, Summary{Name: name, Members: n})
	}
	slices.SortFunc(result, func(a, b Summary) int {
		if a.Members != b.Members {
			return b.Members - a.Members
		}
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// Exists reports whether room currently has any members.
func (d *Directory) Exists(room string) bool {
	return len(d.members.UsersInRoom(room)) > 0
}
