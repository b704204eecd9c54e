package room

import (
	"encoding/json"
	"testing"

	"github.com/christopherjohns/roomchat/internal/user"
)

func newTestDirectory(t *testing.T) (*Directory, *user.Registry) {
	t.Helper()
	reg := user.NewRegistry()
	return NewDirectory(reg), reg
}

func TestDirectoryListRoomsEmpty(t *testing.T) {
	d, _ := newTestDirectory(t)
	rooms := d.ListRooms()
	if rooms == nil || len(rooms) != 0 {
		t.Fatalf("expected an empty, non-nil list, got %#v", rooms)
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("expected [] when encoded, got %s", data)
	}
}

func TestDirectoryListRoomsDistinct(t *testing.T) {
	d, reg := newTestDirectory(t)
	reg.AddUser("c1", "alice", "office")
	reg.AddUser("c2", "bob", "kitchen")
	reg.AddUser("c3", "carol", "office")

	rooms := d.ListRooms()
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %v", rooms)
	}
	if rooms[0] != "kitchen" || rooms[1] != "office" {
		t.Errorf("expected [kitchen office], got %v", rooms)
	}
}

func TestDirectoryRoomDisappearsWithLastMember(t *testing.T) {
	d, reg := newTestDirectory(t)
	reg.AddUser("c1", "alice", "office")

	if !d.Exists("office") {
		t.Fatal("expected office to exist while alice is in it")
	}
	reg.RemoveUser("c1")
	if d.Exists("office") {
		t.Error("expected office to vanish after the last member left")
	}
	if rooms := d.ListRooms(); len(rooms) != 0 {
		t.Errorf("expected no rooms, got %v", rooms)
	}
}

func TestDirectoryRoster(t *testing.T) {
	d, reg := newTestDirectory(t)
	reg.AddUser("c1", "Alice", "Office")
	reg.AddUser("c2", "Bob", "office")

	roster := d.Roster("office")
	if roster.Room != "office" {
		t.Errorf("expected room 'office', got %q", roster.Room)
	}
	if len(roster.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(roster.Users))
	}
	if roster.Users[0].Username != "Alice" || roster.Users[1].Username != "Bob" {
		t.Errorf("unexpected roster %+v", roster.Users)
	}
}

func TestDirectoryUsersInUnknownRoom(t *testing.T) {
	d, _ := newTestDirectory(t)
	users := d.UsersInRoom("nowhere")
	if users == nil {
		t.Fatal("expected an empty, non-nil slice so it encodes as []")
	}
	if len(users) != 0 {
		t.Errorf("expected 0 users, got %d", len(users))
	}
}

func TestDirectorySummariesSortedByMembers(t *testing.T) {
	d, reg := newTestDirectory(t)
	reg.AddUser("c1", "a", "small")
	reg.AddUser("c2", "a", "big")
	reg.AddUser("c3", "b", "big")
	reg.AddUser("c4", "c", "big")
	reg.AddUser("c5", "a", "medium")
	reg.AddUser("c6", "b", "medium")

	got := d.Summaries()
	want := []Summary{{"big", 3}, {"medium", 2}, {"small", 1}}
	if len(got) != len(want) {
		t.Fatalf("expected %d summaries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("summary %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}
