package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/christopherjohns/roomchat/internal/config"
	"github.com/christopherjohns/roomchat/internal/filter"
	"github.com/christopherjohns/roomchat/internal/room"
	"github.com/christopherjohns/roomchat/internal/ws"
	"nhooyr.io/websocket"
)

func newTestServer(t *testing.T, vars map[string]string) *Server {
	t.Helper()
	if vars == nil {
		vars = map[string]string{}
	}
	if _, ok := vars["STATIC_DIR"]; !ok {
		vars["STATIC_DIR"] = ""
	}
	cfg, err := config.LoadFrom(vars)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	srv := New(cfg, filter.New("darn"), nil)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	w := get(t, srv.Handler(), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ok" || body.Connections != 0 || body.Rooms != 0 || body.Stats.Active != 0 {
		t.Errorf("unexpected health %+v", body)
	}
}

func TestListRoomsEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	w := get(t, srv.Handler(), "/api/rooms")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", w.Body.String())
	}
}

func TestListRoomsWithData(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.users.AddUser("c1", "alice", "Office")
	srv.users.AddUser("c2", "bob", "office")
	srv.users.AddUser("c3", "carol", "kitchen")

	w := get(t, srv.Handler(), "/api/rooms")
	var rooms []room.Summary
	if err := json.NewDecoder(w.Body).Decode(&rooms); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].Name != "office" || rooms[0].Members != 2 {
		t.Errorf("expected office with 2 members first, got %+v", rooms[0])
	}
	if rooms[1].Name != "kitchen" || rooms[1].Members != 1 {
		t.Errorf("expected kitchen with 1 member second, got %+v", rooms[1])
	}

	w = get(t, srv.Handler(), "/health")
	var health healthResponse
	json.NewDecoder(w.Body).Decode(&health)
	if health.Rooms != 2 {
		t.Errorf("expected 2 rooms in health, got %d", health.Rooms)
	}
}

func TestGetRoom(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.users.AddUser("c1", "alice", "office")
	srv.users.AddUser("c2", "bob", "office")

	w := get(t, srv.Handler(), "/api/rooms/OFFICE")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var roster room.Roster
	if err := json.NewDecoder(w.Body).Decode(&roster); err != nil {
		t.Fatal(err)
	}
	if roster.Room != "office" || len(roster.Users) != 2 || roster.Users[0].Username != "alice" {
		t.Errorf("unexpected roster %+v", roster)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	w := get(t, srv.Handler(), "/api/rooms/nowhere")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestCORSOnAPI(t *testing.T) {
	srv := newTestServer(t, map[string]string{"ALLOWED_ORIGINS": "chat.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Errorf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for unknown origin, got %q", got)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>chat</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, map[string]string{"STATIC_DIR": dir})

	w := get(t, srv.Handler(), "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<h1>chat</h1>") {
		t.Errorf("expected index.html, got %d %q", w.Code, w.Body.String())
	}
}

func TestWebSocketJoinUpdatesAPI(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	join := `{"type":"join","id":1,"payload":{"username":"alice","room":"office"}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(join)); err != nil {
		t.Fatal(err)
	}

	// Welcome, roster, ack.
	for i := 0; i < 3; i++ {
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	w := get(t, srv.Handler(), "/api/rooms/office")
	if w.Code != http.StatusOK {
		t.Fatalf("expected office to exist, got %d", w.Code)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for srv.users.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w := get(t, srv.Handler(), "/api/rooms/office"); w.Code != http.StatusNotFound {
		t.Errorf("expected office to be gone after disconnect, got %d", w.Code)
	}
}

func TestListConnections(t *testing.T) {
	srv := newTestServer(t, nil)

	w := get(t, srv.Handler(), "/api/connections")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected no connections, got %s", w.Body.String())
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	w = get(t, srv.Handler(), "/api/connections")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var infos []ws.ConnInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(infos))
	}
	if infos[0].ConnID == "" || infos[0].RemoteAddr == "" || infos[0].ConnectedAt.IsZero() {
		t.Errorf("expected populated connection info, got %+v", infos[0])
	}
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"STATIC_DIR": ""})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	srv := New(cfg, filter.New(), slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	srv.writeJSON(httptest.NewRecorder(), http.StatusOK, math.Inf(1))

	if !strings.Contains(buf.String(), "failed to encode response") {
		t.Errorf("expected encode failure to be logged, got %q", buf.String())
	}
}
