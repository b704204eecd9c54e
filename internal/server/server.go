package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/christopherjohns/roomchat/internal/chat"
	"github.com/christopherjohns/roomchat/internal/config"
	"github.com/christopherjohns/roomchat/internal/filter"
	"github.com/christopherjohns/roomchat/internal/middleware"
	"github.com/christopherjohns/roomchat/internal/room"
	"github.com/christopherjohns/roomchat/internal/user"
	"github.com/christopherjohns/roomchat/internal/ws"
)

// Server is the HTTP front of the chat: the WebSocket endpoint plus a small
// read-only JSON API over the live room state.
type Server struct {
	cfg        *config.Config
	users      *user.Registry
	rooms      *room.Directory
	hub        *ws.Hub
	ctrl       *chat.Controller
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New wires the registry, directory, hub and controller together.
func New(cfg *config.Config, checker filter.Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	users := user.NewRegistry()
	rooms := room.NewDirectory(users)
	hub := ws.NewHub(users, logger,
		ws.WithMaxConns(cfg.MaxConns),
		ws.WithIdleTimeout(cfg.IdleTimeout),
	)
	ctrl := chat.NewController(users, rooms, hub, checker, chat.WithLogger(logger))

	s := &Server{
		cfg:    cfg,
		users:  users,
		rooms:  rooms,
		hub:    hub,
		ctrl:   ctrl,
		logger: logger,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.router,
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and then closes
// every open socket.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Shutdown()
	return err
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins(),
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/rooms", s.handleListRooms)
		r.Get("/rooms/{room}", s.handleGetRoom)
		r.Get("/connections", s.handleListConnections)
	})

	r.Handle("/ws", ws.NewHandler(s.hub, s.ctrl,
		ws.WithOriginPatterns(s.cfg.AllowedOrigins),
		ws.WithReadLimit(s.cfg.MaxFrameBytes),
		ws.WithHandlerLogger(s.logger),
	))

	if dir := s.cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			s.logger.Warn("static dir not found, skipping", "dir", dir)
		}
	}
	return r
}

// corsOrigins turns websocket host patterns into CORS origins.
func (s *Server) corsOrigins() []string {
	var origins []string
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			return []string{"*"}
		}
		origins = append(origins, "http://"+o, "https://"+o)
	}
	return origins
}

type healthResponse struct {
	Status      string       `json:"status"`
	Connections int          `json:"connections"`
	Rooms       int          `json:"rooms"`
	Stats       ws.ConnStats `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Connections: s.hub.ClientCount(),
		Rooms:       len(s.rooms.ListRooms()),
		Stats:       s.hub.Stats(),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.rooms.Summaries())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "room")
	if !s.rooms.Exists(name) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.rooms.Roster(name))
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.Connections())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "status", status, "error", err)
	}
}
