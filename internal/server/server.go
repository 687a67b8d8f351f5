// Package server exposes the player state over HTTP and pushes live updates
// to the page over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/player"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page is served from the same origin in production; development
	// runs the frontend elsewhere.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server routes playback commands to the players and broadcasts state
// snapshots to connected pages
type Server struct {
	logger  *zap.Logger
	manager *player.Manager
	http    *http.Server

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	// notify coalesces bursts of player updates into one broadcast
	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

// NewServer creates the HTTP server and wires the manager's update callback
// into the websocket broadcast
func NewServer(logger *zap.Logger, manager *player.Manager, listenAddr string) *Server {
	s := &Server{
		logger:  logger,
		manager: manager,
		clients: make(map[*websocket.Conn]struct{}),
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/sections", s.handleSections)
	api.POST("/tracks/:id/toggle", s.handleTrackToggle)
	api.POST("/tracks/:id/seek", s.handleTrackSeek)
	api.POST("/albums/:id/toggle", s.handleAlbumToggle)
	api.POST("/albums/:id/tracks/:index", s.handleAlbumSelect)
	router.GET("/ws", s.handleWS)

	s.http = &http.Server{Addr: listenAddr, Handler: router}
	manager.SetUpdateCallback(s.RequestBroadcast)
	return s
}

// Start begins serving; it returns once the listener fails or shuts down
func (s *Server) Start() {
	go s.broadcastLoop()

	s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server failed", zap.Error(err))
	}
}

// Stop shuts the server down and disconnects all websocket clients
func (s *Server) Stop(ctx context.Context) error {
	close(s.quit)
	err := s.http.Shutdown(ctx)

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	<-s.done
	return err
}

// RequestBroadcast schedules a snapshot push to all connected clients.
// Safe to call from any goroutine; redundant requests collapse.
func (s *Server) RequestBroadcast() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleSections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sections": s.manager.Snapshot()})
}

func (s *Server) handleTrackToggle(c *gin.Context) {
	p, ok := s.manager.Track(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown track"})
		return
	}
	p.Toggle()
	c.JSON(http.StatusOK, p.Snapshot())
}

func (s *Server) handleTrackSeek(c *gin.Context) {
	p, ok := s.manager.Track(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown track"})
		return
	}

	var body struct {
		Fraction *float64 `json:"fraction"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Fraction == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fraction is required"})
		return
	}
	p.Seek(*body.Fraction)
	c.JSON(http.StatusOK, p.Snapshot())
}

func (s *Server) handleAlbumToggle(c *gin.Context) {
	p, ok := s.manager.Album(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown album"})
		return
	}
	p.Toggle()
	c.JSON(http.StatusOK, p.Snapshot())
}

func (s *Server) handleAlbumSelect(c *gin.Context) {
	p, ok := s.manager.Album(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown album"})
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("bad track index: %s", c.Param("index"))})
		return
	}
	p.SelectTrack(index)
	c.JSON(http.StatusOK, p.Snapshot())
}

// handleWS upgrades the connection, sends the current snapshot right away
// and keeps the client registered for broadcasts. The snapshot is written
// under clientsMu: gorilla allows only one concurrent writer per connection,
// and broadcast() may already be pushing to a registered conn.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer s.unregisterClient(conn)

	snapshot := gin.H{"sections": s.manager.Snapshot()}
	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	err = conn.WriteJSON(snapshot)
	s.clientsMu.Unlock()
	if err != nil {
		s.logger.Debug("Failed to send snapshot on connect", zap.Error(err))
		return
	}

	// Reads keep the connection alive; clients never send commands here
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) unregisterClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, conn)
	_ = conn.Close()
}

func (s *Server) broadcastLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.notify:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	snapshot := gin.H{"sections": s.manager.Snapshot()}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(snapshot); err != nil {
			s.logger.Debug("Dropping websocket client", zap.Error(err))
			delete(s.clients, conn)
			_ = conn.Close()
		}
	}
}
