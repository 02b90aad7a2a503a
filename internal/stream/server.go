package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/TAKIS21345/techsteps-sub004/internal/bus"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
)

// ServerConfig holds morph-state server configuration.
type ServerConfig struct {
	ListenAddr     string `json:"listen_addr"`
	UpdateRateHz   int    `json:"update_rate_hz"` // snapshot cadence, default 30
	AllowAnyOrigin bool   `json:"allow_any_origin"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr:   "127.0.0.1:8794",
		UpdateRateHz: 30,
	}
}

// client is one connected rendering frontend.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts morph-buffer snapshots at a fixed cadence plus
// viseme and expression events as they happen.
type Server struct {
	config *ServerConfig
	buffer *morph.Buffer
	events *bus.EventBus
	logger zerolog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu      sync.Mutex
	clients map[string]*client
	stopped bool
}

// NewServer creates a morph-state server.
func NewServer(config *ServerConfig, buffer *morph.Buffer, events *bus.EventBus, logger zerolog.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.UpdateRateHz <= 0 {
		config.UpdateRateHz = 30
	}
	s := &Server{
		config:  config,
		buffer:  buffer,
		events:  events,
		logger:  logger.With().Str("component", "stream-server").Logger(),
		clients: make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if config.AllowAnyOrigin {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return s
}

// Start begins serving and broadcasting until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.httpSrv = &http.Server{Addr: s.config.ListenAddr, Handler: mux}

	if s.events != nil {
		s.events.Subscribe(bus.EventTypeVisemeUpdated, s.onVisemeEvent)
		s.events.Subscribe(bus.EventTypeExpressionApplied, s.onExpressionEvent)
	}

	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Morph stream listening")
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Stream server stopped")
		}
	}()
	return nil
}

// Stop closes all clients and the listener. Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

// ClientCount returns the number of connected frontends.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handleWS upgrades a frontend connection and registers it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()

	hello, err := Encode(MessageHello, HelloPayload{
		SessionID: c.id,
		ServerMs:  time.Now().UnixMilli(),
	})
	if err == nil {
		c.send <- hello
	}

	s.publish(bus.EventTypeClientConnected, map[string]any{"session": c.id})
	s.logger.Info().Str("session", c.id).Msg("Frontend connected")

	go s.writePump(c)
	go s.readPump(c)
}

// writePump drains the client's send channel.
func (s *Server) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.dropClient(c)
			return
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (s *Server) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.dropClient(c)
			return
		}
	}
}

// dropClient removes a client after a write or read failure.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c.id)
	s.mu.Unlock()

	close(c.send)
	c.conn.Close()
	s.publish(bus.EventTypeClientDisconnected, map[string]any{"session": c.id})
	s.logger.Info().Str("session", c.id).Msg("Frontend disconnected")
}

// broadcastLoop snapshots the morph buffer at the configured cadence.
func (s *Server) broadcastLoop(ctx context.Context) {
	interval := time.Second / time.Duration(s.config.UpdateRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ClientCount() == 0 {
				continue
			}
			data, err := Encode(MessageMorphState, MorphStatePayload{
				Weights:     s.buffer.Snapshot(),
				TimestampMs: time.Now().UnixMilli(),
			})
			if err != nil {
				continue
			}
			s.broadcast(data)
		}
	}
}

// broadcast queues a frame to every client, dropping frames for slow
// consumers rather than blocking the animation path.
func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// onVisemeEvent forwards a viseme bus event to clients.
func (s *Server) onVisemeEvent(e bus.Event) {
	name, _ := e.Data["viseme"].(string)
	intensity, _ := e.Data["intensity"].(float64)
	data, err := Encode(MessageViseme, VisemePayload{Name: name, Intensity: intensity})
	if err != nil {
		return
	}
	s.broadcast(data)
}

// onExpressionEvent forwards an expression bus event to clients.
func (s *Server) onExpressionEvent(e bus.Event) {
	t, _ := e.Data["type"].(string)
	intensity, _ := e.Data["intensity"].(float64)
	data, err := Encode(MessageExpression, ExpressionPayload{Type: t, Intensity: intensity})
	if err != nil {
		return
	}
	s.broadcast(data)
}

// publish sends a bus event when a bus is wired.
func (s *Server) publish(t bus.EventType, data map[string]any) {
	if s.events != nil {
		s.events.Publish(bus.Event{Type: t, Data: data})
	}
}
