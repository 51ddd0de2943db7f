// Package live pushes board changes to connected browsers over websockets.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// ErrHubStopped is returned by ServeWS after Run has returned
var ErrHubStopped = errors.New("live: hub stopped")

// Event is the frame written to every subscriber
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

// Hub fans board events out to every connected subscriber. Slow subscribers
// are dropped rather than blocking publishers.
type Hub struct {
	clients    map[*subscriber]bool
	clientsMu  sync.RWMutex
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHub creates a hub. Origins are checked against allowedOrigins; an empty
// list accepts same-origin requests only.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*subscriber]bool),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
	return h
}

// Run dispatches events until ctx is cancelled, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.clientsMu.Lock()
			for s := range h.clients {
				delete(h.clients, s)
				close(s.send)
			}
			h.clientsMu.Unlock()
			return

		case s := <-h.register:
			h.clientsMu.Lock()
			h.clients[s] = true
			h.clientsMu.Unlock()
			h.logger.Debug("Board subscriber registered", zap.String("userId", s.userID.String()))

		case s := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[s]; ok {
				delete(h.clients, s)
				close(s.send)
			}
			h.clientsMu.Unlock()
			h.logger.Debug("Board subscriber unregistered", zap.String("userId", s.userID.String()))

		case message := <-h.broadcast:
			h.clientsMu.Lock()
			for s := range h.clients {
				select {
				case s.send <- message:
				default:
					delete(h.clients, s)
					close(s.send)
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

// Publish queues an event for every subscriber. It never blocks; when the
// queue is full the event is dropped and clients catch up on their next
// board fetch.
func (h *Hub) Publish(eventType string, payload interface{}) {
	message, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("Failed to encode board event", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Board event dropped, broadcast queue full", zap.String("type", eventType))
	}
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events to it until either side
// closes. Incoming frames are ignored apart from pongs.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s := &subscriber{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return ErrHubStopped
	}

	go h.writePump(s)
	go h.readPump(s)
	return nil
}

func (h *Hub) readPump(s *subscriber) {
	defer func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Board websocket error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
