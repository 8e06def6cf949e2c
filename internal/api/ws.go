package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bloomsight/blinkbloom/internal/face"
)

// Event types broadcast to websocket clients.
const (
	EventBlink       = "blink"
	EventDirection   = "direction"
	EventGaze        = "gaze"
	EventCalibration = "calibration"
)

// Event is the outbound websocket envelope.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second

	// Inbound frames are FaceMesh landmark sets; a full one is ~20KB of
	// JSON.
	maxInboundMessage = 256 * 1024

	// Per-client outbound buffer. Gaze events arrive at frame rate; a
	// client that cannot keep up is dropped rather than backpressuring the
	// processing loop.
	clientSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// The game page is served from the same host in production and from a
	// dev server during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans pipeline events out to connected websocket clients. It
// implements face.Observer; Broadcast is called from the processing loop
// and must never block, so slow clients lose events and eventually their
// connection.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues an event to every connected client. Clients with a full
// send buffer are disconnected.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// OnBlink implements face.Observer.
func (h *Hub) OnBlink(ev face.BlinkEvent) {
	h.Broadcast(Event{Type: EventBlink, Data: ev})
}

// OnDirectionChange implements face.Observer.
func (h *Hub) OnDirectionChange(ev face.DirectionChangedEvent) {
	h.Broadcast(Event{Type: EventDirection, Data: ev})
}

// OnGaze implements face.Observer.
func (h *Hub) OnGaze(ev face.GazeUpdate) {
	h.Broadcast(Event{Type: EventGaze, Data: ev})
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// handleWebsocket upgrades the connection and starts the read and write
// pumps. Inbound messages are landmark frames as JSON; an empty or absent
// points array is the no-face signal.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan Event, clientSendBuffer)}
	s.hub.register(c)

	go c.writePump()
	go s.readPump(c)
}

// readPump consumes landmark frames from one client until the connection
// drops.
func (s *Server) readPump(c *wsClient) {
	defer func() {
		s.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		var frame face.LandmarkFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("dropping malformed frame: %v", err)
			continue
		}
		if len(frame.Points) == 0 {
			s.SubmitFrame(nil)
			continue
		}
		s.SubmitFrame(&frame)
	}
}

// writePump serializes queued events to one client and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeTimeout))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
