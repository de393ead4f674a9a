// Package feed pushes withdrawal events to connected admin dashboards.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	WithdrawalRequested = "withdrawal_requested"
	WithdrawalResolved  = "withdrawal_resolved"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// client is one dashboard connection. Only its writer goroutine writes to
// conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every subscribed connection. The zero value is
// not usable; call NewHub.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Publish queues an event for all subscribers and returns without waiting
// for any socket. A subscriber whose queue is full is dropped. A nil hub
// discards the event.
func (h *Hub) Publish(kind string, data interface{}) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Event{Type: kind, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("type", kind).Error("feed event not encodable")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.dropLocked(c)
			h.log.WithField("type", kind).Warn("feed subscriber too slow, dropped")
		}
	}
}

// Subscribers is the number of connected dashboards.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// dropLocked removes c and closes its queue, which stops its writer.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// writeLoop drains c.send onto the socket until the queue is closed or a
// write fails, then closes the connection.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.unregister(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// Serve upgrades GET /admin/feed and holds the connection until the client
// goes away. The protocol is server push only.
func (h *Hub) Serve(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{conn: ws, send: make(chan []byte, sendBuffer)}
	h.register(cl)
	go h.writeLoop(cl)
	h.log.WithField("user_id", adminID).Info("feed subscriber joined")

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(cl)
			h.log.WithField("user_id", adminID).Info("feed subscriber left")
			return nil
		}
	}
}
