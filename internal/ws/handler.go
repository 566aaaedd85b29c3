package ws

import (
	"net/http"
	"sync"
	"time"

	"fairbet-service/internal/service/round"
	"fairbet-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type OutgoingMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Hub fans the live crash-round feed out to websocket subscribers. It
// implements round.Notifier; the round state it relays is public, so
// the feed needs no auth.
type Hub struct {
	mu      sync.Mutex
	nextID  int64
	clients map[int64]chan OutgoingMessage
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]chan OutgoingMessage)}
}

func (h *Hub) RoundTick(state round.State) {
	h.broadcast(OutgoingMessage{Type: "round_tick", Data: state})
}

func (h *Hub) RoundCrashed(state round.State) {
	h.broadcast(OutgoingMessage{Type: "round_crashed", Data: state})
}

// Slow or dead subscribers are skipped, never blocked on.
func (h *Hub) broadcast(msg OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) subscribe() (int64, chan OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan OutgoingMessage, 16)
	h.clients[h.nextID] = ch
	return h.nextID, ch
}

func (h *Hub) unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// HandleCrashWS upgrades the connection and streams round events until
// the client goes away.
func (h *Hub) HandleCrashWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	id, outbound := h.subscribe()
	logger.Log.Info("New crash feed connection", zap.Int64("clientID", id))

	client := newClient(conn, id, outbound, func() { h.unsubscribe(id) })
	client.run()
}

type client struct {
	conn      *websocket.Conn
	id        int64
	outbound  <-chan OutgoingMessage
	done      chan struct{}
	onClose   func()
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, id int64, outbound <-chan OutgoingMessage, onClose func()) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		id:        id,
		outbound:  outbound,
		done:      make(chan struct{}),
		onClose:   onClose,
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

// The feed is one-way; the read pump only drains control frames and
// detects the close.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.onClose()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logger.Log.Info("WS read closed", zap.Error(err), zap.Int64("clientID", c.id))
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.Int64("clientID", c.id))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
