package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/motodash/cluster/internal/telemetry"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// subscriber is one websocket client with a single write goroutine.
type subscriber struct {
	id     string
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (sub *subscriber) close() {
	sub.once.Do(func() { close(sub.done) })
}

// Hub fans telemetry records out to every connected stream client.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
}

// NewHub creates an empty hub. Register Broadcast as a simulator observer
// to feed it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, subs: make(map[string]*subscriber)}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast encodes r once and queues it for every client. Slow clients
// drop records rather than stall the tick.
func (h *Hub) Broadcast(r telemetry.Record) {
	data, err := json.Marshal(r)
	if err != nil {
		h.logger.Error("Failed to encode telemetry record", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.sendCh <- data:
		default:
			h.logger.Debug("Stream client too slow, dropping record", "subscriber", sub.id)
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *Hub) add(conn *ws.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, subscriberBuffer),
		done:   make(chan struct{}),
	}
	h.subs[sub.id] = sub
	return sub, true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	sub.close()
}

// serve runs the connection until the client leaves or the hub closes.
func (h *Hub) serve(conn *ws.Conn, initial telemetry.Record) {
	sub, ok := h.add(conn)
	if !ok {
		_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	h.logger.Info("Stream client connected", "subscriber", sub.id)

	if data, err := json.Marshal(initial); err == nil {
		sub.sendCh <- data
	}

	go h.readLoop(sub)
	h.writeLoop(sub)

	h.remove(sub)
	h.logger.Info("Stream client disconnected", "subscriber", sub.id)
}

// writeLoop drains sendCh and pings idle clients. It owns all writes.
func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer sub.conn.Close()

	for {
		select {
		case <-sub.done:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = sub.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return
		case data := <-sub.sendCh:
			if err := sub.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.logger.Warn("Stream SetWriteDeadline error", "subscriber", sub.id, "error", err)
				return
			}
			if err := sub.conn.WriteMessage(ws.TextMessage, data); err != nil {
				h.logger.Debug("Stream write error", "subscriber", sub.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and notices disconnects.
func (h *Hub) readLoop(sub *subscriber) {
	defer sub.close()
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.deps.Logger.Warn("Stream upgrade failed", "error", err)
		return
	}

	var initial telemetry.Record
	if s.deps.Engine != nil {
		initial = s.deps.Engine.Telemetry()
	} else {
		initial = telemetry.InitialRecord(s.deps.Clock())
	}
	s.deps.Hub.serve(conn, initial)
}
