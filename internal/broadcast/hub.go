// Package broadcast delivers transcription records to connected peers:
// a WebSocket hub behind the HTTP server and an optional MQTT publisher.
// Delivery is best-effort; a slow or broken peer never stalls the
// pipeline.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/zinkosoft/sensestream/internal/observability"
	"github.com/zinkosoft/sensestream/internal/transcript"
)

const (
	recordChannelCapacity = 100
	clientSendCapacity    = 16
	enqueueTimeout        = 250 * time.Millisecond
	writeTimeout          = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Sink is the minimal broadcast contract the formatter stage emits into.
type Sink interface {
	Broadcast(rec *transcript.Record)
}

// Hub fans transcription records out to connected WebSocket clients.
type Hub struct {
	log     *slog.Logger
	metrics *observability.Metrics

	records    chan *transcript.Record
	register   chan *client
	unregister chan *client
	clients    map[*client]struct{}
	done       chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub; call Run to start the fan-out loop.
func NewHub(log *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		log:        log,
		metrics:    metrics,
		records:    make(chan *transcript.Record, recordChannelCapacity),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
	}
}

// Broadcast enqueues a record for delivery. It blocks at most the
// per-record enqueue timeout and then drops.
func (h *Hub) Broadcast(rec *transcript.Record) {
	select {
	case h.records <- rec:
	case <-time.After(enqueueTimeout):
		h.metrics.BroadcastDropped.Inc()
		h.log.Debug("broadcast queue full, dropping record")
	}
}

// Run drains the record channel until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debug("websocket client connected", "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.log.Debug("websocket client disconnected", "clients", len(h.clients))
		case rec := <-h.records:
			payload, err := json.Marshal(rec)
			if err != nil {
				h.log.Debug("record marshal failed", "error", err)
				continue
			}
			h.metrics.RecordsBroadcast.Inc()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// peer too slow, drop the frame for this client
					h.metrics.BroadcastDropped.Inc()
				}
			}
		}
	}
}

// Close stops the fan-out loop and disconnects all clients.
func (h *Hub) Close() {
	close(h.done)
}

// HandleWS upgrades an HTTP request and attaches the peer to the hub.
func (h *Hub) HandleWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, clientSendCapacity)}
	h.register <- cl

	go cl.writePump()
	go cl.readPump(h)
	return nil
}

func (c *client) writePump() {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	_ = c.conn.Close()
}

// readPump discards inbound frames and detects disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
