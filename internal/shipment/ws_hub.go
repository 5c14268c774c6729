package shipment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/realpay/supply-engine/internal/metrics"
	"github.com/realpay/supply-engine/internal/model"
)

const (
	// writeWait bounds every connection write; a peer that cannot drain
	// within it is dropped.
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// sendBufferSize is the per-client queue depth. Messages to a client
	// whose queue is full are dropped to avoid blocking the tick.
	sendBufferSize = 64
)

// GPSMessage is a JSON message sent to WebSocket clients on every position
// change, one shipment update per message.
type GPSMessage struct {
	Type       string  `json:"type"`
	ShipmentID string  `json:"shipment_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	TS         int64   `json:"ts"` // unix milliseconds
}

// BootstrapMessage is the one-time snapshot of all known positions sent
// immediately upon subscription.
type BootstrapMessage struct {
	Type string                        `json:"type"`
	Data map[string]model.LivePosition `json:"data"`
}

// subscriber is the minimal connection surface the hub needs. Satisfied by
// *websocket.Conn; tests substitute stalling and failing fakes.
type subscriber interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client pairs a connection with its outbound queue. All writes to the
// connection, queued messages and keepalive pings alike, go through the
// write pump so there is exactly one writer per connection.
type client struct {
	conn subscriber
	send chan []byte
	done chan struct{}
	stop sync.Once
}

// enqueue queues data for delivery, dropping it if the client's buffer is
// full. Never blocks.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Queue full: drop the update rather than stalling the caller.
		// Positions are overwritten anyway, and a connection that never
		// drains is reaped by the write deadline.
	}
}

// writePump drains the client's queue onto the connection and sends
// keepalive pings. Runs until the client is dropped or a write fails.
func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.Unsubscribe(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Unsubscribe(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub owns the live-position store and the set of open subscriber
// connections. Delivery is asynchronous: broadcasts enqueue onto per-client
// buffers and never perform network writes, so a stalled subscriber cannot
// block the simulator tick or position reads.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]bool
	positions map[string]model.LivePosition
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]bool),
		positions: make(map[string]model.LivePosition),
	}
}

// Subscribe registers a connection and queues the bootstrap snapshot of all
// known positions. The snapshot is queued before the client becomes visible
// to broadcasts, so it is always delivered first.
func (h *Hub) Subscribe(conn subscriber) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	boot := BootstrapMessage{Type: "bootstrap", Data: make(map[string]model.LivePosition, len(h.positions))}
	for id, p := range h.positions {
		boot.Data[id] = p
	}
	if data, err := json.Marshal(boot); err == nil {
		c.send <- data
	}
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	go c.writePump(h)

	metrics.WebSocketClients.Set(float64(total))
	slog.Info("ws client connected", "total", total)
	return c
}

// Unsubscribe removes a client and closes its connection. Safe to call
// twice.
func (h *Hub) Unsubscribe(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	c.stop.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	metrics.WebSocketClients.Set(float64(total))
}

// UpdatePosition overwrites a shipment's live position and broadcasts it to
// every subscriber. Used identically by simulator ticks and out-of-band
// GPS reports.
func (h *Hub) UpdatePosition(shipmentID string, lat, lng float64, at time.Time) {
	pos := model.LivePosition{Lat: lat, Lng: lng, TS: at.UnixMilli()}

	h.mu.Lock()
	h.positions[shipmentID] = pos
	h.mu.Unlock()

	data, err := json.Marshal(GPSMessage{
		Type:       "gps",
		ShipmentID: shipmentID,
		Lat:        lat,
		Lng:        lng,
		TS:         pos.TS,
	})
	if err != nil {
		return
	}
	h.broadcast(data)
}

// Position returns the last known position of a shipment.
func (h *Hub) Position(shipmentID string) (model.LivePosition, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.positions[shipmentID]
	return p, ok
}

// broadcast queues data for every subscriber. Clients with full buffers
// miss the message; failed connections are reaped by their write pumps.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(data)
	}
}

// ClientCount returns the number of open subscriber connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := h.Subscribe(conn)

	// Read pump: keep connection alive and detect disconnects. Pings are
	// sent by the write pump.
	go func() {
		defer h.Unsubscribe(c)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
