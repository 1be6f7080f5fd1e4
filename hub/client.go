package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config bounds the transport behaviour of every client connection.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 256,
	}
}

// Client is one open duplex channel. All outbound traffic goes through
// the buffered send channel so that a single write pump owns the socket;
// this also gives each recipient FIFO delivery of whatever was enqueued.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	cfg  Config
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, conn *websocket.Conn, cfg Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, cfg.SendBufferSize),
		cfg:  cfg,
		log:  log,
	}
}

// Outbound exposes the send channel for tests and the write pump.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Enqueue hands a payload to the write pump without blocking. It reports
// false when the client is already closed or its buffer is full; callers
// treat that as a logged, dropped send, never as a fatal condition.
func (c *Client) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close marks the client dead and closes the send channel exactly once,
// which stops the write pump. Safe to call from any goroutine.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump consumes inbound frames and hands them to the protocol
// handler. It returns when the peer disconnects or the read deadline
// expires; cleanup is the caller's responsibility via the done callback.
func (c *Client) ReadPump(handle func([]byte), done func()) {
	defer func() {
		done()
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected websocket close", "client_id", c.ID, "error", err)
			}
			return
		}
		handle(payload)
	}
}

// WritePump drains the send channel onto the socket and keeps the
// connection alive with pings. It exits when the send channel is closed
// or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write failed", "client_id", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
