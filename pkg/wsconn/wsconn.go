// Package wsconn wraps a websocket connection with a bounded outbound queue
// drained by a single writer goroutine, so senders never block on a slow peer.
package wsconn

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed    = errors.New("connection closed")
	ErrQueueFull = errors.New("send queue full")
)

type DropPolicy string

const (
	// DropOldest discards the oldest queued frame to make room for the new one.
	DropOldest DropPolicy = "drop-oldest"
	// Disconnect closes the connection once its queue overflows.
	Disconnect DropPolicy = "disconnect"
)

const (
	CloseSlowConsumer = 4008
	CloseReplaced     = 4009
)

type Options struct {
	QueueSize      int
	Policy         DropPolicy
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	OnDrop         func()
}

func (o *Options) setDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Policy == "" {
		o.Policy = DropOldest
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
}

type Conn struct {
	ws    *websocket.Conn
	opts  Options
	queue chan []byte
	done  chan struct{}

	mu          sync.Mutex
	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func New(ws *websocket.Conn, opts Options) *Conn {
	opts.setDefaults()
	c := newConn(ws, opts)

	ws.SetReadLimit(opts.MaxMessageSize)
	if opts.PongTimeout > 0 {
		ws.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		})
	}

	go c.writePump()

	return c
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	return &Conn{
		ws:        ws,
		opts:      opts,
		queue:     make(chan []byte, opts.QueueSize),
		done:      make(chan struct{}),
		closeCode: websocket.CloseNormalClosure,
	}
}

// Send marshals v and enqueues it without blocking.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.queue <- data:
		return nil
	default:
	}

	c.dropped()
	if c.opts.Policy == Disconnect {
		c.close(CloseSlowConsumer, "send queue overflow")
		return ErrQueueFull
	}

	select {
	case <-c.queue:
	default:
	}

	select {
	case c.queue <- data:
	default:
	}

	return nil
}

func (c *Conn) dropped() {
	if c.opts.OnDrop != nil {
		c.opts.OnDrop()
	}
}

func (c *Conn) ReadJSON(v any) error {
	return c.ws.ReadJSON(v)
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close flushes queued frames, sends a close frame with code and reason and closes the socket.
func (c *Conn) Close(code int, reason string) {
	c.close(code, reason)
}

func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

func (c *Conn) write(data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) writePump() {
	var pingC <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	defer c.ws.Close()

	for {
		select {
		case data := <-c.queue:
			if err := c.write(data); err != nil {
				c.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-pingC:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-c.done:
			c.flush()
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeReason),
				time.Now().Add(c.opts.WriteTimeout),
			)
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case data := <-c.queue:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
