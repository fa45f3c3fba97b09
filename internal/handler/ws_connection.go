package handler

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"drone_chat/internal/protocol"
	"drone_chat/pkg/logger"
)

const writeWait = 10 * time.Second

var (
	errConnectionClosed = errors.New("connection closed")
	errSendBufferFull   = errors.New("connection send buffer exceeded")
)

// wsConnection owns the write side of one websocket. Events are queued on a
// buffered channel and written by a single goroutine, so Send never blocks.
type wsConnection struct {
	id         string
	ws         *websocket.Conn
	send       chan []byte
	pingPeriod time.Duration
	log        logger.Logger

	mu        sync.RWMutex
	closed    bool
	closeCode int
	done      chan struct{}
}

func newWSConnection(ws *websocket.Conn, buffer int, pingPeriod time.Duration, log logger.Logger) *wsConnection {
	id := uuid.NewString()
	return &wsConnection{
		id:         id,
		ws:         ws,
		send:       make(chan []byte, buffer),
		pingPeriod: pingPeriod,
		log:        log.With("connection_id", id),
		done:       make(chan struct{}),
	}
}

func (c *wsConnection) ID() string { return c.id }

// Start launches the write loop. Call it once.
func (c *wsConnection) Start() {
	go c.writeLoop()
}

// Send queues event for the client. A client that falls a full buffer behind is disconnected.
func (c *wsConnection) Send(event protocol.Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errConnectionClosed
	}
	select {
	case c.send <- payload:
		c.mu.RUnlock()
		return nil
	default:
		c.mu.RUnlock()
		c.log.Warn("Send buffer full, dropping client", "event", event.Name)
		c.abort()
		return errSendBufferFull
	}
}

// Close asks the write loop to send a close frame and release the socket.
func (c *wsConnection) Close() {
	c.markClosed(websocket.CloseNormalClosure)
}

// abort drops the socket without a close frame. The write loop may be stuck
// writing to this client, so nothing here may wait on the write lock.
func (c *wsConnection) abort() {
	if c.markClosed(websocket.CloseGoingAway) {
		_ = c.ws.Close()
	}
}

func (c *wsConnection) markClosed(code int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode = code
	close(c.done)
	return true
}

func (c *wsConnection) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.mu.RLock()
			code := c.closeCode
			c.mu.RUnlock()
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(writeWait))
			return
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.markClosed(websocket.CloseGoingAway)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.markClosed(websocket.CloseGoingAway)
				return
			}
		}
	}
}

func (c *wsConnection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
