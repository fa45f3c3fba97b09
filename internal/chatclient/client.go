// Package chatclient is a Go client for the chat websocket: a dialer with a
// typed event stream, an optimistic outbox that reconciles messages by tempId,
// and a typing debouncer.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"drone_chat/internal/domain"
	"drone_chat/internal/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	eventBuffer      = 256
)

var ErrClosed = errors.New("chat client closed")

// Client is one websocket session. Events from the server arrive on Events()
// in order; the channel is closed when the connection ends.
type Client struct {
	ws     *websocket.Conn
	events chan protocol.Envelope

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}

	errMu sync.Mutex
	err   error
}

// Dial connects to url (ws:// or wss://). A non-empty token is sent as a bearer
// token so the server treats the connection as an admin.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c := &Client{
		ws:     ws,
		events: make(chan protocol.Envelope, eventBuffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Events() <-chan protocol.Envelope {
	return c.events
}

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) Join(conversationID string, user protocol.User) error {
	return c.Emit(protocol.EventJoin, protocol.JoinPayload{ConversationID: conversationID, User: user})
}

func (c *Client) SendMessage(p protocol.SendMessagePayload) error {
	return c.Emit(protocol.EventSendMessage, p)
}

func (c *Client) MarkRead(conversationID string, messageIDs []string) error {
	return c.Emit(protocol.EventMarkRead, protocol.MarkReadPayload{ConversationID: conversationID, MessageIDs: messageIDs})
}

// Typing emits typing when active is true and stop-typing otherwise.
func (c *Client) Typing(conversationID string, user protocol.User, active bool) error {
	event := protocol.EventStopTyping
	if active {
		event = protocol.EventTyping
	}
	return c.Emit(event, protocol.TypingPayload{ConversationID: conversationID, User: user})
}

// Emit writes one event frame.
func (c *Client) Emit(name string, payload interface{}) error {
	frame, err := protocol.Event{Name: name, Data: payload}.Encode()
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

// NewConversationID returns a fresh visitor conversation id.
func NewConversationID() string {
	return domain.NewVisitorConversationID(time.Now())
}
