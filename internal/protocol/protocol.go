// Package protocol defines the chat wire format shared by the websocket
// transport and the Go client. Every frame is an Envelope whose Data is the
// JSON payload of the named event.
package protocol

import (
	"encoding/json"
	"fmt"

	"drone_chat/internal/domain"
)

// Client to server events.
const (
	EventJoin        = "join"
	EventSendMessage = "send-message"
	EventMarkRead    = "mark-read"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
)

// Server to client events.
const (
	EventJoined              = "joined"
	EventConversationHistory = "conversation-history"
	EventNewMessage          = "new-message"
	EventMessageDelivered    = "message-delivered"
	EventMessageFailed       = "message-failed"
	EventMessagesRead        = "messages-read"
	EventAdminOnline         = "admin-online"
	EventAdminOffline        = "admin-offline"
	EventVisitorConnected    = "visitor-connected"
	EventVisitorDisconnected = "visitor-disconnected"
	EventError               = "error"
)

// Envelope is one websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound event before encoding.
type Event struct {
	Name string
	Data interface{}
}

// Encode renders e as an Envelope frame.
func (e Event) Encode() ([]byte, error) {
	env := Envelope{Event: e.Name}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", e.Name, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses env.Data into v.
func (env Envelope) Decode(v interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("event %s has no payload", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return nil
}

type User struct {
	Name  string      `json:"name"`
	Email string      `json:"email,omitempty"`
	Type  domain.Role `json:"type"`
}

type JoinPayload struct {
	ConversationID string `json:"conversationId"`
	User           User   `json:"user"`
}

type JoinedPayload struct {
	ConversationID string `json:"conversationId"`
	ConnectionID   string `json:"connectionId"`
}

type SendMessagePayload struct {
	TempID         string      `json:"tempId"`
	ConversationID string      `json:"conversationId"`
	SenderName     string      `json:"senderName"`
	SenderEmail    string      `json:"senderEmail,omitempty"`
	SenderType     domain.Role `json:"senderType"`
	Message        string      `json:"message"`
}

type MessageDeliveredPayload struct {
	MessageID string               `json:"messageId"`
	TempID    string               `json:"tempId"`
	Status    domain.MessageStatus `json:"status"`
}

type MessageFailedPayload struct {
	TempID string               `json:"tempId"`
	Status domain.MessageStatus `json:"status"`
	Error  string               `json:"error"`
}

type MarkReadPayload struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

type MessagesReadPayload struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	User           User   `json:"user"`
}

// VisitorDescriptor is what admins learn about a connecting visitor.
type VisitorDescriptor struct {
	ConnectionID   string `json:"connectionId"`
	ConversationID string `json:"conversationId"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
}

type VisitorDisconnectedPayload struct {
	ConnectionID   string `json:"connectionId"`
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}
