package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Role is the side of the conversation a participant speaks for.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleVisitor || r == RoleAdmin
}

// Opposite returns the role on the other side of a conversation.
func (r Role) Opposite() Role {
	if r == RoleAdmin {
		return RoleVisitor
	}
	return RoleAdmin
}

// MessageStatus advances sending -> sent -> delivered -> read.
// failed is terminal and reachable from sending or sent.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanAdvanceTo reports whether a message in status s may move to next.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	if s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return s == StatusSending || s == StatusSent
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Predecessors lists every status that may advance to s.
// Stores use it to express the monotonic update as a single conditional write.
func (s MessageStatus) Predecessors() []MessageStatus {
	var out []MessageStatus
	for _, candidate := range []MessageStatus{StatusSending, StatusSent, StatusDelivered, StatusRead} {
		if candidate.CanAdvanceTo(s) {
			out = append(out, candidate)
		}
	}
	return out
}

// Message is one chat line in a conversation.
type Message struct {
	ID             string        `json:"id"`
	TempID         string        `json:"tempId,omitempty"`
	ConversationID string        `json:"conversationId"`
	SenderName     string        `json:"senderName"`
	SenderEmail    string        `json:"senderEmail,omitempty"`
	SenderType     Role          `json:"senderType"`
	Body           string        `json:"message"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Participant is a connected visitor or admin. It lives as long as its connection.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	Role         Role   `json:"type"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
}

// ConversationSummary is one row of the admin inbox.
type ConversationSummary struct {
	ConversationID string    `json:"conversationId"`
	VisitorName    string    `json:"visitorName,omitempty"`
	VisitorEmail   string    `json:"visitorEmail,omitempty"`
	LastMessage    string    `json:"lastMessage"`
	LastSenderType Role      `json:"lastSenderType"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	MessageCount   int       `json:"messageCount"`
	UnreadCount    int       `json:"unreadCount"`
}

const visitorIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewVisitorConversationID returns an id of the form visitor-<unix ms>-<9 random chars>.
func NewVisitorConversationID(now time.Time) string {
	suffix := make([]byte, 9)
	max := big.NewInt(int64(len(visitorIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(int64(now.UnixNano()+int64(i)) % max.Int64())
		}
		suffix[i] = visitorIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("visitor-%d-%s", now.UnixMilli(), suffix)
}
