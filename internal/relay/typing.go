package relay

import (
	"drone_chat/internal/protocol"
)

// Typing forwards typing indicators to the other side of a conversation.
// Indicators are never stored.
type Typing struct {
	registry *Registry
}

func NewTyping(registry *Registry) *Typing {
	return &Typing{registry: registry}
}

// Relay forwards event (typing or stop-typing) from conn. Connections that did
// not join the conversation are ignored.
func (t *Typing) Relay(conn Conn, event string, conversationID string) {
	participant, ok := t.registry.Member(conn.ID(), conversationID)
	if !ok {
		return
	}
	out := protocol.Event{
		Name: event,
		Data: protocol.TypingPayload{
			ConversationID: conversationID,
			User: protocol.User{
				Name:  participant.Name,
				Email: participant.Email,
				Type:  participant.Role,
			},
		},
	}
	for _, c := range t.registry.OppositeSide(conversationID, participant.Role) {
		_ = c.Send(out)
	}
}
