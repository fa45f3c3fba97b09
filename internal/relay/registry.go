package relay

import (
	"fmt"
	"strings"
	"sync"

	"drone_chat/internal/domain"
	"drone_chat/internal/protocol"
	apperrors "drone_chat/pkg/errors"
)

// Conn is a live client connection as seen by the relay.
// Send must not block; a push to a closed connection is dropped.
type Conn interface {
	ID() string
	Send(event protocol.Event) error
	Close()
}

type member struct {
	conn          Conn
	participant   domain.Participant
	conversations map[string]struct{}
}

// JoinChange describes the effect of a successful Join.
type JoinChange struct {
	Participant    domain.Participant
	ConversationID string
	// NewConnection is false when the connection was already registered
	// (an admin observing one more conversation, or a repeated join).
	NewConnection bool
	AdminsBefore  int
	AdminsAfter   int
}

// LeaveChange describes the effect of a successful Leave.
type LeaveChange struct {
	Participant   domain.Participant
	Conversations []string
	AdminsAfter   int
}

// VisitorEntry is a connected visitor and the conversation it joined.
type VisitorEntry struct {
	Participant    domain.Participant
	ConversationID string
}

// Registry maps live connections to participants and conversations to members.
// All mutations happen under one lock, so concurrent joins and leaves never lose updates.
type Registry struct {
	mu            sync.RWMutex
	members       map[string]*member
	conversations map[string]map[string]*member
	admins        int
}

func NewRegistry() *Registry {
	return &Registry{
		members:       make(map[string]*member),
		conversations: make(map[string]map[string]*member),
	}
}

// Join registers conn with identity and adds it to conversationID.
// Admins may pass an empty conversationID to register for presence only.
func (r *Registry) Join(conn Conn, identity domain.Participant, conversationID string) (JoinChange, error) {
	identity.ConnectionID = conn.ID()
	identity.Name = strings.TrimSpace(identity.Name)
	identity.Email = strings.TrimSpace(identity.Email)
	conversationID = strings.TrimSpace(conversationID)

	if !identity.Role.Valid() {
		return JoinChange{}, fmt.Errorf("%w: unknown participant type %q", apperrors.ErrValidation, identity.Role)
	}
	if identity.Role == domain.RoleVisitor {
		if identity.Name == "" {
			return JoinChange{}, fmt.Errorf("%w: visitor name is required", apperrors.ErrValidation)
		}
		if conversationID == "" {
			return JoinChange{}, fmt.Errorf("%w: conversation id is required", apperrors.ErrValidation)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	change := JoinChange{ConversationID: conversationID, AdminsBefore: r.admins}

	m, exists := r.members[identity.ConnectionID]
	if exists {
		if m.participant.Role != identity.Role {
			return JoinChange{}, fmt.Errorf("%w: connection already joined as %s", apperrors.ErrValidation, m.participant.Role)
		}
		if identity.Role == domain.RoleVisitor {
			if _, same := m.conversations[conversationID]; !same {
				return JoinChange{}, fmt.Errorf("%w: visitor connection already joined another conversation", apperrors.ErrValidation)
			}
		}
	} else {
		m = &member{
			conn:          conn,
			participant:   identity,
			conversations: make(map[string]struct{}),
		}
		r.members[identity.ConnectionID] = m
		if identity.Role == domain.RoleAdmin {
			r.admins++
		}
		change.NewConnection = true
	}

	if conversationID != "" {
		room := r.conversations[conversationID]
		if room == nil {
			room = make(map[string]*member)
			r.conversations[conversationID] = room
		}
		room[identity.ConnectionID] = m
		m.conversations[conversationID] = struct{}{}
	}

	change.Participant = m.participant
	change.AdminsAfter = r.admins
	return change, nil
}

// Leave removes the connection and all its memberships.
// It reports false when the connection was not registered, so repeated calls are no-ops.
func (r *Registry) Leave(connID string) (LeaveChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return LeaveChange{}, false
	}
	delete(r.members, connID)
	if m.participant.Role == domain.RoleAdmin {
		r.admins--
	}

	change := LeaveChange{Participant: m.participant}
	for conversationID := range m.conversations {
		change.Conversations = append(change.Conversations, conversationID)
		room := r.conversations[conversationID]
		delete(room, connID)
		if len(room) == 0 {
			delete(r.conversations, conversationID)
		}
	}
	change.AdminsAfter = r.admins
	return change, true
}

// Member returns the participant behind connID if it joined conversationID.
func (r *Registry) Member(connID, conversationID string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.conversations[conversationID][connID]
	if !ok {
		return domain.Participant{}, false
	}
	return m.participant, true
}

// Peers returns every connection on the conversation except excludeConnID.
func (r *Registry) Peers(conversationID, excludeConnID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.conversations[conversationID]
	out := make([]Conn, 0, len(room))
	for id, m := range room {
		if id == excludeConnID {
			continue
		}
		out = append(out, m.conn)
	}
	return out
}

// OppositeSide returns the connections on the conversation held by the other role.
func (r *Registry) OppositeSide(conversationID string, role domain.Role) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	other := role.Opposite()
	room := r.conversations[conversationID]
	out := make([]Conn, 0, len(room))
	for _, m := range room {
		if m.participant.Role == other {
			out = append(out, m.conn)
		}
	}
	return out
}

// ByRole returns every registered connection with the given role.
func (r *Registry) ByRole(role domain.Role) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0)
	for _, m := range r.members {
		if m.participant.Role == role {
			out = append(out, m.conn)
		}
	}
	return out
}

// Visitors lists connected visitors with their conversation.
func (r *Registry) Visitors() []VisitorEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]VisitorEntry, 0)
	for _, m := range r.members {
		if m.participant.Role != domain.RoleVisitor {
			continue
		}
		for conversationID := range m.conversations {
			out = append(out, VisitorEntry{Participant: m.participant, ConversationID: conversationID})
		}
	}
	return out
}

func (r *Registry) AdminCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins
}

// Counts returns the number of registered admins and visitors.
func (r *Registry) Counts() (admins, visitors int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins, len(r.members) - r.admins
}

// All returns every registered connection.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.conn)
	}
	return out
}
