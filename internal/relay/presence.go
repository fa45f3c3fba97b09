package relay

import (
	"sync"

	"drone_chat/internal/domain"
	"drone_chat/internal/metrics"
	"drone_chat/internal/protocol"
	"drone_chat/pkg/logger"
)

// Presence turns registry changes into visitor-connected/disconnected and
// admin-online/offline notifications. Announcements are serialized, and the
// admin signal always follows the registry's live admin count, so a leave and
// a join racing each other cannot leave visitors showing the wrong state.
type Presence struct {
	registry *Registry
	log      logger.Logger

	mu          sync.Mutex
	adminOnline bool
}

func NewPresence(registry *Registry, log logger.Logger) *Presence {
	return &Presence{registry: registry, log: log}
}

// Joined announces a newly registered connection. Repeated joins on an
// existing connection announce nothing.
func (p *Presence) Joined(conn Conn, change JoinChange) {
	if !change.NewConnection {
		return
	}
	metrics.RecordConnectionJoined(string(change.Participant.Role))

	p.mu.Lock()
	defer p.mu.Unlock()

	switch change.Participant.Role {
	case domain.RoleVisitor:
		p.broadcast(p.registry.ByRole(domain.RoleAdmin), protocol.Event{
			Name: protocol.EventVisitorConnected,
			Data: protocol.VisitorDescriptor{
				ConnectionID:   change.Participant.ConnectionID,
				ConversationID: change.ConversationID,
				Name:           change.Participant.Name,
				Email:          change.Participant.Email,
			},
		})
		// a flip was already broadcast to every visitor, this one included
		if !p.syncAdminSignal() && p.adminOnline {
			_ = conn.Send(protocol.Event{Name: protocol.EventAdminOnline})
		}

	case domain.RoleAdmin:
		p.syncAdminSignal()
		// backfill the roster for the new admin
		for _, v := range p.registry.Visitors() {
			_ = conn.Send(protocol.Event{
				Name: protocol.EventVisitorConnected,
				Data: protocol.VisitorDescriptor{
					ConnectionID:   v.Participant.ConnectionID,
					ConversationID: v.ConversationID,
					Name:           v.Participant.Name,
					Email:          v.Participant.Email,
				},
			})
		}
	}
}

// Left announces a removed connection.
func (p *Presence) Left(change LeaveChange) {
	metrics.RecordConnectionLeft(string(change.Participant.Role))

	p.mu.Lock()
	defer p.mu.Unlock()

	switch change.Participant.Role {
	case domain.RoleVisitor:
		admins := p.registry.ByRole(domain.RoleAdmin)
		for _, conversationID := range change.Conversations {
			p.broadcast(admins, protocol.Event{
				Name: protocol.EventVisitorDisconnected,
				Data: protocol.VisitorDisconnectedPayload{
					ConnectionID:   change.Participant.ConnectionID,
					ConversationID: conversationID,
				},
			})
		}

	case domain.RoleAdmin:
		p.syncAdminSignal()
	}
}

// syncAdminSignal tells visitors about an admin-online/offline flip relative to
// the last announcement and reports whether it broadcast one. Callers hold p.mu.
func (p *Presence) syncAdminSignal() bool {
	online := p.registry.AdminCount() > 0
	if online == p.adminOnline {
		return false
	}
	p.adminOnline = online

	event := protocol.Event{Name: protocol.EventAdminOffline}
	if online {
		event.Name = protocol.EventAdminOnline
	}
	p.broadcast(p.registry.ByRole(domain.RoleVisitor), event)
	return true
}

func (p *Presence) broadcast(conns []Conn, event protocol.Event) {
	metrics.RecordPresence(event.Name)
	for _, c := range conns {
		if err := c.Send(event); err != nil {
			p.log.Debug("Dropped presence event", "event", event.Name, "connection_id", c.ID(), "error", err)
		}
	}
}
