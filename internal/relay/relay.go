// Package relay routes chat traffic between visitors and admins. It owns the
// connection registry and composes the message router, presence tracker and
// typing coordinator behind one facade used by the websocket transport.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drone_chat/internal/domain"
	"drone_chat/internal/metrics"
	"drone_chat/internal/protocol"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

type Options struct {
	MaxMessageLength int
	Notifier         OfflineNotifier
	Now              func() time.Time
}

type Relay struct {
	registry *Registry
	router   *Router
	presence *Presence
	typing   *Typing
	store    Store
	now      func() time.Time
	log      logger.Logger
}

func New(store Store, log logger.Logger, opts Options) *Relay {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log = log.With("component", "relay")
	registry := NewRegistry()
	return &Relay{
		registry: registry,
		router:   NewRouter(registry, store, opts.Notifier, opts.MaxMessageLength, opts.Now, log),
		presence: NewPresence(registry, log),
		typing:   NewTyping(registry),
		store:    store,
		now:      opts.Now,
		log:      log,
	}
}

// Join registers conn in the conversation, acknowledges it with joined, sends the
// conversation history and then announces the participant. A visitor joining
// without a conversation id gets a fresh one.
func (r *Relay) Join(ctx context.Context, conn Conn, p protocol.JoinPayload) (string, error) {
	identity := domain.Participant{
		Role:  p.User.Type,
		Name:  p.User.Name,
		Email: p.User.Email,
	}
	conversationID := strings.TrimSpace(p.ConversationID)
	if identity.Role == domain.RoleVisitor && conversationID == "" {
		conversationID = domain.NewVisitorConversationID(r.now())
	}

	change, err := r.registry.Join(conn, identity, conversationID)
	if err != nil {
		return "", err
	}

	_ = conn.Send(protocol.Event{
		Name: protocol.EventJoined,
		Data: protocol.JoinedPayload{ConversationID: conversationID, ConnectionID: conn.ID()},
	})

	if conversationID != "" {
		history, err := r.store.History(ctx, conversationID)
		if err != nil {
			metrics.PersistenceFailures.WithLabelValues("history").Inc()
			r.log.Error("Failed to load conversation history", "error", err, "conversation_id", conversationID)
			r.replyError(conn, fmt.Errorf("%w: history unavailable", apperrors.ErrPersistence), "")
		} else {
			if history == nil {
				history = []*domain.Message{}
			}
			_ = conn.Send(protocol.Event{Name: protocol.EventConversationHistory, Data: history})
		}
	}

	r.presence.Joined(conn, change)
	r.log.Debug("Participant joined",
		"connection_id", conn.ID(),
		"role", change.Participant.Role,
		"conversation_id", conversationID,
	)
	return conversationID, nil
}

// Leave drops conn from the registry and announces it. Calling it again is a no-op.
func (r *Relay) Leave(conn Conn) {
	change, ok := r.registry.Leave(conn.ID())
	if !ok {
		return
	}
	r.presence.Left(change)
	r.log.Debug("Participant left", "connection_id", conn.ID(), "role", change.Participant.Role)
}

// SendMessage handles send-message. Errors other than persistence failures are
// reported to the sender as an error event; persistence failures were already
// reported as message-failed.
func (r *Relay) SendMessage(ctx context.Context, conn Conn, p protocol.SendMessagePayload) error {
	err := r.router.Submit(ctx, conn, p)
	if err != nil && !errors.Is(err, apperrors.ErrPersistence) {
		r.replyError(conn, err, p.TempID)
	}
	return err
}

// MarkRead handles mark-read.
func (r *Relay) MarkRead(ctx context.Context, conn Conn, p protocol.MarkReadPayload) error {
	err := r.router.MarkRead(ctx, conn, p)
	if err != nil {
		r.replyError(conn, err, "")
	}
	return err
}

// Typing handles typing and stop-typing.
func (r *Relay) Typing(conn Conn, event string, p protocol.TypingPayload) {
	r.typing.Relay(conn, event, p.ConversationID)
}

// Status reports whether any admin is connected along with current counts.
func (r *Relay) Status() (adminOnline bool, admins, visitors int) {
	admins, visitors = r.registry.Counts()
	return admins > 0, admins, visitors
}

// ReplyError sends err to conn as an error event.
func (r *Relay) ReplyError(conn Conn, err error, tempID string) {
	r.replyError(conn, err, tempID)
}

// Shutdown closes every registered connection.
func (r *Relay) Shutdown() {
	conns := r.registry.All()
	for _, c := range conns {
		c.Close()
	}
	r.log.Info("Relay closed connections", "count", len(conns))
}

func (r *Relay) replyError(conn Conn, err error, tempID string) {
	_ = conn.Send(protocol.Event{
		Name: protocol.EventError,
		Data: protocol.ErrorPayload{
			Code:    apperrors.Code(err),
			Message: err.Error(),
			TempID:  tempID,
		},
	})
}
