package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"drone_chat/internal/domain"
	"drone_chat/internal/metrics"
	"drone_chat/internal/protocol"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

// Store is the part of the conversation store the relay needs.
type Store interface {
	Append(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	History(ctx context.Context, conversationID string) ([]*domain.Message, error)
	UpdateStatus(ctx context.Context, conversationID string, messageIDs []string, status domain.MessageStatus, skipSenderType domain.Role) ([]string, error)
}

// OfflineNotifier is told about visitor messages that arrived while no admin was connected.
type OfflineNotifier interface {
	NotifyOffline(ctx context.Context, msg domain.Message)
}

const (
	notifyTimeout = 15 * time.Second
	// notifyInFlight caps concurrent offline notifications; extra ones are dropped.
	notifyInFlight = 8
)

// Router persists inbound messages, fans them out and tracks delivery and read state.
type Router struct {
	registry    *Registry
	store       Store
	notifier    OfflineNotifier
	notifySlots chan struct{}
	maxLen      int
	now         func() time.Time
	log         logger.Logger
}

func NewRouter(registry *Registry, store Store, notifier OfflineNotifier, maxLen int, now func() time.Time, log logger.Logger) *Router {
	return &Router{
		registry:    registry,
		store:       store,
		notifier:    notifier,
		notifySlots: make(chan struct{}, notifyInFlight),
		maxLen:      maxLen,
		now:         now,
		log:         log,
	}
}

// Submit stores the message, then forwards it to the other members of the conversation
// and acknowledges it to the sender. Whitespace-only bodies are dropped without a reply.
// On a store failure nothing is forwarded and the sender gets message-failed.
func (r *Router) Submit(ctx context.Context, sender Conn, p protocol.SendMessagePayload) error {
	body := strings.TrimSpace(p.Message)
	if body == "" {
		return nil
	}

	participant, ok := r.registry.Member(sender.ID(), p.ConversationID)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrNotJoined, p.ConversationID)
	}
	if r.maxLen > 0 && utf8.RuneCountInString(body) > r.maxLen {
		return fmt.Errorf("%w: message longer than %d characters", apperrors.ErrValidation, r.maxLen)
	}

	msg := &domain.Message{
		TempID:         p.TempID,
		ConversationID: p.ConversationID,
		SenderName:     participant.Name,
		SenderEmail:    participant.Email,
		SenderType:     participant.Role,
		Body:           body,
		Status:         domain.StatusSending,
		CreatedAt:      r.now().UTC(),
	}

	start := time.Now()
	stored, err := r.store.Append(ctx, msg)
	metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("append").Inc()
		r.log.Error("Failed to persist message", "error", err, "conversation_id", p.ConversationID, "temp_id", p.TempID)
		_ = sender.Send(protocol.Event{
			Name: protocol.EventMessageFailed,
			Data: protocol.MessageFailedPayload{
				TempID: p.TempID,
				Status: domain.StatusFailed,
				Error:  "message could not be saved",
			},
		})
		if !errors.Is(err, apperrors.ErrPersistence) {
			err = fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		return err
	}

	if len(r.registry.OppositeSide(stored.ConversationID, stored.SenderType)) > 0 {
		changed, err := r.store.UpdateStatus(ctx, stored.ConversationID, []string{stored.ID}, domain.StatusDelivered, "")
		if err != nil {
			metrics.PersistenceFailures.WithLabelValues("deliver").Inc()
			r.log.Warn("Failed to mark message delivered", "error", err, "message_id", stored.ID)
		} else if len(changed) == 1 {
			stored.Status = domain.StatusDelivered
		}
	}
	metrics.MessagesRelayed.WithLabelValues(string(stored.SenderType)).Inc()

	out := protocol.Event{Name: protocol.EventNewMessage, Data: stored}
	for _, peer := range r.registry.Peers(stored.ConversationID, sender.ID()) {
		if err := peer.Send(out); err != nil {
			r.log.Debug("Dropped new-message for closed connection", "connection_id", peer.ID(), "error", err)
		}
	}

	_ = sender.Send(protocol.Event{
		Name: protocol.EventMessageDelivered,
		Data: protocol.MessageDeliveredPayload{
			MessageID: stored.ID,
			TempID:    stored.TempID,
			Status:    stored.Status,
		},
	})

	if stored.SenderType == domain.RoleVisitor && r.notifier != nil && r.registry.AdminCount() == 0 {
		r.notifyOffline(*stored)
	}

	return nil
}

// notifyOffline hands msg to the notifier in the background with a deadline.
// When notifyInFlight calls are already running the notification is dropped.
func (r *Router) notifyOffline(msg domain.Message) {
	select {
	case r.notifySlots <- struct{}{}:
	default:
		metrics.NotificationsDropped.Inc()
		r.log.Warn("Offline notifier busy, dropping notification", "conversation_id", msg.ConversationID, "message_id", msg.ID)
		return
	}

	go func() {
		defer func() { <-r.notifySlots }()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		r.notifier.NotifyOffline(ctx, msg)
	}()
}

// MarkRead moves the listed messages to read and tells the other side which ones changed.
// Unknown ids, ids of other conversations, the reader's own messages and messages
// already read are skipped silently.
func (r *Router) MarkRead(ctx context.Context, reader Conn, p protocol.MarkReadPayload) error {
	participant, ok := r.registry.Member(reader.ID(), p.ConversationID)
	if !ok {
		r.log.Debug("Ignoring mark-read outside joined conversations", "connection_id", reader.ID(), "conversation_id", p.ConversationID)
		return nil
	}

	ids := uniqueIDs(p.MessageIDs)
	if len(ids) == 0 {
		return nil
	}

	changed, err := r.store.UpdateStatus(ctx, p.ConversationID, ids, domain.StatusRead, participant.Role)
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("read").Inc()
		r.log.Error("Failed to mark messages read", "error", err, "conversation_id", p.ConversationID)
		if !errors.Is(err, apperrors.ErrPersistence) {
			err = fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	metrics.ReadReceipts.Add(float64(len(changed)))

	out := protocol.Event{
		Name: protocol.EventMessagesRead,
		Data: protocol.MessagesReadPayload{ConversationID: p.ConversationID, MessageIDs: changed},
	}
	for _, conn := range r.registry.OppositeSide(p.ConversationID, participant.Role) {
		_ = conn.Send(out)
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
