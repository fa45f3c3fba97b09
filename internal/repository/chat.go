package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"drone_chat/internal/domain"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

// ChatRepository is the durable, append-only message history of every conversation.
type ChatRepository interface {
	// Append stores msg with status sent, assigning a server id when msg.ID is empty.
	Append(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	// History returns every message of the conversation in insertion order.
	History(ctx context.Context, conversationID string) ([]*domain.Message, error)
	// UpdateStatus moves the listed messages of the conversation to status, skipping
	// messages authored by skipSenderType (when set) and messages whose current status
	// cannot advance to status. It returns the ids that changed, in input order.
	UpdateStatus(ctx context.Context, conversationID string, messageIDs []string, status domain.MessageStatus, skipSenderType domain.Role) ([]string, error)
	// ListConversations returns inbox rows ordered by latest activity.
	ListConversations(ctx context.Context, limit, offset int) ([]*domain.ConversationSummary, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log.With("component", "chat-store", "backend", "postgres")}
}

// prepareAppend fills server side fields on a copy of msg.
func prepareAppend(msg *domain.Message) (*domain.Message, error) {
	if msg == nil || strings.TrimSpace(msg.ConversationID) == "" {
		return nil, fmt.Errorf("%w: message without conversation", apperrors.ErrValidation)
	}
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.Status = domain.StatusSent
	return &stored, nil
}

func statusStrings(statuses []domain.MessageStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// inInputOrder filters ids down to those present in changed, keeping the order of ids.
func inInputOrder(ids []string, changed map[string]struct{}) []string {
	out := make([]string, 0, len(changed))
	seen := make(map[string]struct{}, len(changed))
	for _, id := range ids {
		if _, ok := changed[id]; !ok {
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

func (r *chatRepository) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	stored, err := prepareAppend(msg)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO chat_messages (id, conversation_id, temp_id, sender_name, sender_email, sender_type, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err = r.db.QueryRow(ctx, query,
		stored.ID, stored.ConversationID, stored.TempID, stored.SenderName, stored.SenderEmail,
		string(stored.SenderType), stored.Body, string(stored.Status), stored.CreatedAt,
	).Scan(&stored.CreatedAt)
	if err != nil {
		r.log.Error("Failed to append message", "error", err, "conversation_id", stored.ConversationID)
		return nil, fmt.Errorf("%w: append message: %v", apperrors.ErrPersistence, err)
	}

	return stored, nil
}

func (r *chatRepository) History(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, temp_id, sender_name, sender_email, sender_type, body, status, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		r.log.Error("Failed to load history", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("%w: load history: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg := &domain.Message{}
		var senderType, status string
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.TempID, &msg.SenderName, &msg.SenderEmail,
			&senderType, &msg.Body, &status, &msg.CreatedAt,
		); err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("%w: scan message: %v", apperrors.ErrPersistence, err)
		}
		msg.SenderType = domain.Role(senderType)
		msg.Status = domain.MessageStatus(status)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate history: %v", apperrors.ErrPersistence, err)
	}

	return messages, nil
}

// statusUpdateArgs builds the parameters of updateStatusQuery. It reports false
// when no message could change, so the round trip can be skipped.
func statusUpdateArgs(conversationID string, messageIDs []string, status domain.MessageStatus, skipSenderType domain.Role) ([]interface{}, bool) {
	allowed := status.Predecessors()
	if len(messageIDs) == 0 || len(allowed) == 0 {
		return nil, false
	}
	return []interface{}{
		string(status),
		conversationID,
		messageIDs,
		statusStrings(allowed),
		string(skipSenderType),
	}, true
}

const updateStatusQuery = `
	UPDATE chat_messages
	SET status = $1, updated_at = now()
	WHERE conversation_id = $2
	  AND id = ANY($3)
	  AND status = ANY($4)
	  AND ($5::text = '' OR sender_type <> $5::text)
	RETURNING id
`

func (r *chatRepository) UpdateStatus(ctx context.Context, conversationID string, messageIDs []string, status domain.MessageStatus, skipSenderType domain.Role) ([]string, error) {
	args, ok := statusUpdateArgs(conversationID, messageIDs, status, skipSenderType)
	if !ok {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, updateStatusQuery, args...)
	if err != nil {
		r.log.Error("Failed to update message status", "error", err, "conversation_id", conversationID, "status", status)
		return nil, fmt.Errorf("%w: update status: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	changed := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan updated id: %v", apperrors.ErrPersistence, err)
		}
		changed[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: update status: %v", apperrors.ErrPersistence, err)
	}

	return inInputOrder(messageIDs, changed), nil
}

func (r *chatRepository) ListConversations(ctx context.Context, limit, offset int) ([]*domain.ConversationSummary, error) {
	query := `
		SELECT c.conversation_id,
		       COALESCE(v.sender_name, ''), COALESCE(v.sender_email, ''),
		       l.body, l.sender_type, l.created_at,
		       c.message_count, c.unread_count
		FROM (
			SELECT conversation_id,
			       COUNT(*) AS message_count,
			       COUNT(*) FILTER (WHERE sender_type = 'visitor' AND status <> 'read') AS unread_count,
			       MAX(seq) AS last_seq
			FROM chat_messages
			GROUP BY conversation_id
		) c
		JOIN chat_messages l ON l.seq = c.last_seq
		LEFT JOIN LATERAL (
			SELECT sender_name, sender_email
			FROM chat_messages
			WHERE conversation_id = c.conversation_id AND sender_type = 'visitor'
			ORDER BY seq ASC
			LIMIT 1
		) v ON true
		ORDER BY l.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err)
		return nil, fmt.Errorf("%w: list conversations: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	summaries := make([]*domain.ConversationSummary, 0)
	for rows.Next() {
		s := &domain.ConversationSummary{}
		var lastSender string
		if err := rows.Scan(
			&s.ConversationID, &s.VisitorName, &s.VisitorEmail,
			&s.LastMessage, &lastSender, &s.LastMessageAt,
			&s.MessageCount, &s.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("%w: scan conversation: %v", apperrors.ErrPersistence, err)
		}
		s.LastSenderType = domain.Role(lastSender)
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
