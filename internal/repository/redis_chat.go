package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"drone_chat/internal/domain"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

const (
	chatMessagesKey      = "chat:conversation:%s:messages"
	chatMessageKey       = "chat:message:%s"
	chatConversationsKey = "chat:conversations"
)

// advanceStatusScript applies a status change only when the message belongs to the
// conversation, was not authored by the skipped sender type and its current status
// is one of the allowed predecessors.
//
// KEYS[1] message hash
// ARGV[1] conversation id, ARGV[2] target status, ARGV[3] skipped sender type,
// ARGV[4..] allowed current statuses
var advanceStatusScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
if redis.call('HGET', KEYS[1], 'conversation_id') ~= ARGV[1] then return 0 end
if ARGV[3] ~= '' and redis.call('HGET', KEYS[1], 'sender_type') == ARGV[3] then return 0 end
local current = redis.call('HGET', KEYS[1], 'status')
for i = 4, #ARGV do
	if current == ARGV[i] then
		redis.call('HSET', KEYS[1], 'status', ARGV[2])
		return 1
	end
end
return 0
`)

type redisChatRepository struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

// NewRedisChatRepository stores each message as a hash and each conversation as a
// list of message ids. A positive ttl expires idle conversations.
func NewRedisChatRepository(rdb *redis.Client, ttl time.Duration, log logger.Logger) ChatRepository {
	return &redisChatRepository{
		rdb: rdb,
		ttl: ttl,
		log: log.With("component", "chat-store", "backend", "redis"),
	}
}

func (r *redisChatRepository) messagesKey(conversationID string) string {
	return fmt.Sprintf(chatMessagesKey, conversationID)
}

func (r *redisChatRepository) messageKey(id string) string {
	return fmt.Sprintf(chatMessageKey, id)
}

func (r *redisChatRepository) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	stored, err := prepareAppend(msg)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal message: %v", apperrors.ErrPersistence, err)
	}

	listKey := r.messagesKey(stored.ConversationID)
	msgKey := r.messageKey(stored.ID)

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, msgKey,
			"data", data,
			"status", string(stored.Status),
			"conversation_id", stored.ConversationID,
			"sender_type", string(stored.SenderType),
		)
		pipe.RPush(ctx, listKey, stored.ID)
		pipe.ZAdd(ctx, chatConversationsKey, redis.Z{
			Score:  float64(stored.CreatedAt.UnixMilli()),
			Member: stored.ConversationID,
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, msgKey, r.ttl)
			pipe.Expire(ctx, listKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to append message to Redis", "error", err, "conversation_id", stored.ConversationID)
		return nil, fmt.Errorf("%w: append message: %v", apperrors.ErrPersistence, err)
	}

	return stored, nil
}

func (r *redisChatRepository) History(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	ids, err := r.rdb.LRange(ctx, r.messagesKey(conversationID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.log.Error("Failed to load history from Redis", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("%w: load history: %v", apperrors.ErrPersistence, err)
	}
	if len(ids) == 0 {
		return []*domain.Message{}, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, r.messageKey(id), "data", "status")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: load messages: %v", apperrors.ErrPersistence, err)
	}

	messages := make([]*domain.Message, 0, len(ids))
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) != 2 {
			r.log.Warn("Skipping unreadable message", "message_id", ids[i], "error", err)
			continue
		}
		data, ok := vals[0].(string)
		if !ok {
			// expired hash, id still listed
			continue
		}
		var msg domain.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			r.log.Warn("Failed to unmarshal message", "message_id", ids[i], "error", err)
			continue
		}
		if status, ok := vals[1].(string); ok {
			msg.Status = domain.MessageStatus(status)
		}
		messages = append(messages, &msg)
	}

	return messages, nil
}

func (r *redisChatRepository) UpdateStatus(ctx context.Context, conversationID string, messageIDs []string, status domain.MessageStatus, skipSenderType domain.Role) ([]string, error) {
	allowed := status.Predecessors()
	if len(messageIDs) == 0 || len(allowed) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, 3+len(allowed))
	args = append(args, conversationID, string(status), string(skipSenderType))
	for _, s := range allowed {
		args = append(args, string(s))
	}

	changed := make(map[string]struct{})
	for _, id := range messageIDs {
		n, err := advanceStatusScript.Run(ctx, r.rdb, []string{r.messageKey(id)}, args...).Int()
		if err != nil {
			r.log.Error("Failed to update message status", "error", err, "message_id", id, "status", status)
			return nil, fmt.Errorf("%w: update status: %v", apperrors.ErrPersistence, err)
		}
		if n == 1 {
			changed[id] = struct{}{}
		}
	}

	return inInputOrder(messageIDs, changed), nil
}

func (r *redisChatRepository) ListConversations(ctx context.Context, limit, offset int) ([]*domain.ConversationSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, chatConversationsKey, int64(offset), stop).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.log.Error("Failed to list conversations", "error", err)
		return nil, fmt.Errorf("%w: list conversations: %v", apperrors.ErrPersistence, err)
	}

	summaries := make([]*domain.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		history, err := r.History(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			// history expired; drop the index entry lazily
			r.rdb.ZRem(ctx, chatConversationsKey, id)
			continue
		}
		summaries = append(summaries, summarize(id, history))
	}
	return summaries, nil
}
