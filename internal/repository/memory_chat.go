package repository

import (
	"context"
	"sort"
	"sync"

	"drone_chat/internal/domain"
	"drone_chat/pkg/logger"
)

// memoryChatRepository keeps history in process. Used for development and tests.
type memoryChatRepository struct {
	mu            sync.RWMutex
	conversations map[string][]*domain.Message
	byID          map[string]*domain.Message
	log           logger.Logger
}

func NewMemoryChatRepository(log logger.Logger) ChatRepository {
	return &memoryChatRepository{
		conversations: make(map[string][]*domain.Message),
		byID:          make(map[string]*domain.Message),
		log:           log.With("component", "chat-store", "backend", "memory"),
	}
}

func (r *memoryChatRepository) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	stored, err := prepareAppend(msg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[stored.ID]; ok {
		out := *existing
		return &out, nil
	}
	r.conversations[stored.ConversationID] = append(r.conversations[stored.ConversationID], stored)
	r.byID[stored.ID] = stored

	out := *stored
	return &out, nil
}

func (r *memoryChatRepository) History(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.conversations[conversationID]
	out := make([]*domain.Message, len(src))
	for i, m := range src {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

func (r *memoryChatRepository) UpdateStatus(ctx context.Context, conversationID string, messageIDs []string, status domain.MessageStatus, skipSenderType domain.Role) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := make(map[string]struct{})
	for _, id := range messageIDs {
		m, ok := r.byID[id]
		if !ok || m.ConversationID != conversationID {
			continue
		}
		if skipSenderType != "" && m.SenderType == skipSenderType {
			continue
		}
		if !m.Status.CanAdvanceTo(status) {
			continue
		}
		m.Status = status
		changed[id] = struct{}{}
	}
	return inInputOrder(messageIDs, changed), nil
}

func (r *memoryChatRepository) ListConversations(ctx context.Context, limit, offset int) ([]*domain.ConversationSummary, error) {
	r.mu.RLock()
	summaries := make([]*domain.ConversationSummary, 0, len(r.conversations))
	for id, messages := range r.conversations {
		summaries = append(summaries, summarize(id, messages))
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return page(summaries, limit, offset), nil
}

// summarize builds an inbox row from a conversation's ordered history.
func summarize(conversationID string, messages []*domain.Message) *domain.ConversationSummary {
	s := &domain.ConversationSummary{
		ConversationID: conversationID,
		MessageCount:   len(messages),
	}
	for _, m := range messages {
		if m.SenderType == domain.RoleVisitor {
			if s.VisitorName == "" {
				s.VisitorName = m.SenderName
				s.VisitorEmail = m.SenderEmail
			}
			if m.Status != domain.StatusRead {
				s.UnreadCount++
			}
		}
	}
	if n := len(messages); n > 0 {
		last := messages[n-1]
		s.LastMessage = last.Body
		s.LastSenderType = last.SenderType
		s.LastMessageAt = last.CreatedAt
	}
	return s
}

func page(summaries []*domain.ConversationSummary, limit, offset int) []*domain.ConversationSummary {
	if offset >= len(summaries) {
		return []*domain.ConversationSummary{}
	}
	end := len(summaries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return summaries[offset:end]
}
