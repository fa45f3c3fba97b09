package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"drone_chat/internal/domain"
	"drone_chat/internal/repository"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

// ChatService serves the admin inbox. Live traffic goes through the relay.
type ChatService interface {
	ListConversations(ctx context.Context, limit, offset int) ([]*domain.ConversationSummary, error)
	GetHistory(ctx context.Context, conversationID string) ([]*domain.Message, error)
	// ExportInbox writes every conversation summary as an xlsx workbook.
	ExportInbox(ctx context.Context, w io.Writer) error
}

type chatService struct {
	chatRepo repository.ChatRepository
	log      logger.Logger
}

func NewChatService(chatRepo repository.ChatRepository, log logger.Logger) ChatService {
	return &chatService{
		chatRepo: chatRepo,
		log:      log,
	}
}

func (s *chatService) ListConversations(ctx context.Context, limit, offset int) ([]*domain.ConversationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.chatRepo.ListConversations(ctx, limit, offset)
}

func (s *chatService) GetHistory(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", apperrors.ErrValidation)
	}
	messages, err := s.chatRepo.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return messages, nil
}
