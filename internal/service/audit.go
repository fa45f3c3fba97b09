package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"drone_chat/internal/domain"
	"drone_chat/internal/repository"
	"drone_chat/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorAdminID *uuid.UUID, actorRole string, conversationID *string, eventType string, payload map[string]interface{}) error
	// Record is LogEvent for callers that must not fail on audit errors.
	Record(ctx context.Context, actorAdminID *uuid.UUID, actorRole string, conversationID *string, eventType string, payload map[string]interface{})
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log.With("component", "audit"),
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorAdminID *uuid.UUID, actorRole string, conversationID *string, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	return s.auditRepo.CreateLog(ctx, &domain.AuditLog{
		EventTime:      time.Now().UTC(),
		ActorAdminID:   actorAdminID,
		ActorRole:      actorRole,
		ConversationID: conversationID,
		EventType:      eventType,
		Payload:        payload,
	})
}

func (s *auditService) Record(ctx context.Context, actorAdminID *uuid.UUID, actorRole string, conversationID *string, eventType string, payload map[string]interface{}) {
	if err := s.LogEvent(ctx, actorAdminID, actorRole, conversationID, eventType, payload); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType)
	}
}
