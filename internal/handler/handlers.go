package handler

import (
	"drone_chat/internal/config"
	"drone_chat/internal/relay"
	"drone_chat/internal/service"
	"drone_chat/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, r *relay.Relay, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(r),
		Auth:      NewAuthHandler(services.Auth, log),
		Chat:      NewChatHandler(services.Chat, log),
		WebSocket: NewWebSocketHandler(r, services.Auth, services.Audit, cfg.Chat, log),
	}
}
