package service

import (
	"drone_chat/internal/config"
	"drone_chat/internal/repository"
	"drone_chat/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Chat      ChatService
	RateLimit RateLimitService
	Audit     AuditService
	Notify    NotifyService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	notify, err := NewNotifyService(cfg.Telegram, log)
	if err != nil {
		log.Error("Telegram notifier unavailable, falling back to log only", "error", err)
		notify = &logNotifier{log: log.With("component", "notifier")}
	}

	return &Services{
		Auth:      NewAuthService(repos.Admin, audit, cfg.JWT, log),
		Chat:      NewChatService(repos.Chat, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
		Audit:     audit,
		Notify:    notify,
	}
}
