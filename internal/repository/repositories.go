package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"drone_chat/internal/config"
	"drone_chat/pkg/logger"
)

type Repositories struct {
	Chat      ChatRepository
	Admin     AdminRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, chatCfg config.ChatConfig, log logger.Logger) *Repositories {
	repos := &Repositories{
		Admin:     NewAdminRepository(db, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}

	switch chatCfg.Store {
	case config.ChatStoreRedis:
		repos.Chat = NewRedisChatRepository(redis, chatCfg.HistoryTTL, log)
	case config.ChatStoreMemory:
		repos.Chat = NewMemoryChatRepository(log)
		log.Warn("Chat history is kept in memory and will be lost on restart")
	default:
		repos.Chat = NewChatRepository(db, log)
	}
	log.Info("Chat repository initialized", "store", chatCfg.Store)

	return repos
}
