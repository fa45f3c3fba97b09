package service

import (
	"context"

	"drone_chat/internal/config"
	"drone_chat/internal/repository"
	"drone_chat/pkg/logger"
)

type RateLimitService interface {
	// Allow counts one request for key and reports whether it is within the configured window limit.
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	cfg           config.RateLimitConfig
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		cfg:           cfg,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	if s.cfg.Requests <= 0 {
		return true, nil
	}
	count, err := s.rateLimitRepo.Hit(ctx, key, s.cfg.Window)
	if err != nil {
		return false, err
	}
	return count <= int64(s.cfg.Requests), nil
}
