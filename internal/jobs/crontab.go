// Package jobs runs periodic maintenance for the chat server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"drone_chat/internal/config"
	"drone_chat/internal/service"
	"drone_chat/pkg/logger"
)

const jobTimeout = 5 * time.Minute

type Crontab struct {
	ctab *crontab.Crontab
	auth service.AuthService
	cfg  config.AdminConfig
	log  logger.Logger
}

func NewCrontab(auth service.AuthService, cfg config.AdminConfig, log logger.Logger) *Crontab {
	return &Crontab{
		ctab: crontab.New(),
		auth: auth,
		cfg:  cfg,
		log:  log.With("component", "crontab"),
	}
}

// Run purges sessions once, schedules the recurring purge and blocks until ctx is done.
func (c *Crontab) Run(ctx context.Context) error {
	c.purgeSessions(ctx)

	if err := c.ctab.AddJob(c.cfg.SessionPurgeSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		c.purgeSessions(jobCtx)
	}); err != nil {
		c.ctab.Shutdown()
		return fmt.Errorf("schedule session purge %q: %w", c.cfg.SessionPurgeSchedule, err)
	}
	c.log.Info("Session purge scheduled", "schedule", c.cfg.SessionPurgeSchedule)

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) purgeSessions(ctx context.Context) {
	if _, err := c.auth.PurgeSessions(ctx, c.cfg.SessionRetention); err != nil {
		c.log.Error("Session purge failed", "error", err)
	}
}
