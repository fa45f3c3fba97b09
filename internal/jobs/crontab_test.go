package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone_chat/internal/config"
	"drone_chat/internal/service"
	"drone_chat/pkg/logger"
)

type countingAuth struct {
	service.AuthService
	purges    int32
	retention time.Duration
}

func (a *countingAuth) PurgeSessions(ctx context.Context, retention time.Duration) (int64, error) {
	atomic.AddInt32(&a.purges, 1)
	a.retention = retention
	return 0, nil
}

func TestCrontab_RunPurgesOnStart(t *testing.T) {
	auth := &countingAuth{}
	c := NewCrontab(auth, config.AdminConfig{SessionPurgeSchedule: "0 * * * *", SessionRetention: 6 * time.Hour}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&auth.purges) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 6*time.Hour, auth.retention)
}

func TestCrontab_RejectsBadSchedule(t *testing.T) {
	c := NewCrontab(&countingAuth{}, config.AdminConfig{SessionPurgeSchedule: "every hour"}, logger.NewNop())
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every hour")
}
