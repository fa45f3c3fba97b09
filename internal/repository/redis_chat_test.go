package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone_chat/internal/domain"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

func newRedisChatRepository(t *testing.T, ttl time.Duration) (ChatRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisChatRepository(rdb, ttl, logger.NewNop()), mr
}

func TestRedisAppendAndHistoryOrder(t *testing.T) {
	repo, _ := newRedisChatRepository(t, 0)
	ctx := context.Background()

	in := newMessage("v1", domain.RoleVisitor, "one")
	in.TempID = "t1"
	first, err := repo.Append(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, domain.StatusSent, first.Status)

	for _, body := range []string{"two", "three"} {
		_, err := repo.Append(ctx, newMessage("v1", domain.RoleAdmin, body))
		require.NoError(t, err)
	}
	_, err = repo.Append(ctx, newMessage("v2", domain.RoleVisitor, "other"))
	require.NoError(t, err)

	history, err := repo.History(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{history[0].Body, history[1].Body, history[2].Body})
	assert.Equal(t, "t1", history[0].TempID)
	assert.Equal(t, domain.StatusSent, history[0].Status)

	empty, err := repo.History(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = repo.Append(ctx, &domain.Message{Body: "orphan"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRedisHistorySkipsExpiredMessages(t *testing.T) {
	repo, mr := newRedisChatRepository(t, time.Hour)
	ctx := context.Background()

	gone, err := repo.Append(ctx, newMessage("v1", domain.RoleVisitor, "gone"))
	require.NoError(t, err)
	_, err = repo.Append(ctx, newMessage("v1", domain.RoleVisitor, "kept"))
	require.NoError(t, err)

	assert.True(t, mr.Exists(fmt.Sprintf(chatMessageKey, gone.ID)))
	mr.Del(fmt.Sprintf(chatMessageKey, gone.ID))

	history, err := repo.History(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "kept", history[0].Body)

	mr.FastForward(2 * time.Hour)
	history, err = repo.History(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, history)

	convs, err := repo.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestRedisUpdateStatusIsMonotonic(t *testing.T) {
	repo, _ := newRedisChatRepository(t, 0)
	ctx := context.Background()

	msg, err := repo.Append(ctx, newMessage("v1", domain.RoleVisitor, "hi"))
	require.NoError(t, err)

	changed, err := repo.UpdateStatus(ctx, "v1", []string{msg.ID}, domain.StatusDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, changed)

	changed, err = repo.UpdateStatus(ctx, "v1", []string{msg.ID}, domain.StatusRead, "")
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, changed)

	for _, status := range []domain.MessageStatus{domain.StatusRead, domain.StatusDelivered, domain.StatusSent} {
		changed, err = repo.UpdateStatus(ctx, "v1", []string{msg.ID}, status, "")
		require.NoError(t, err)
		assert.Empty(t, changed, "read must not move to %s", status)
	}

	history, err := repo.History(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, history[0].Status)
}

func TestRedisUpdateStatusSkipsForeignStaleAndOwnMessages(t *testing.T) {
	repo, _ := newRedisChatRepository(t, 0)
	ctx := context.Background()

	visitorMsg, err := repo.Append(ctx, newMessage("v1", domain.RoleVisitor, "question"))
	require.NoError(t, err)
	adminMsg, err := repo.Append(ctx, newMessage("v1", domain.RoleAdmin, "answer"))
	require.NoError(t, err)
	foreign, err := repo.Append(ctx, newMessage("v2", domain.RoleVisitor, "elsewhere"))
	require.NoError(t, err)

	ids := []string{adminMsg.ID, "does-not-exist", foreign.ID, visitorMsg.ID, visitorMsg.ID}
	changed, err := repo.UpdateStatus(ctx, "v1", ids, domain.StatusRead, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{visitorMsg.ID}, changed)

	other, err := repo.History(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, other[0].Status)

	own, err := repo.History(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, own[1].Status)

	changed, err = repo.UpdateStatus(ctx, "v1", nil, domain.StatusRead, "")
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestRedisListConversationsByActivity(t *testing.T) {
	repo, _ := newRedisChatRepository(t, 0)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	older := newMessage("v-old", domain.RoleVisitor, "first")
	older.CreatedAt = base
	_, err := repo.Append(ctx, older)
	require.NoError(t, err)

	newer := newMessage("v-new", domain.RoleVisitor, "second")
	newer.CreatedAt = base.Add(time.Minute)
	_, err = repo.Append(ctx, newer)
	require.NoError(t, err)

	convs, err := repo.ListConversations(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "v-new", convs[0].ConversationID)
	assert.Equal(t, 1, convs[0].UnreadCount)

	page, err := repo.ListConversations(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "v-old", page[0].ConversationID)
}
