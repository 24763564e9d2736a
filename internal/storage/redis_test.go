package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFromClient(client)
}

func TestNextSeq(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	roomA := uuid.New()
	roomB := uuid.New()

	for want := int64(1); want <= 5; want++ {
		seq, err := r.NextSeq(ctx, roomA)
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	seq, err := r.NextSeq(ctx, roomB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq, "sequences are independent per room")
}

func TestUserOnlineMarker(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	online, err := r.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, r.SetUserOnline(ctx, userID, time.Minute))
	online, err = r.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, r.RemoveUserOnline(ctx, userID))
	online, err = r.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRecentMessageCache(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	roomID := uuid.New()

	require.NoError(t, r.CacheRecentMessage(ctx, roomID, []byte(`{"n":1}`)))
	require.NoError(t, r.CacheRecentMessage(ctx, roomID, []byte(`{"n":2}`)))

	msgs, err := r.RecentMessages(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"n":2}`, msgs[0], "newest first")

	require.NoError(t, r.DropRecent(ctx, roomID))
	msgs, err = r.RecentMessages(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRecentMessageCacheTrims(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	roomID := uuid.New()

	for i := 0; i < recentKeep+10; i++ {
		require.NoError(t, r.CacheRecentMessage(ctx, roomID, []byte{byte('a' + i%26)}))
	}
	msgs, err := r.RecentMessages(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, msgs, recentKeep)
}
