package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/armada-chat/armada/config"
)

const recentKeep = 50

// RedisClient is the Redis surface the services depend on: per-room
// sequence numbers, online markers and a short recent-message cache.
type RedisClient interface {
	Close() error
	Ping(ctx context.Context) error
	NextSeq(ctx context.Context, roomID uuid.UUID) (int64, error)
	SetUserOnline(ctx context.Context, userID uuid.UUID, ttl time.Duration) error
	IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	RemoveUserOnline(ctx context.Context, userID uuid.UUID) error
	CacheRecentMessage(ctx context.Context, roomID uuid.UUID, payload []byte) error
	RecentMessages(ctx context.Context, roomID uuid.UUID) ([]string, error)
	DropRecent(ctx context.Context, roomID uuid.UUID) error
}

type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: rdb}, nil
}

// NewRedisFromClient wraps an existing client, used by tests with miniredis
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Client exposes the underlying client for components that speak Redis
// directly, such as the rate limiter.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NextSeq issues the next sequence number for a room. Sequences are
// monotonic per room and break equal message timestamps.
func (r *Redis) NextSeq(ctx context.Context, roomID uuid.UUID) (int64, error) {
	key := fmt.Sprintf("room:%s:seq", roomID)
	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to generate seq for room %s: %w", roomID, err)
	}
	return seq, nil
}

func (r *Redis) SetUserOnline(ctx context.Context, userID uuid.UUID, ttl time.Duration) error {
	key := fmt.Sprintf("user:%s:online", userID)
	return r.client.Set(ctx, key, "1", ttl).Err()
}

func (r *Redis) IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := fmt.Sprintf("user:%s:online", userID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) RemoveUserOnline(ctx context.Context, userID uuid.UUID) error {
	key := fmt.Sprintf("user:%s:online", userID)
	return r.client.Del(ctx, key).Err()
}

// CacheRecentMessage pushes a serialized message onto the room's recent
// list, trimmed to the newest recentKeep entries.
func (r *Redis) CacheRecentMessage(ctx context.Context, roomID uuid.UUID, payload []byte) error {
	key := fmt.Sprintf("room:%s:recent", roomID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, recentKeep-1)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentMessages returns the cached recent messages, newest first
func (r *Redis) RecentMessages(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	key := fmt.Sprintf("room:%s:recent", roomID)
	return r.client.LRange(ctx, key, 0, recentKeep-1).Result()
}

// DropRecent discards the recent cache for a room, used on room delete
func (r *Redis) DropRecent(ctx context.Context, roomID uuid.UUID) error {
	key := fmt.Sprintf("room:%s:recent", roomID)
	return r.client.Del(ctx, key).Err()
}
