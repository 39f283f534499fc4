package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"housing-chat-service/internal/models"
)

// Store tracks per-user connection counts across instances. A user is
// online while any of their connections, on any device or instance, is up.
type Store interface {
	Connect(ctx context.Context, userID models.UserID) (becameOnline bool, err error)
	Disconnect(ctx context.Context, userID models.UserID) (becameOffline bool, lastSeen time.Time, err error)
	Get(ctx context.Context, userID models.UserID) (Status, error)
}

// Status is one user's presence snapshot.
type Status struct {
	UserID   models.UserID `json:"user_id"`
	Online   bool          `json:"online"`
	LastSeen *time.Time    `json:"last_seen,omitempty"`
}

// RedisStore keeps a connection counter and last-seen timestamp per user.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func connKey(userID models.UserID) string {
	return fmt.Sprintf("presence:conns:%d", userID)
}

func lastSeenKey(userID models.UserID) string {
	return fmt.Sprintf("presence:last_seen:%d", userID)
}

// Connect bumps the user's connection counter. Returns true only on the
// transition from zero connections, so callers announce each user once.
func (s *RedisStore) Connect(ctx context.Context, userID models.UserID) (bool, error) {
	count, err := s.client.Incr(ctx, connKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// Disconnect decrements the counter and stamps last-seen. Returns true on
// the transition to zero connections.
func (s *RedisStore) Disconnect(ctx context.Context, userID models.UserID) (bool, time.Time, error) {
	now := time.Now().UTC()
	count, err := s.client.Decr(ctx, connKey(userID)).Result()
	if err != nil {
		return false, now, err
	}
	if count < 0 {
		// Counter drifted, e.g. Redis restarted mid-session. Clamp to zero.
		s.client.Set(ctx, connKey(userID), 0, 0)
		count = 0
	}
	if err := s.client.Set(ctx, lastSeenKey(userID), now.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return false, now, err
	}
	return count == 0, now, nil
}

// Get reports whether the user is online and when they were last seen.
func (s *RedisStore) Get(ctx context.Context, userID models.UserID) (Status, error) {
	count, err := s.client.Get(ctx, connKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return Status{}, err
	}

	status := Status{UserID: userID, Online: count > 0}
	raw, err := s.client.Get(ctx, lastSeenKey(userID)).Result()
	if err == redis.Nil {
		return status, nil
	}
	if err != nil {
		return Status{}, err
	}
	lastSeen, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Status{}, err
	}
	status.LastSeen = &lastSeen
	return status, nil
}
