package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"classtrack/internal/attendance"
)

// LeaderboardCache keeps computed class leaderboards in Redis under a short
// TTL. A cache failure is never an error for the caller: reads report a
// miss and the engine recomputes from Postgres.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a cache with the given entry lifetime.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

func leaderboardKey(classID string) string {
	return "leaderboard:class:" + classID
}

// Get returns the cached leaderboard for a class, (nil, nil) on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, classID string) ([]attendance.LeaderboardEntry, error) {
	raw, err := c.client.Get(ctx, leaderboardKey(classID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entries []attendance.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Set stores a computed leaderboard under the cache TTL.
func (c *LeaderboardCache) Set(ctx context.Context, classID string, entries []attendance.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, leaderboardKey(classID), raw, c.ttl).Err()
}

var _ attendance.LeaderboardCache = (*LeaderboardCache)(nil)
