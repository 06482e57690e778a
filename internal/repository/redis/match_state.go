package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis match state.
func stateKey(matchID string) string { return "match:" + matchID + ":state" }
func timerKey(matchID string) string { return "match:" + matchID + ":timer" }

// SetMatchState stores the live engine state JSON.
func (c *Client) SetMatchState(ctx context.Context, matchID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(matchID), []byte(state), 0).Err()
}

// GetMatchState retrieves the live engine state JSON.
func (c *Client) GetMatchState(ctx context.Context, matchID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match state: %w", err)
	}
	return json.RawMessage(data), nil
}

// timerGracePeriod is the extra time after the displayed deadline before
// the timeout fires, giving players a few seconds of leeway.
const timerGracePeriod = 2 * time.Second

// SetTimer creates a timer key with a TTL. When the key expires, Redis
// keyspace notifications trigger the duel or retreat timeout default.
// The TTL includes a grace period so the key expires slightly after the
// displayed deadline.
func (c *Client) SetTimer(ctx context.Context, matchID string, deadline time.Time) error {
	ttl := time.Until(deadline) + timerGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(matchID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the timer for a match.
func (c *Client) ClearTimer(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, timerKey(matchID)).Err()
}

// DeleteMatchData removes all Redis data for a match (on match end).
func (c *Client) DeleteMatchData(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, stateKey(matchID), timerKey(matchID)).Err()
}
