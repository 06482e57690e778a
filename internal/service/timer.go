package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// TimerListener listens for Redis keyspace notifications on expired match
// timer keys and applies the timeout default when a duel or retreat
// window closes. Also runs a polling fallback to catch expirations if
// keyspace notifications are unavailable.
type TimerListener struct {
	rdb      *redis.Client
	matchSvc *MatchService
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *redis.Client, matchSvc *MatchService) *TimerListener {
	return &TimerListener{rdb: rdb, matchSvc: matchSvc}
}

// Start begins listening for expired key events and runs a polling fallback.
func (t *TimerListener) Start(ctx context.Context) {
	go t.listenKeyspace(ctx)
	t.pollExpiredWindows(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

// pollExpiredWindows periodically sweeps live matches for duel or retreat
// windows past their deadline.
func (t *TimerListener) pollExpiredWindows(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("Window deadline poller started (10s interval)")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Window deadline poller stopped")
			return
		case <-ticker.C:
			t.matchSvc.CheckTimeouts(ctx)
		}
	}
}

// handleExpiry processes an expired key. Only acts on match timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	if !strings.HasPrefix(key, "match:") || !strings.HasSuffix(key, ":timer") {
		return
	}

	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return
	}
	matchID := parts[1]

	log.Info().Str("matchId", matchID).Msg("Timer expired, applying timeout default")
	if err := t.matchSvc.HandleTimeout(ctx, matchID); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Timeout handling failed after timer expiry")
	}
}
