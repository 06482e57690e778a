//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/crowngambit/api/internal/testutil"
)

var testRDB *goredis.Client

func setup(t *testing.T) *Client {
	t.Helper()
	if testRDB == nil {
		testRDB = testutil.SetupRedis(t)
	}
	testutil.CleanupRedis(t, testRDB)
	return &Client{rdb: testRDB}
}

func TestMatchStateRoundTrip(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	matchID := "test-match-1"

	state := json.RawMessage(`{"seq":7,"phase":"normal","pools":[35,38]}`)

	if err := c.SetMatchState(ctx, matchID, state); err != nil {
		t.Fatalf("set match state: %v", err)
	}

	got, err := c.GetMatchState(ctx, matchID)
	if err != nil {
		t.Fatalf("get match state: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil state")
	}

	var fetched map[string]any
	json.Unmarshal(got, &fetched)
	if fetched["seq"].(float64) != 7 {
		t.Fatalf("state round-trip failed: %s", string(got))
	}
}

func TestMatchStateNotFound(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	got, err := c.GetMatchState(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("get missing state: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for missing match state")
	}
}

func TestTimerWithTTL(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	matchID := "test-match-2"

	deadline := time.Now().Add(10 * time.Second)
	if err := c.SetTimer(ctx, matchID, deadline); err != nil {
		t.Fatalf("set timer: %v", err)
	}

	// Verify key exists with a TTL including the grace period
	ttl := testRDB.TTL(ctx, timerKey(matchID)).Val()
	if ttl <= 0 || ttl > 13*time.Second {
		t.Fatalf("expected TTL ~12s, got %v", ttl)
	}

	c.ClearTimer(ctx, matchID)
	exists := testRDB.Exists(ctx, timerKey(matchID)).Val()
	if exists != 0 {
		t.Fatal("expected timer key to be deleted")
	}
}

func TestTimerPastDeadline(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	matchID := "test-match-2b"

	// Past deadline should set minimum 1s TTL
	deadline := time.Now().Add(-5 * time.Second)
	if err := c.SetTimer(ctx, matchID, deadline); err != nil {
		t.Fatalf("set timer past deadline: %v", err)
	}

	ttl := testRDB.TTL(ctx, timerKey(matchID)).Val()
	if ttl <= 0 || ttl > 2*time.Second {
		t.Fatalf("expected TTL ~1s for past deadline, got %v", ttl)
	}
}

func TestDeleteMatchData(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	matchID := "test-match-3"

	c.SetMatchState(ctx, matchID, json.RawMessage(`{"seq":1}`))
	c.SetTimer(ctx, matchID, time.Now().Add(10*time.Second))

	if err := c.DeleteMatchData(ctx, matchID); err != nil {
		t.Fatalf("delete match data: %v", err)
	}

	state, _ := c.GetMatchState(ctx, matchID)
	if state != nil {
		t.Fatal("expected match state deleted")
	}
	exists := testRDB.Exists(ctx, timerKey(matchID)).Val()
	if exists != 0 {
		t.Fatal("expected timer deleted")
	}
}

func TestTimerKeyNamedForKeyspaceListener(t *testing.T) {
	// The expiry listener parses "match:{id}:timer"; the key format is
	// load-bearing.
	if got := timerKey("abc"); got != "match:abc:timer" {
		t.Fatalf("timer key = %q, want match:abc:timer", got)
	}
	if got := stateKey("abc"); got != "match:abc:state" {
		t.Fatalf("state key = %q, want match:abc:state", got)
	}
}
