package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crowngambit/api/internal/model"
)

// MatchRepository defines match and seat data operations.
type MatchRepository interface {
	Create(ctx context.Context, id, name, creatorID string) (*model.Match, error)
	FindByID(ctx context.Context, id string) (*model.Match, error)
	ListOpen(ctx context.Context) ([]model.Match, error)
	ListActive(ctx context.Context) ([]model.Match, error)
	ListFinished(ctx context.Context) ([]model.Match, error)
	Join(ctx context.Context, matchID, playerID, seat string) error
	ListPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error)
	SetActive(ctx context.Context, matchID string) error
	SetFinished(ctx context.Context, matchID, winner string, faulted bool) error
	Delete(ctx context.Context, matchID string) error
}

// TurnRepository defines turn history and snapshot operations. Snapshots
// are opaque engine state blobs keyed by sequence number; the latest one
// is the crash-recovery point.
type TurnRepository interface {
	RecordTurn(ctx context.Context, turn model.Turn) error
	ListTurns(ctx context.Context, matchID string) ([]model.Turn, error)
	SaveSnapshot(ctx context.Context, matchID string, seq uint64, state json.RawMessage) error
	LatestSnapshot(ctx context.Context, matchID string) (json.RawMessage, uint64, error)
}

// MatchCache defines live match state operations (Redis).
type MatchCache interface {
	SetMatchState(ctx context.Context, matchID string, state json.RawMessage) error
	GetMatchState(ctx context.Context, matchID string) (json.RawMessage, error)
	SetTimer(ctx context.Context, matchID string, deadline time.Time) error
	ClearTimer(ctx context.Context, matchID string) error
	DeleteMatchData(ctx context.Context, matchID string) error
}
