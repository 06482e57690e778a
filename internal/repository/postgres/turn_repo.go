package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crowngambit/api/internal/model"
)

// TurnRepo handles turn history and engine snapshot database operations.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// RecordTurn appends a completed turn to the match history.
func (r *TurnRepo) RecordTurn(ctx context.Context, turn model.Turn) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO turns (match_id, seq, mover, regen, advantages)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		turn.MatchID, turn.Seq, turn.Mover, turn.Regen, turn.Advantages,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// ListTurns returns a match's turn history in play order.
func (r *TurnRepo) ListTurns(ctx context.Context, matchID string) ([]model.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, match_id, seq, mover, regen, COALESCE(advantages, ''), created_at
		 FROM turns WHERE match_id = $1 ORDER BY seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.ID, &t.MatchID, &t.Seq, &t.Mover, &t.Regen, &t.Advantages, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// SaveSnapshot upserts the engine state blob for a match at a sequence
// number. Only the latest snapshot matters for recovery; the row is
// keyed by match so the table stays one row per match.
func (r *TurnRepo) SaveSnapshot(ctx context.Context, matchID string, seq uint64, state json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_snapshots (match_id, seq, state)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (match_id) DO UPDATE SET seq = EXCLUDED.seq, state = EXCLUDED.state, updated_at = now()`,
		matchID, seq, []byte(state),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent engine state blob for a match,
// or nil if none was ever saved.
func (r *TurnRepo) LatestSnapshot(ctx context.Context, matchID string) (json.RawMessage, uint64, error) {
	var state []byte
	var seq uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT state, seq FROM match_snapshots WHERE match_id = $1`, matchID,
	).Scan(&state, &seq)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("latest snapshot: %w", err)
	}
	return json.RawMessage(state), seq, nil
}
