package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crowngambit/api/internal/model"
)

// MatchRepo handles match and match_player database operations.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Create inserts a new match in waiting status.
func (r *MatchRepo) Create(ctx context.Context, id, name, creatorID string) (*model.Match, error) {
	var m model.Match
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO matches (id, name, creator_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, creator_id, status, created_at`,
		id, name, creatorID,
	).Scan(&m.ID, &m.Name, &m.CreatorID, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	return &m, nil
}

// FindByID returns a match by ID with its players.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	var winner sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, creator_id, status, winner, faulted, created_at, started_at, finished_at
		 FROM matches WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.CreatorID, &m.Status, &winner, &m.Faulted, &m.CreatedAt, &m.StartedAt, &m.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	m.Winner = winner.String

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Players = players
	return &m, nil
}

// ListOpen returns matches in "waiting" status.
func (r *MatchRepo) ListOpen(ctx context.Context) ([]model.Match, error) {
	return r.listByStatus(ctx, "waiting", "created_at DESC")
}

// ListActive returns all matches in "active" status, including players.
func (r *MatchRepo) ListActive(ctx context.Context) ([]model.Match, error) {
	return r.listByStatus(ctx, "active", "created_at")
}

// ListFinished returns finished matches, most recent first.
func (r *MatchRepo) ListFinished(ctx context.Context) ([]model.Match, error) {
	return r.listByStatus(ctx, "finished", "finished_at DESC")
}

func (r *MatchRepo) listByStatus(ctx context.Context, status, order string) ([]model.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, creator_id, status, winner, faulted, created_at, started_at, finished_at
		 FROM matches WHERE status = $1 ORDER BY `+order+` LIMIT 100`, status)
	if err != nil {
		return nil, fmt.Errorf("list %s matches: %w", status, err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var winner sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatorID, &m.Status, &winner, &m.Faulted, &m.CreatedAt, &m.StartedAt, &m.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Winner = winner.String
		players, err := r.ListPlayers(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		m.Players = players
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Join claims a seat in a match.
func (r *MatchRepo) Join(ctx context.Context, matchID, playerID, seat string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_players (match_id, player_id, seat) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		matchID, playerID, seat,
	)
	if err != nil {
		return fmt.Errorf("join match: %w", err)
	}
	return nil
}

// ListPlayers returns the seated players in a match.
func (r *MatchRepo) ListPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT match_id, player_id, seat, joined_at FROM match_players WHERE match_id = $1 ORDER BY joined_at`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.MatchPlayer
	for rows.Next() {
		var p model.MatchPlayer
		if err := rows.Scan(&p.MatchID, &p.PlayerID, &p.Seat, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// SetActive marks a match as started.
func (r *MatchRepo) SetActive(ctx context.Context, matchID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = 'active', started_at = now() WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

// SetFinished marks a match as finished. An empty winner records a draw
// or abandonment; faulted marks an engine abort.
func (r *MatchRepo) SetFinished(ctx context.Context, matchID, winner string, faulted bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = 'finished', winner = NULLIF($1, ''), faulted = $2, finished_at = now() WHERE id = $3`,
		winner, faulted, matchID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Delete removes a match and all associated data (cascades to players and turns).
func (r *MatchRepo) Delete(ctx context.Context, matchID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}
