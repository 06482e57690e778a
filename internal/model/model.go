package model

import "time"

// Match represents one Crown Gambit match.
type Match struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	CreatorID  string        `json:"creator_id"`
	Status     string        `json:"status"` // waiting, active, finished
	Winner     string        `json:"winner,omitempty"`
	Faulted    bool          `json:"faulted,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Players    []MatchPlayer `json:"players,omitempty"`
}

// MatchPlayer represents a player's seat in a match.
type MatchPlayer struct {
	MatchID  string    `json:"match_id"`
	PlayerID string    `json:"player_id"`
	Seat     string    `json:"seat"` // white or black
	JoinedAt time.Time `json:"joined_at"`
}

// Turn records one completed turn for history and audit. Regen and the
// advantage list are stored as resolved, never recomputed from history.
type Turn struct {
	ID         int64     `json:"id"`
	MatchID    string    `json:"match_id"`
	Seq        uint64    `json:"seq"`
	Mover      string    `json:"mover"`
	Regen      int       `json:"regen,omitempty"`
	Advantages string    `json:"advantages,omitempty"` // JSON array of detected patterns
	CreatedAt  time.Time `json:"created_at"`
}
