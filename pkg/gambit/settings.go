package gambit

import "time"

// Settings are the config-derived, per-game-immutable tuning values.
// Regeneration amounts and the fork threshold are game balance knobs,
// not rules.
type Settings struct {
	InitialPool        int               `json:"initial_pool"`
	MaxPool            int               `json:"max_pool"`
	MaxAllocation      int               `json:"max_allocation"`
	Capacity           map[PieceType]int `json:"capacity"`
	OverloadMultiplier int               `json:"overload_multiplier"`

	BaseRegen          int `json:"base_regen"`
	RegenCheck         int `json:"regen_check"`
	RegenDoubleCheck   int `json:"regen_double_check"`
	RegenPin           int `json:"regen_pin"`
	RegenKingPin       int `json:"regen_king_pin"`
	RegenFork          int `json:"regen_fork"`
	ForkValueThreshold int `json:"fork_value_threshold"`

	DuelTimeout    time.Duration `json:"duel_timeout"`
	RetreatTimeout time.Duration `json:"retreat_timeout"`
}

// DefaultSettings returns the standard tuning. The initial pool equals
// the classical material value of one army.
func DefaultSettings() Settings {
	return Settings{
		InitialPool:   39,
		MaxPool:       39,
		MaxAllocation: 10,
		Capacity: map[PieceType]int{
			Pawn:   1,
			Knight: 3,
			Bishop: 3,
			Rook:   5,
			Queen:  9,
			King:   2,
		},
		OverloadMultiplier: 2,
		BaseRegen:          1,
		RegenCheck:         2,
		RegenDoubleCheck:   3,
		RegenPin:           2,
		RegenKingPin:       3,
		RegenFork:          2,
		ForkValueThreshold: 6,
		DuelTimeout:        30 * time.Second,
		RetreatTimeout:     30 * time.Second,
	}
}

// CapacityFor returns the allocation ceiling for a piece type after the
// overload multiplier.
func (s Settings) CapacityFor(t PieceType) int {
	return s.Capacity[t] * s.OverloadMultiplier
}
