package gambit

import "sort"

// RetreatOption is a square the failed attacker may fall back to, and the
// battle-point cost of doing so. The origin is always offered at cost 0.
type RetreatOption struct {
	Square Square `json:"square"`
	Cost   int    `json:"cost"`
}

// Retreats computes the validated retreat option set for a piece that
// just lost a capture duel from origin against failed.
//
//   - Pawns, kings: only the origin.
//   - Knights: table lookup, filtered against current occupancy.
//   - Sliders: walk outward from the origin along the origin->failed axis
//     in both directions; the walk stops at the first occupied square or
//     the board edge. The failed-capture square is never offered and never
//     blocks the walk. Cost is the Chebyshev distance traveled.
//
// occupied reports whether a square holds any piece (either side); the
// origin itself is exempt since the retreating piece still stands there.
// An option set containing only the origin is a valid outcome, never an
// error.
func Retreats(pt PieceType, origin, failed Square, occupied func(Square) bool) ([]RetreatOption, error) {
	originOnly := []RetreatOption{{Square: origin, Cost: 0}}
	if !origin.Valid() || !failed.Valid() || origin == failed {
		return originOnly, nil
	}

	switch pt {
	case Knight:
		opts, err := KnightRetreats(origin, failed)
		if err != nil {
			return originOnly, err
		}
		kept := opts[:0]
		for _, o := range opts {
			if o.Square == origin || !occupied(o.Square) {
				kept = append(kept, o)
			}
		}
		return kept, nil

	case Bishop, Rook, Queen:
		return sliderRetreats(pt, origin, failed, occupied), nil

	default:
		return originOnly, nil
	}
}

// sliderRetreats walks the origin->failed axis in both directions.
func sliderRetreats(pt PieceType, origin, failed Square, occupied func(Square) bool) []RetreatOption {
	opts := []RetreatOption{{Square: origin, Cost: 0}}

	df := sign(failed.File() - origin.File())
	dr := sign(failed.Rank() - origin.Rank())
	diagonal := df != 0 && dr != 0 &&
		abs(failed.File()-origin.File()) == abs(failed.Rank()-origin.Rank())
	orthogonal := (df == 0) != (dr == 0)

	usable := false
	switch pt {
	case Bishop:
		usable = diagonal
	case Rook:
		usable = orthogonal
	case Queen:
		usable = diagonal || orthogonal
	}
	if !usable {
		return opts
	}

	for _, d := range []direction{{df, dr}, {-df, -dr}} {
		for sq := step(origin, d); sq.Valid(); sq = step(sq, d) {
			if sq == failed {
				// Excluded as a destination but not a blocker.
				continue
			}
			if occupied(sq) {
				break
			}
			opts = append(opts, RetreatOption{Square: sq, Cost: Chebyshev(origin, sq)})
		}
	}

	sort.Slice(opts, func(a, b int) bool { return opts[a].Square < opts[b].Square })
	return opts
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
