package gambit

import (
	"sort"
	"strings"
)

// AdvantageType tags a tactical pattern class.
type AdvantageType string

const (
	AdvantageCheck       AdvantageType = "check"
	AdvantageDoubleCheck AdvantageType = "double_check"
	AdvantagePin         AdvantageType = "pin"
	AdvantageFork        AdvantageType = "fork"
)

// Advantage is one detected tactical pattern. Ephemeral: recomputed every
// turn, never carried over.
type Advantage struct {
	Type    AdvantageType `json:"type"`
	Side    Color         `json:"side"`
	Squares []Square      `json:"squares"` // involved squares, sorted
	Regen   int           `json:"regen"`
}

// key identifies an advantage instance for the de novo comparison:
// same type and same involved squares means the same instance.
func (a Advantage) key() string {
	var sb strings.Builder
	sb.WriteString(string(a.Type))
	for _, sq := range a.Squares {
		sb.WriteByte(':')
		sb.WriteString(sq.String())
	}
	return sb.String()
}

// DetectAdvantages diffs the pattern scans of the pre-move snapshot and
// the current board. Only de novo instances — present now, absent before —
// are returned; patterns that merely persisted across the move yield no
// regeneration. Within each type only the single highest-regen instance
// survives, so duplicate instances of a type never stack.
func DetectAdvantages(prior, current Board, mover Color, s Settings) []Advantage {
	before := scanBoard(prior, mover, s)
	prev := make(map[string]bool, len(before))
	for _, a := range before {
		prev[a.key()] = true
	}

	bestByType := make(map[AdvantageType]Advantage)
	for _, a := range scanBoard(current, mover, s) {
		if prev[a.key()] {
			continue
		}
		if b, ok := bestByType[a.Type]; !ok || a.Regen > b.Regen {
			bestByType[a.Type] = a
		}
	}

	out := make([]Advantage, 0, len(bestByType))
	for _, a := range bestByType {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// RegenerationFor sums a turn's regeneration: base amount plus one
// contribution per distinct de novo advantage type.
func RegenerationFor(advantages []Advantage, s Settings) int {
	total := s.BaseRegen
	for _, a := range advantages {
		total += a.Regen
	}
	return total
}

// scanBoard runs the fixed battery of pattern scans for one side.
// Each scan is a pure function of the board.
func scanBoard(b Board, side Color, s Settings) []Advantage {
	var out []Advantage
	out = append(out, scanChecks(b, side, s)...)
	out = append(out, scanPins(b, side, s)...)
	out = append(out, scanForks(b, side, s)...)
	return out
}

// scanChecks finds check and double check against the opposing king.
func scanChecks(b Board, side Color, s Settings) []Advantage {
	ksq := b.KingSquare(side.Other())
	if !ksq.Valid() {
		return nil
	}
	attackers := attackersOf(b, ksq, side)
	if len(attackers) == 0 {
		return nil
	}
	squares := append(attackers, ksq)
	sortSquares(squares)
	if len(attackers) >= 2 {
		return []Advantage{{Type: AdvantageDoubleCheck, Side: side, Squares: squares, Regen: s.RegenDoubleCheck}}
	}
	return []Advantage{{Type: AdvantageCheck, Side: side, Squares: squares, Regen: s.RegenCheck}}
}

// scanPins ray-casts from each slider of the moving side: the first enemy
// piece hit is a pin candidate; a second enemy piece further along the
// same ray with nothing between makes it a pin, worth more when the rear
// piece is the king.
func scanPins(b Board, side Color, s Settings) []Advantage {
	var out []Advantage
	for _, pp := range b.PiecesOf(side) {
		if !pp.Type.IsSlider() {
			continue
		}
		for _, d := range sliderDirs(pp.Type) {
			frontSq, rearSq := NoSquare, NoSquare
			var rear Piece
			for sq := step(pp.Square, d); sq.Valid(); sq = step(sq, d) {
				p, ok := b.PieceAt(sq)
				if !ok {
					continue
				}
				if p.Color == side {
					break
				}
				if frontSq == NoSquare {
					frontSq = sq
					continue
				}
				rearSq, rear = sq, p
				break
			}
			if rearSq == NoSquare {
				continue
			}
			regen := s.RegenPin
			if rear.Type == King {
				regen = s.RegenKingPin
			}
			squares := []Square{pp.Square, frontSq, rearSq}
			sortSquares(squares)
			out = append(out, Advantage{Type: AdvantagePin, Side: side, Squares: squares, Regen: regen})
		}
	}
	return out
}

// scanForks finds pieces attacking two or more enemy pieces whose
// combined value meets the configured threshold, or any number that
// includes the king.
func scanForks(b Board, side Color, s Settings) []Advantage {
	var out []Advantage
	for _, pp := range b.PiecesOf(side) {
		var targets []Square
		total, hitsKing := 0, false
		for _, sq := range attackSquares(b, pp) {
			p, ok := b.PieceAt(sq)
			if !ok || p.Color == side {
				continue
			}
			targets = append(targets, sq)
			total += p.Type.Value()
			if p.Type == King {
				hitsKing = true
			}
		}
		if len(targets) < 2 || (total < s.ForkValueThreshold && !hitsKing) {
			continue
		}
		squares := append(targets, pp.Square)
		sortSquares(squares)
		out = append(out, Advantage{Type: AdvantageFork, Side: side, Squares: squares, Regen: s.RegenFork})
	}
	return out
}

// attackSquares enumerates the squares a placed piece attacks.
func attackSquares(b Board, pp PlacedPiece) []Square {
	var out []Square
	switch pp.Type {
	case Pawn:
		dr := 1
		if pp.Color == Black {
			dr = -1
		}
		for _, df := range []int{-1, 1} {
			if sq := step(pp.Square, direction{df, dr}); sq.Valid() {
				out = append(out, sq)
			}
		}
	case Knight:
		for _, j := range knightJumps {
			if sq := step(pp.Square, j); sq.Valid() {
				out = append(out, sq)
			}
		}
	case King:
		for _, d := range append(append([]direction{}, orthogonalDirs...), diagonalDirs...) {
			if sq := step(pp.Square, d); sq.Valid() {
				out = append(out, sq)
			}
		}
	default: // sliders
		for _, d := range sliderDirs(pp.Type) {
			for sq := step(pp.Square, d); sq.Valid(); sq = step(sq, d) {
				out = append(out, sq)
				if _, ok := b.PieceAt(sq); ok {
					break
				}
			}
		}
	}
	return out
}

// attackersOf returns the squares of side's pieces attacking sq.
func attackersOf(b Board, sq Square, side Color) []Square {
	var out []Square
	for _, pp := range b.PiecesOf(side) {
		for _, a := range attackSquares(b, pp) {
			if a == sq {
				out = append(out, pp.Square)
				break
			}
		}
	}
	return out
}

func sortSquares(sqs []Square) {
	sort.Slice(sqs, func(i, j int) bool { return sqs[i] < sqs[j] })
}
