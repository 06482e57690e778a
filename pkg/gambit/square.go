// Package gambit implements the rules core for Crown Gambit, a chess
// variant where captures are resolved by sealed-bid battle-point duels
// and battle points regenerate from newly created tactical advantages.
package gambit

import "fmt"

// Square identifies a board square, 0..63 with a1 = 0 and h8 = 63.
type Square int8

// NoSquare is the zero-value-adjacent sentinel for "no square".
const NoSquare Square = -1

// Sq builds a square from file (0=a) and rank (0=1).
func Sq(file, rank int) Square {
	return Square(rank*8 + file)
}

// File returns the file index, 0=a .. 7=h.
func (s Square) File() int { return int(s) % 8 }

// Rank returns the rank index, 0=first rank .. 7=eighth.
func (s Square) Rank() int { return int(s) / 8 }

// Valid reports whether the square is on the board.
func (s Square) Valid() bool { return s >= 0 && s < 64 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return fmt.Sprintf("%c%d", 'a'+s.File(), s.Rank()+1)
}

// ParseSquare parses algebraic notation like "e4".
func ParseSquare(str string) (Square, error) {
	if len(str) != 2 || str[0] < 'a' || str[0] > 'h' || str[1] < '1' || str[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square %q", str)
	}
	return Sq(int(str[0]-'a'), int(str[1]-'1')), nil
}

// Chebyshev returns the king-move distance between two squares, which is
// also the number of squares a sliding piece travels along an axis.
func Chebyshev(a, b Square) int {
	df := a.File() - b.File()
	if df < 0 {
		df = -df
	}
	dr := a.Rank() - b.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}

// sign returns -1, 0 or 1.
func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
