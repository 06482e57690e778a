package gambit

// Color identifies a side.
type Color int8

const (
	White Color = iota
	Black
)

// AllColors returns both sides in move order.
func AllColors() []Color { return []Color{White, Black} }

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Other returns the opposing side.
func (c Color) Other() Color { return 1 - c }

// PieceType identifies the kind of a piece.
type PieceType int8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	}
	return "unknown"
}

// Value returns the material value used by the fork-significance check.
// The king carries no material value; king involvement is checked separately.
func (t PieceType) Value() int {
	switch t {
	case Pawn:
		return 1
	case Knight, Bishop:
		return 3
	case Rook:
		return 5
	case Queen:
		return 9
	}
	return 0
}

// IsSlider reports whether the piece moves along rays.
func (t PieceType) IsSlider() bool {
	return t == Bishop || t == Rook || t == Queen
}

// Piece is a colored piece.
type Piece struct {
	Type  PieceType `json:"type"`
	Color Color     `json:"color"`
}

// PlacedPiece is a piece together with its square.
type PlacedPiece struct {
	Piece
	Square Square
}

// direction is a file/rank step.
type direction struct{ df, dr int }

var (
	orthogonalDirs = []direction{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonalDirs   = []direction{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	knightJumps    = []direction{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
)

// sliderDirs returns the movement axes for a sliding piece type.
func sliderDirs(t PieceType) []direction {
	switch t {
	case Bishop:
		return diagonalDirs
	case Rook:
		return orthogonalDirs
	case Queen:
		return append(append([]direction{}, orthogonalDirs...), diagonalDirs...)
	}
	return nil
}
