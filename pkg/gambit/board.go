package gambit

import "encoding/json"

// MoveResult reports the outcome of a board move attempt.
type MoveResult struct {
	Success  bool
	Captured *Piece
	Check    bool
}

// Board is the narrow query capability the engine depends on. The engine
// never mutates a Board except through AttemptMove, and treats legality
// as the board implementation's concern.
type Board interface {
	// PieceAt returns the piece on a square, if any.
	PieceAt(sq Square) (Piece, bool)
	// KingSquare returns the king square for a side, or NoSquare.
	KingSquare(c Color) Square
	// PiecesOf returns all pieces belonging to a side.
	PiecesOf(c Color) []PlacedPiece
	// Clone returns an independent deep copy.
	Clone() Board
	// AttemptMove moves from->to, capturing any piece on the target.
	AttemptMove(from, to Square) MoveResult
}

// MapBoard is the in-repo Board implementation: a plain square->piece map.
// It enforces only basic geometry (squares on the board, a piece on the
// origin); full chess legality belongs to the hosting application.
type MapBoard struct {
	pieces map[Square]Piece
}

// NewMapBoard returns an empty board.
func NewMapBoard() *MapBoard {
	return &MapBoard{pieces: make(map[Square]Piece)}
}

// NewStandardBoard returns the standard chess starting position.
func NewStandardBoard() *MapBoard {
	b := NewMapBoard()
	back := []PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}
	for f := 0; f < 8; f++ {
		b.Place(Sq(f, 0), Piece{back[f], White})
		b.Place(Sq(f, 1), Piece{Pawn, White})
		b.Place(Sq(f, 6), Piece{Pawn, Black})
		b.Place(Sq(f, 7), Piece{back[f], Black})
	}
	return b
}

// Place puts a piece on a square, replacing any occupant.
func (b *MapBoard) Place(sq Square, p Piece) { b.pieces[sq] = p }

// Remove clears a square.
func (b *MapBoard) Remove(sq Square) { delete(b.pieces, sq) }

// PieceAt implements Board.
func (b *MapBoard) PieceAt(sq Square) (Piece, bool) {
	p, ok := b.pieces[sq]
	return p, ok
}

// KingSquare implements Board.
func (b *MapBoard) KingSquare(c Color) Square {
	for sq, p := range b.pieces {
		if p.Type == King && p.Color == c {
			return sq
		}
	}
	return NoSquare
}

// PiecesOf implements Board.
func (b *MapBoard) PiecesOf(c Color) []PlacedPiece {
	var out []PlacedPiece
	for sq, p := range b.pieces {
		if p.Color == c {
			out = append(out, PlacedPiece{Piece: p, Square: sq})
		}
	}
	return out
}

// Clone implements Board.
func (b *MapBoard) Clone() Board {
	c := &MapBoard{pieces: make(map[Square]Piece, len(b.pieces))}
	for sq, p := range b.pieces {
		c.pieces[sq] = p
	}
	return c
}

// AttemptMove implements Board. The moving side's piece lands on the
// target square; any occupant is reported as captured. Check reports
// whether the mover gives check after the move.
func (b *MapBoard) AttemptMove(from, to Square) MoveResult {
	if !from.Valid() || !to.Valid() || from == to {
		return MoveResult{}
	}
	p, ok := b.pieces[from]
	if !ok {
		return MoveResult{}
	}
	var captured *Piece
	if victim, ok := b.pieces[to]; ok {
		if victim.Color == p.Color {
			return MoveResult{}
		}
		v := victim
		captured = &v
	}
	delete(b.pieces, from)
	b.pieces[to] = p

	check := false
	if ksq := b.KingSquare(p.Color.Other()); ksq.Valid() {
		check = len(attackersOf(b, ksq, p.Color)) > 0
	}
	return MoveResult{Success: true, Captured: captured, Check: check}
}

// MarshalJSON encodes the board as {"e4": {...}, ...} for snapshots.
func (b *MapBoard) MarshalJSON() ([]byte, error) {
	m := make(map[string]Piece, len(b.pieces))
	for sq, p := range b.pieces {
		m[sq.String()] = p
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a snapshot produced by MarshalJSON.
func (b *MapBoard) UnmarshalJSON(data []byte) error {
	var m map[string]Piece
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	b.pieces = make(map[Square]Piece, len(m))
	for key, p := range m {
		sq, err := ParseSquare(key)
		if err != nil {
			return err
		}
		b.pieces[sq] = p
	}
	return nil
}

// step moves one direction step from a square, returning NoSquare off-board.
func step(sq Square, d direction) Square {
	f := sq.File() + d.df
	r := sq.Rank() + d.dr
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return NoSquare
	}
	return Sq(f, r)
}

// occupiedOn returns an occupancy predicate over a board.
func occupiedOn(b Board) func(Square) bool {
	return func(sq Square) bool {
		_, ok := b.PieceAt(sq)
		return ok
	}
}
