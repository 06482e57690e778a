package gambit

// Role identifies a connected viewer's relationship to the match.
type Role string

const (
	RoleWhite     Role = "white"
	RoleBlack     Role = "black"
	RoleSpectator Role = "spectator"
)

// RoleFor maps a side to its player role.
func RoleFor(c Color) Role {
	if c == White {
		return RoleWhite
	}
	return RoleBlack
}

// Side returns the side a player role controls, and whether the role is
// a player at all.
func (r Role) Side() (Color, bool) {
	switch r {
	case RoleWhite:
		return White, true
	case RoleBlack:
		return Black, true
	}
	return 0, false
}

// PoolView is a possibly-masked battle-point value. Known=false means the
// viewer is not entitled to the number.
type PoolView struct {
	Known bool `json:"known"`
	Value int  `json:"value,omitempty"`
}

// DuelView is the viewer-scoped slice of duel state. Pre-resolution, each
// side sees only whether the opponent has committed, never the amount.
type DuelView struct {
	Phase             DuelPhase   `json:"phase"`
	Attacker          Color       `json:"attacker"`
	AttackerSquare    string      `json:"attacker_square"`
	DefenderSquare    string      `json:"defender_square"`
	SelfCommitted     bool        `json:"self_committed,omitempty"`
	OpponentCommitted bool        `json:"opponent_committed,omitempty"`
	Outcome           DuelOutcome `json:"outcome"`
	AttackerAmount    *int        `json:"attacker_amount,omitempty"` // only once resolved
	DefenderAmount    *int        `json:"defender_amount,omitempty"` // only once resolved
}

// RetreatView carries retreat options, visible only to the retreating player.
type RetreatView struct {
	Origin  string          `json:"origin"`
	Failed  string          `json:"failed"`
	Options []RetreatOption `json:"options,omitempty"`
}

// FilteredState is a per-viewer snapshot of the authoritative state. It
// is derived, never authoritative, and recomputed on every state change.
type FilteredState struct {
	Seq     uint64              `json:"seq"`
	Phase   GamePhase           `json:"phase"`
	Turn    Color               `json:"turn"`
	Board   map[string]string   `json:"board"`
	Pools   map[string]PoolView `json:"pools"`
	Duel    *DuelView           `json:"duel,omitempty"`
	Retreat *RetreatView        `json:"retreat,omitempty"`
	Winner  *Color              `json:"winner,omitempty"`
	Faulted bool                `json:"faulted,omitempty"`
}

// SequenceOf returns the monotonic sequence number stamped on snapshots.
func SequenceOf(g *Game) uint64 { return g.Sequence() }

// SnapshotFor produces the filtered state for one viewer role. The
// visibility policy is a pure function of the role:
//
//   - a player sees their own pool, the opponent's masked;
//   - a player sees whether the opponent committed in an active duel, but
//     no amount until the duel is resolved;
//   - spectators see neither pool nor any amount during active play, and
//     revealed duel allocations only once resolved.
func SnapshotFor(role Role, g *Game) FilteredState {
	fs := FilteredState{
		Seq:     g.Sequence(),
		Phase:   g.Phase(),
		Turn:    g.SideToMove(),
		Board:   boardView(g.Board()),
		Pools:   map[string]PoolView{},
		Winner:  g.Winner(),
		Faulted: g.Fault() != nil,
	}

	self, isPlayer := role.Side()
	over := g.Phase() == PhaseGameOver
	for _, c := range AllColors() {
		visible := over || (isPlayer && c == self)
		pv := PoolView{}
		if visible {
			pv = PoolView{Known: true, Value: g.Pool(c)}
		}
		fs.Pools[c.String()] = pv
	}

	if d := g.ActiveDuel(); d != nil {
		dv := &DuelView{
			Phase:          d.Phase,
			Attacker:       d.Attacker,
			AttackerSquare: d.AttackerSquare.String(),
			DefenderSquare: d.DefenderSquare.String(),
			Outcome:        d.Outcome,
		}
		if d.Resolved() {
			a, b := d.Sides[d.Attacker].Amount, d.Sides[d.Defender()].Amount
			dv.AttackerAmount, dv.DefenderAmount = &a, &b
		} else if isPlayer {
			dv.SelfCommitted = d.Sides[self].Committed
			dv.OpponentCommitted = d.Sides[self.Other()].Committed
		}
		fs.Duel = dv
	}

	if r := g.PendingRetreat(); r != nil {
		rv := &RetreatView{Origin: r.Origin.String(), Failed: r.Failed.String()}
		if isPlayer && self == g.SideToMove() {
			rv.Options = append([]RetreatOption(nil), r.Options...)
		}
		fs.Retreat = rv
	}

	return fs
}

// boardView renders the board as square -> piece code ("wN", "bK", ...).
func boardView(b Board) map[string]string {
	letters := map[PieceType]string{
		Pawn: "P", Knight: "N", Bishop: "B", Rook: "R", Queen: "Q", King: "K",
	}
	out := make(map[string]string)
	for _, c := range AllColors() {
		prefix := "w"
		if c == Black {
			prefix = "b"
		}
		for _, pp := range b.PiecesOf(c) {
			out[pp.Square.String()] = prefix + letters[pp.Type]
		}
	}
	return out
}

// SyncAction tells a snapshot receiver what to do with a delivery.
type SyncAction int

const (
	SyncApply  SyncAction = iota // in-order, apply it
	SyncIgnore                   // duplicate or stale, discard idempotently
	SyncResync                   // gap detected, request a full snapshot
)

// SyncTracker implements the receiver side of the sequence-numbered
// delta scheme: duplicates are discarded, gaps force a full resync.
type SyncTracker struct {
	lastSeen uint64
	synced   bool
}

// AcceptFull records a full snapshot, resetting gap state.
func (t *SyncTracker) AcceptFull(seq uint64) {
	t.lastSeen = seq
	t.synced = true
}

// Accept classifies an incremental delivery by its sequence number.
func (t *SyncTracker) Accept(seq uint64) SyncAction {
	if !t.synced {
		return SyncResync
	}
	switch {
	case seq <= t.lastSeen:
		return SyncIgnore
	case seq == t.lastSeen+1:
		t.lastSeen = seq
		return SyncApply
	default:
		return SyncResync
	}
}

// LastSeen returns the highest applied sequence number.
func (t *SyncTracker) LastSeen() uint64 { return t.lastSeen }
