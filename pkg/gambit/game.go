package gambit

import (
	"encoding/json"
	"fmt"
	"time"
)

// GamePhase is the orchestrator state machine phase.
type GamePhase string

const (
	PhaseSetup          GamePhase = "setup"
	PhaseNormal         GamePhase = "normal"
	PhaseDuelAllocation GamePhase = "duel_allocation"
	PhaseRetreat        GamePhase = "retreat"
	PhaseGameOver       GamePhase = "game_over"
)

// RetreatState is the pending retreat sub-phase after a failed duel.
type RetreatState struct {
	PieceType PieceType       `json:"piece_type"`
	Origin    Square          `json:"origin"`
	Failed    Square          `json:"failed"`
	Options   []RetreatOption `json:"options"`
	StartedAt time.Time       `json:"started_at"`
}

// TurnReport summarizes a completed turn for the caller to broadcast.
type TurnReport struct {
	Mover      Color
	Advantages []Advantage
	Regen      int
	GameOver   bool
	Winner     *Color
}

// MoveReport is the result of a move request.
type MoveReport struct {
	DuelStarted bool
	Turn        *TurnReport // set when the move completed a turn
}

// RevealReport is the result of an accepted reveal (or a timeout default).
type RevealReport struct {
	Resolved       bool
	Outcome        DuelOutcome
	AttackerAmount int
	DefenderAmount int
	RetreatOptions []RetreatOption // set when the attacker must retreat
	Turn           *TurnReport     // set when a successful capture completed the turn
}

// Game is the single authoritative state of one match. All mutation goes
// through its methods; callers must serialize access per match. Every
// state-changing method either fully commits (mutation + sequence bump)
// or fully fails with no visible change.
type Game struct {
	settings Settings
	board    Board
	turn     Color
	phase    GamePhase
	pools    [2]int
	duel     *Duel
	lastDuel *Duel // most recent resolved duel, visible until the next move
	retreat  *RetreatState
	snapshot Board // pre-move snapshot of the side to move, exactly one
	seq      uint64
	winner   *Color
	fault    error
	now      func() time.Time
}

// NewGame creates a game in Setup on the given board. The board is the
// externally owned query capability; the engine never bypasses it.
func NewGame(s Settings, b Board) *Game {
	return &Game{settings: s, board: b, phase: PhaseSetup, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (g *Game) SetClock(now func() time.Time) { g.now = now }

// Start transitions Setup -> Normal once both seats are filled:
// pools initialized from configuration, first pre-move snapshot taken.
func (g *Game) Start() error {
	if g.phase != PhaseSetup {
		return rejectf("game already started")
	}
	g.pools[White] = g.settings.InitialPool
	g.pools[Black] = g.settings.InitialPool
	g.snapshot = g.board.Clone()
	g.phase = PhaseNormal
	g.turn = White
	g.seq++
	return nil
}

// Accessors. Reads are safe only under the caller's per-match serialization.

func (g *Game) Sequence() uint64    { return g.seq }
func (g *Game) Phase() GamePhase    { return g.phase }
func (g *Game) SideToMove() Color   { return g.turn }
func (g *Game) Pool(c Color) int    { return g.pools[c] }
func (g *Game) Board() Board        { return g.board }
func (g *Game) Settings() Settings  { return g.settings }
func (g *Game) Winner() *Color      { return g.winner }
func (g *Game) Fault() error        { return g.fault }

// ActiveDuel returns the in-flight duel, or the last resolved duel while
// its outcome is still current, or nil.
func (g *Game) ActiveDuel() *Duel {
	if g.duel != nil {
		return g.duel
	}
	return g.lastDuel
}

// PendingRetreat returns the retreat sub-state, if any.
func (g *Game) PendingRetreat() *RetreatState { return g.retreat }

// SubmitMove handles a move request in Normal phase. A move onto an
// enemy-occupied square is a capture attempt and opens a duel instead of
// moving; anything else applies immediately and completes the turn.
func (g *Game) SubmitMove(side Color, from, to Square) (*MoveReport, error) {
	if err := g.guard(side, PhaseNormal); err != nil {
		return nil, err
	}
	if !from.Valid() || !to.Valid() || from == to {
		return nil, rejectf("malformed move %s-%s", from, to)
	}
	mover, ok := g.board.PieceAt(from)
	if !ok || mover.Color != side {
		return nil, rejectf("no %s piece on %s", side, from)
	}

	if target, ok := g.board.PieceAt(to); ok && target.Color != side {
		// Capture attempt: the pre-move snapshot is preserved, not consumed.
		if g.duel != nil {
			return nil, ErrDuelInProgress
		}
		g.duel = NewDuel(side, from, to, g.now())
		g.lastDuel = nil
		g.phase = PhaseDuelAllocation
		g.seq++
		return &MoveReport{DuelStarted: true}, nil
	}

	res := g.board.AttemptMove(from, to)
	if !res.Success {
		return nil, rejectf("board rejected move %s-%s", from, to)
	}
	g.lastDuel = nil
	turn, err := g.completeTurn(side)
	if err != nil {
		return nil, err
	}
	return &MoveReport{Turn: turn}, nil
}

// SubmitDuelCommit stores a side's sealed commitment hash.
func (g *Game) SubmitDuelCommit(side Color, commitment string) error {
	if g.fault != nil {
		return g.fault
	}
	if g.phase != PhaseDuelAllocation || g.duel == nil {
		return rejectf("no duel accepting commitments")
	}
	if commitment == "" {
		return rejectf("empty commitment")
	}
	if err := g.duel.Commit(side, commitment); err != nil {
		return err
	}
	g.seq++
	return nil
}

// SubmitDuelReveal validates a side's revealed allocation against its
// commitment and the three ceilings, debits the pool at acceptance, and
// resolves the duel once both sides have revealed.
func (g *Game) SubmitDuelReveal(side Color, amount int, nonce string) (*RevealReport, error) {
	if g.fault != nil {
		return nil, g.fault
	}
	if g.phase != PhaseDuelAllocation || g.duel == nil {
		return nil, rejectf("no duel accepting reveals")
	}
	if err := g.duel.VerifyReveal(side, amount, nonce); err != nil {
		return nil, err
	}
	if err := g.validateAllocation(side, amount); err != nil {
		return nil, err
	}

	// Acceptance: debit immediately, even before the opposing reveal.
	g.pools[side] -= amount
	g.duel.RecordReveal(side, amount)
	g.seq++
	if err := g.checkInvariants(); err != nil {
		return nil, err
	}
	if !g.duel.Resolved() {
		return &RevealReport{}, nil
	}
	return g.finishDuel()
}

// validateAllocation enforces the three independent ceilings.
func (g *Game) validateAllocation(side Color, amount int) error {
	if amount < 0 {
		return &AllocationError{Reason: AllocNegative, Amount: amount}
	}
	if amount > g.settings.MaxAllocation {
		return &AllocationError{Reason: AllocOverMax, Amount: amount, Limit: g.settings.MaxAllocation}
	}
	sq := g.duel.AttackerSquare
	if side != g.duel.Attacker {
		sq = g.duel.DefenderSquare
	}
	p, ok := g.board.PieceAt(sq)
	if !ok {
		return faultf("duel piece missing from %s", sq)
	}
	if limit := g.settings.CapacityFor(p.Type); amount > limit {
		return &AllocationError{Reason: AllocOverCapacity, Amount: amount, Limit: limit}
	}
	if amount > g.pools[side] {
		return &AllocationError{Reason: AllocInsufficientPool, Amount: amount, Limit: g.pools[side]}
	}
	return nil
}

// ForceDuelTimeout applies the timeout policy: any side that has not
// revealed is treated as committed-and-revealed with amount 0, so the
// duel resolves deterministically instead of hanging.
func (g *Game) ForceDuelTimeout() (*RevealReport, error) {
	if g.fault != nil {
		return nil, g.fault
	}
	if g.phase != PhaseDuelAllocation || g.duel == nil {
		return nil, rejectf("no duel to time out")
	}
	for _, c := range AllColors() {
		if !g.duel.Sides[c].Revealed {
			g.duel.ForceDefault(c)
		}
	}
	g.seq++
	return g.finishDuel()
}

// finishDuel applies the resolved duel: on attacker success the capture
// lands and the turn completes; on failure the attacker enters Retreat.
func (g *Game) finishDuel() (*RevealReport, error) {
	d := g.duel
	report := &RevealReport{
		Resolved:       true,
		Outcome:        d.Outcome,
		AttackerAmount: d.Sides[d.Attacker].Amount,
		DefenderAmount: d.Sides[d.Defender()].Amount,
	}

	if d.Outcome == OutcomeSuccess {
		res := g.board.AttemptMove(d.AttackerSquare, d.DefenderSquare)
		if !res.Success {
			g.fail(faultf("board rejected resolved capture %s-%s", d.AttackerSquare, d.DefenderSquare))
			return nil, g.fault
		}
		g.lastDuel, g.duel = d, nil
		if res.Captured != nil && res.Captured.Type == King {
			w := d.Attacker
			g.winner = &w
			g.phase = PhaseGameOver
			g.seq++
			report.Turn = &TurnReport{Mover: d.Attacker, GameOver: true, Winner: g.winner}
			return report, nil
		}
		turn, err := g.completeTurn(d.Attacker)
		if err != nil {
			return nil, err
		}
		report.Turn = turn
		return report, nil
	}

	// Attacker repelled: offer tactical retreat options.
	p, ok := g.board.PieceAt(d.AttackerSquare)
	if !ok {
		g.fail(faultf("attacking piece missing from %s", d.AttackerSquare))
		return nil, g.fault
	}
	opts, err := Retreats(p.Type, d.AttackerSquare, d.DefenderSquare, occupiedOn(g.board))
	if err != nil {
		g.fail(faultf("retreat computation: %v", err))
		return nil, g.fault
	}
	g.lastDuel, g.duel = d, nil
	g.retreat = &RetreatState{
		PieceType: p.Type,
		Origin:    d.AttackerSquare,
		Failed:    d.DefenderSquare,
		Options:   opts,
		StartedAt: g.now(),
	}
	g.phase = PhaseRetreat
	g.seq++
	report.RetreatOptions = append([]RetreatOption(nil), opts...)
	return report, nil
}

// SelectRetreat applies the attacker's choice from the current option
// set. The origin is always free; any other option debits its cost.
func (g *Game) SelectRetreat(side Color, to Square) (*TurnReport, error) {
	if err := g.guard(side, PhaseRetreat); err != nil {
		return nil, err
	}
	r := g.retreat
	var chosen *RetreatOption
	for i := range r.Options {
		if r.Options[i].Square == to {
			chosen = &r.Options[i]
			break
		}
	}
	if chosen == nil {
		return nil, rejectf("%s is not a valid retreat square", to)
	}
	if chosen.Cost > g.pools[side] {
		return nil, rejectf("retreat to %s costs %d, pool has %d", to, chosen.Cost, g.pools[side])
	}

	if chosen.Square != r.Origin {
		res := g.board.AttemptMove(r.Origin, chosen.Square)
		if !res.Success {
			g.fail(faultf("board rejected retreat %s-%s", r.Origin, chosen.Square))
			return nil, g.fault
		}
		g.pools[side] -= chosen.Cost
	}
	g.retreat = nil
	return g.completeTurn(side)
}

// ForceRetreatTimeout applies the timeout policy for the retreat window:
// the attacker stays on the origin at no cost.
func (g *Game) ForceRetreatTimeout() (*TurnReport, error) {
	if g.fault != nil {
		return nil, g.fault
	}
	if g.phase != PhaseRetreat || g.retreat == nil {
		return nil, rejectf("no retreat to time out")
	}
	g.retreat = nil
	return g.completeTurn(g.turn)
}

// EndGame terminates the match externally (resignation, forfeit).
// A nil winner records a draw or abandonment.
func (g *Game) EndGame(winner *Color) {
	if g.phase == PhaseGameOver {
		return
	}
	g.winner = winner
	g.duel, g.retreat = nil, nil
	g.phase = PhaseGameOver
	g.seq++
}

// completeTurn consumes the pre-move snapshot exactly once: de novo
// advantage detection, regeneration credit, turn flip, fresh snapshot
// for the new side to move.
func (g *Game) completeTurn(mover Color) (*TurnReport, error) {
	if g.snapshot == nil {
		g.fail(faultf("pre-move snapshot missing at turn completion"))
		return nil, g.fault
	}
	advantages := DetectAdvantages(g.snapshot, g.board, mover, g.settings)
	regen := RegenerationFor(advantages, g.settings)

	g.pools[mover] += regen
	if g.pools[mover] > g.settings.MaxPool {
		g.pools[mover] = g.settings.MaxPool
	}

	g.turn = mover.Other()
	g.snapshot = g.board.Clone()
	g.phase = PhaseNormal
	g.seq++

	if err := g.checkInvariants(); err != nil {
		return nil, err
	}
	return &TurnReport{Mover: mover, Advantages: advantages, Regen: regen}, nil
}

// guard rejects out-of-turn or wrong-phase requests.
func (g *Game) guard(side Color, want GamePhase) error {
	if g.fault != nil {
		return g.fault
	}
	if g.phase != want {
		return rejectf("request not valid in phase %s", g.phase)
	}
	if side != g.turn {
		return rejectf("not %s's turn", side)
	}
	return nil
}

// checkInvariants verifies the auditable invariants after mutation.
// Violations are fatal: the match aborts rather than silently clamping.
func (g *Game) checkInvariants() error {
	for _, c := range AllColors() {
		if g.pools[c] < 0 {
			g.fail(faultf("%s pool negative: %d", c, g.pools[c]))
			return g.fault
		}
		if g.pools[c] > g.settings.MaxPool {
			g.fail(faultf("%s pool over ceiling: %d", c, g.pools[c]))
			return g.fault
		}
	}
	if g.phase != PhaseSetup && g.phase != PhaseGameOver && g.snapshot == nil {
		g.fail(faultf("missing pre-move snapshot in phase %s", g.phase))
		return g.fault
	}
	return nil
}

// fail records a fatal fault and aborts the match.
func (g *Game) fail(err error) {
	if g.fault != nil {
		return
	}
	g.fault = err
	g.phase = PhaseGameOver
	g.seq++
}

// gameDoc is the opaque crash-recovery snapshot. In-flight duel, pending
// retreat options and the pre-move board snapshot are all included so a
// crash mid-duel resumes exactly where it left off.
type gameDoc struct {
	Settings Settings      `json:"settings"`
	Phase    GamePhase     `json:"phase"`
	Turn     Color         `json:"turn"`
	Pools    [2]int        `json:"pools"`
	Seq      uint64        `json:"seq"`
	Board    *MapBoard     `json:"board"`
	Snapshot *MapBoard     `json:"snapshot,omitempty"`
	Duel     *Duel         `json:"duel,omitempty"`
	LastDuel *Duel         `json:"last_duel,omitempty"`
	Retreat  *RetreatState `json:"retreat,omitempty"`
	Winner   *Color        `json:"winner,omitempty"`
}

// Persist serializes the full game state. Only games on the in-repo
// MapBoard are persistable; a host with its own Board owns its snapshots.
func (g *Game) Persist() ([]byte, error) {
	board, ok := g.board.(*MapBoard)
	if !ok {
		return nil, fmt.Errorf("persist: board type %T is externally owned", g.board)
	}
	doc := gameDoc{
		Settings: g.settings,
		Phase:    g.phase,
		Turn:     g.turn,
		Pools:    g.pools,
		Seq:      g.seq,
		Board:    board,
		Duel:     g.duel,
		LastDuel: g.lastDuel,
		Retreat:  g.retreat,
		Winner:   g.winner,
	}
	if g.snapshot != nil {
		snap, ok := g.snapshot.(*MapBoard)
		if !ok {
			return nil, fmt.Errorf("persist: snapshot type %T is externally owned", g.snapshot)
		}
		doc.Snapshot = snap
	}
	return json.Marshal(doc)
}

// Restore rebuilds a game from a Persist snapshot.
func Restore(data []byte) (*Game, error) {
	var doc gameDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("restore game: %w", err)
	}
	if doc.Board == nil {
		return nil, fmt.Errorf("restore game: snapshot has no board")
	}
	g := &Game{
		settings: doc.Settings,
		board:    doc.Board,
		turn:     doc.Turn,
		phase:    doc.Phase,
		pools:    doc.Pools,
		seq:      doc.Seq,
		duel:     doc.Duel,
		lastDuel: doc.LastDuel,
		retreat:  doc.Retreat,
		winner:   doc.Winner,
		now:      time.Now,
	}
	if doc.Snapshot != nil {
		g.snapshot = doc.Snapshot
	}
	return g, nil
}
