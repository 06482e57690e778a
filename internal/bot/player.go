package bot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crowngambit/api/pkg/gambit"
)

// Player plays one seat of a match with uniformly random choices. It is
// driven by WebSocket state pushes with a polling fallback, so it keeps
// playing even if the socket drops events.
type Player struct {
	client   *Client
	matchID  string
	side     gambit.Color
	settings gambit.Settings
	rng      *rand.Rand

	reveal *pendingReveal
}

type pendingReveal struct {
	amount   int
	nonce    string
	revealed bool
}

// NewPlayer wraps a client already seated in the given match.
func NewPlayer(client *Client, matchID string, side gambit.Color, seed int64) *Player {
	return &Player{
		client:   client,
		matchID:  matchID,
		side:     side,
		settings: gambit.DefaultSettings(),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Run plays until the match ends or the context is cancelled.
func (p *Player) Run(ctx context.Context) error {
	if err := p.client.ConnectWS(); err != nil {
		return err
	}
	defer p.client.CloseWS()
	if err := p.client.Subscribe(p.matchID); err != nil {
		return err
	}

	// The poll ticker covers missed pushes and timer-driven transitions.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.client.Events():
			if !ok {
				return fmt.Errorf("websocket closed")
			}
			if ev.Type == "match_ended" {
				return nil
			}
			st, err := p.stateFrom(ev)
			if err != nil {
				log.Debug().Err(err).Str("player", p.client.PlayerID()).Msg("Skipping event")
				continue
			}
			if st == nil {
				continue
			}
			done, err := p.act(st)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case <-ticker.C:
			st, err := p.client.State(p.matchID)
			if err != nil {
				return err
			}
			done, err := p.act(st)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// stateFrom extracts a filtered state from a push, polling for events that
// carry none.
func (p *Player) stateFrom(ev WSEvent) (*gambit.FilteredState, error) {
	switch ev.Type {
	case "state":
		var st gambit.FilteredState
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			return nil, err
		}
		return &st, nil
	case "connected", "duel_committed":
		return nil, nil
	default:
		return p.client.State(p.matchID)
	}
}

// act performs at most one action appropriate to the given state and
// reports whether the match is over.
func (p *Player) act(st *gambit.FilteredState) (bool, error) {
	switch st.Phase {
	case gambit.PhaseGameOver:
		return true, nil

	case gambit.PhaseDuelAllocation:
		if st.Duel == nil {
			return false, nil
		}
		if !st.Duel.SelfCommitted {
			return false, p.commitAllocation(st)
		}
		if st.Duel.Phase == gambit.DuelBothCommitted && p.reveal != nil && !p.reveal.revealed {
			p.reveal.revealed = true
			return false, p.client.DuelReveal(p.matchID, p.reveal.amount, p.reveal.nonce)
		}

	case gambit.PhaseRetreat:
		if st.Turn == p.side && st.Retreat != nil && len(st.Retreat.Options) > 0 {
			opt := p.pickRetreat(st)
			return false, p.client.Retreat(p.matchID, opt.Square.String())
		}

	case gambit.PhaseNormal:
		p.reveal = nil
		if st.Turn == p.side {
			from, to := pickMove(st.Board, p.side, p.rng)
			if from == "" {
				return false, fmt.Errorf("no movable piece for %s", p.side)
			}
			log.Debug().Str("player", p.client.PlayerID()).Str("from", from).Str("to", to).Msg("Playing move")
			return false, p.client.Move(p.matchID, from, to)
		}
	}
	return false, nil
}

// commitAllocation picks a random affordable allocation for the dueling
// piece, commits its hash, and stashes the opening for the reveal phase.
func (p *Player) commitAllocation(st *gambit.FilteredState) error {
	square := st.Duel.DefenderSquare
	if st.Duel.Attacker == p.side {
		square = st.Duel.AttackerSquare
	}
	amount := p.rng.Intn(allocationCeiling(st, p.side, square, p.settings) + 1)

	buf := make([]byte, 8)
	p.rng.Read(buf)
	nonce := hex.EncodeToString(buf)

	p.reveal = &pendingReveal{amount: amount, nonce: nonce}
	return p.client.DuelCommit(p.matchID, gambit.HashAllocation(amount, nonce))
}

// allocationCeiling is the largest bid the engine will accept: bounded by
// the remaining pool, the per-duel cap, and the piece's overloaded capacity.
func allocationCeiling(st *gambit.FilteredState, side gambit.Color, square string, settings gambit.Settings) int {
	limit := settings.MaxAllocation
	if pool := st.Pools[side.String()]; pool.Known && pool.Value < limit {
		limit = pool.Value
	}
	if pt, ok := pieceTypeFromCode(st.Board[square]); ok {
		if c := settings.CapacityFor(pt); c < limit {
			limit = c
		}
	}
	if limit < 0 {
		return 0
	}
	return limit
}

func (p *Player) pickRetreat(st *gambit.FilteredState) gambit.RetreatOption {
	pool := st.Pools[p.side.String()]
	affordable := make([]gambit.RetreatOption, 0, len(st.Retreat.Options))
	for _, opt := range st.Retreat.Options {
		if !pool.Known || opt.Cost <= pool.Value {
			affordable = append(affordable, opt)
		}
	}
	if len(affordable) == 0 {
		affordable = st.Retreat.Options // origin is always free
	}
	return affordable[p.rng.Intn(len(affordable))]
}

// pickMove chooses a random own piece and a random square not occupied by
// its own side. Returns empty strings if the side has no pieces.
func pickMove(board map[string]string, side gambit.Color, rng *rand.Rand) (from, to string) {
	prefix := byte('w')
	if side == gambit.Black {
		prefix = 'b'
	}

	var origins []string
	own := make(map[string]bool)
	for sq, code := range board {
		if len(code) == 2 && code[0] == prefix {
			origins = append(origins, sq)
			own[sq] = true
		}
	}
	if len(origins) == 0 {
		return "", ""
	}

	var targets []string
	for f := byte('a'); f <= 'h'; f++ {
		for r := byte('1'); r <= '8'; r++ {
			sq := string([]byte{f, r})
			if !own[sq] {
				targets = append(targets, sq)
			}
		}
	}

	return origins[rng.Intn(len(origins))], targets[rng.Intn(len(targets))]
}

// pieceTypeFromCode maps a board view code like "wQ" to its piece type.
func pieceTypeFromCode(code string) (gambit.PieceType, bool) {
	if len(code) != 2 {
		return 0, false
	}
	switch code[1] {
	case 'P':
		return gambit.Pawn, true
	case 'N':
		return gambit.Knight, true
	case 'B':
		return gambit.Bishop, true
	case 'R':
		return gambit.Rook, true
	case 'Q':
		return gambit.Queen, true
	case 'K':
		return gambit.King, true
	}
	return 0, false
}
