package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crowngambit/api/internal/model"
	"github.com/crowngambit/api/internal/repository"
	"github.com/crowngambit/api/pkg/gambit"
)

// Service-level errors, mapped to HTTP statuses in the handlers.
var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchFull      = errors.New("match already has two players")
	ErrAlreadyJoined  = errors.New("player already seated in this match")
	ErrNotInMatch     = errors.New("player is not seated in this match")
	ErrMatchNotActive = errors.New("match is not active")
)

// MatchService orchestrates match lifecycle and relays player requests to
// the per-match engine. Engines live in memory; Redis holds the current
// serialized state for fast recovery, Postgres the durable snapshot and
// turn history.
type MatchService struct {
	matchRepo   repository.MatchRepository
	turnRepo    repository.TurnRepository
	cache       repository.MatchCache
	broadcaster Broadcaster
	settings    gambit.Settings

	// matchLocks serializes all mutation per match. The engine itself is
	// not goroutine safe; HTTP handlers, the WS layer and the timeout
	// listener can all fire for the same match simultaneously.
	matchLocks sync.Map
	engines    sync.Map // matchID -> *gambit.Game
	now        func() time.Time
}

// NewMatchService creates a MatchService.
func NewMatchService(
	matchRepo repository.MatchRepository,
	turnRepo repository.TurnRepository,
	cache repository.MatchCache,
	broadcaster Broadcaster,
	settings gambit.Settings,
) *MatchService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &MatchService{
		matchRepo:   matchRepo,
		turnRepo:    turnRepo,
		cache:       cache,
		broadcaster: broadcaster,
		settings:    settings,
		now:         time.Now,
	}
}

// matchLock returns the mutex for a given match ID.
func (s *MatchService) matchLock(matchID string) *sync.Mutex {
	v, _ := s.matchLocks.LoadOrStore(matchID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// CreateMatch creates a waiting match and seats the creator as white.
func (s *MatchService) CreateMatch(ctx context.Context, name, creatorID string) (*model.Match, error) {
	id := uuid.NewString()
	if _, err := s.matchRepo.Create(ctx, id, name, creatorID); err != nil {
		return nil, err
	}
	if err := s.matchRepo.Join(ctx, id, creatorID, string(gambit.RoleWhite)); err != nil {
		return nil, err
	}
	log.Info().Str("matchId", id).Str("creatorId", creatorID).Msg("Match created")
	return s.matchRepo.FindByID(ctx, id)
}

// JoinMatch seats a player in the first free seat. Filling the second
// seat starts the match: engine created, pools initialized, timers armed.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, playerID string) (*model.Match, error) {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	if match.Status != "waiting" {
		return nil, ErrMatchFull
	}
	taken := map[string]bool{}
	for _, p := range match.Players {
		if p.PlayerID == playerID {
			return nil, ErrAlreadyJoined
		}
		taken[p.Seat] = true
	}
	seat := string(gambit.RoleWhite)
	if taken[seat] {
		seat = string(gambit.RoleBlack)
	}
	if taken[seat] {
		return nil, ErrMatchFull
	}
	if err := s.matchRepo.Join(ctx, matchID, playerID, seat); err != nil {
		return nil, err
	}

	if len(match.Players)+1 < 2 {
		return s.matchRepo.FindByID(ctx, matchID)
	}

	// Both seats filled: start the engine.
	g := gambit.NewGame(s.settings, gambit.NewStandardBoard())
	if err := g.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	s.engines.Store(matchID, g)
	if err := s.persist(ctx, matchID, g); err != nil {
		return nil, err
	}
	if err := s.matchRepo.SetActive(ctx, matchID); err != nil {
		return nil, err
	}
	log.Info().Str("matchId", matchID).Msg("Match started")
	s.broadcaster.BroadcastMatchEvent(matchID, EventMatchStarted, map[string]any{
		"match_id": matchID,
	})
	s.broadcastState(matchID, g)
	return s.matchRepo.FindByID(ctx, matchID)
}

// GetMatch returns the match record.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// ListOpen returns matches with a free seat.
func (s *MatchService) ListOpen(ctx context.Context) ([]model.Match, error) {
	return s.matchRepo.ListOpen(ctx)
}

// ListTurns returns the match's recorded turn history, filtered by the
// viewer's role. Regeneration amounts and detected advantages follow the
// same visibility rule as pools: while the match is live a player sees
// them only for their own turns, spectators not at all. A revealed regen
// stream would let the opponent reconstruct the masked pool. Everything
// opens up once the match is finished.
func (s *MatchService) ListTurns(ctx context.Context, matchID string, role gambit.Role) ([]model.Turn, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	turns, err := s.turnRepo.ListTurns(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == "finished" {
		return turns, nil
	}
	side, isPlayer := role.Side()
	for i := range turns {
		if !isPlayer || turns[i].Mover != side.String() {
			turns[i].Regen = 0
			turns[i].Advantages = ""
		}
	}
	return turns, nil
}

// RoleOf resolves a viewer's relationship to a match: a seated player's
// side role, or spectator for everyone else.
func (s *MatchService) RoleOf(ctx context.Context, matchID, viewerID string) (gambit.Role, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return "", err
	}
	if match == nil {
		return "", ErrMatchNotFound
	}
	for _, p := range match.Players {
		if p.PlayerID == viewerID {
			return gambit.Role(p.Seat), nil
		}
	}
	return gambit.RoleSpectator, nil
}

// StateFor returns the filtered snapshot of a live match for one role.
func (s *MatchService) StateFor(ctx context.Context, matchID string, role gambit.Role) (*gambit.FilteredState, error) {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	g, err := s.engine(ctx, matchID)
	if err != nil {
		return nil, err
	}
	fs := gambit.SnapshotFor(role, g)
	return &fs, nil
}

// SubmitMove relays a move request to the engine. A capture attempt
// opens a duel and arms the duel timer; anything else completes a turn.
func (s *MatchService) SubmitMove(ctx context.Context, matchID, playerID, from, to string) error {
	return s.mutate(ctx, matchID, playerID, func(g *gambit.Game, side gambit.Color) error {
		fromSq, err := gambit.ParseSquare(from)
		if err != nil {
			return err
		}
		toSq, err := gambit.ParseSquare(to)
		if err != nil {
			return err
		}
		rep, err := g.SubmitMove(side, fromSq, toSq)
		if err != nil {
			return err
		}
		if rep.DuelStarted {
			d := g.ActiveDuel()
			s.armTimer(ctx, matchID, s.settings.DuelTimeout)
			s.broadcaster.BroadcastMatchEvent(matchID, EventDuelInitiated, map[string]any{
				"attacker":        d.Attacker.String(),
				"attacker_square": d.AttackerSquare.String(),
				"defender_square": d.DefenderSquare.String(),
			})
			return nil
		}
		s.finishTurn(ctx, matchID, g, rep.Turn)
		return nil
	})
}

// SubmitDuelCommit stores a sealed allocation commitment.
func (s *MatchService) SubmitDuelCommit(ctx context.Context, matchID, playerID, commitment string) error {
	return s.mutate(ctx, matchID, playerID, func(g *gambit.Game, side gambit.Color) error {
		if err := g.SubmitDuelCommit(side, commitment); err != nil {
			return err
		}
		// The opponent learns that a commitment exists, never its content.
		s.broadcaster.BroadcastMatchEvent(matchID, EventDuelCommitted, map[string]any{
			"side": side.String(),
		})
		return nil
	})
}

// SubmitDuelReveal validates and applies a revealed allocation. When the
// second reveal lands the duel resolves: capture or retreat sub-phase.
func (s *MatchService) SubmitDuelReveal(ctx context.Context, matchID, playerID string, amount int, nonce string) error {
	return s.mutate(ctx, matchID, playerID, func(g *gambit.Game, side gambit.Color) error {
		rep, err := g.SubmitDuelReveal(side, amount, nonce)
		if err != nil {
			if errors.Is(err, gambit.ErrCommitmentMismatch) {
				// Potential cheat attempt; the request is merely rejected
				// but the operator should see it.
				log.Warn().Str("matchId", matchID).Str("side", side.String()).
					Msg("Duel reveal did not match commitment")
			}
			return err
		}
		if rep.Resolved {
			s.applyDuelResolution(ctx, matchID, g, rep)
		}
		return nil
	})
}

// SelectRetreat applies the attacker's retreat choice.
func (s *MatchService) SelectRetreat(ctx context.Context, matchID, playerID, to string) error {
	return s.mutate(ctx, matchID, playerID, func(g *gambit.Game, side gambit.Color) error {
		toSq, err := gambit.ParseSquare(to)
		if err != nil {
			return err
		}
		turn, err := g.SelectRetreat(side, toSq)
		if err != nil {
			return err
		}
		s.finishTurn(ctx, matchID, g, turn)
		return nil
	})
}

// Resign ends the match in favor of the opponent.
func (s *MatchService) Resign(ctx context.Context, matchID, playerID string) error {
	return s.mutate(ctx, matchID, playerID, func(g *gambit.Game, side gambit.Color) error {
		winner := side.Other()
		g.EndGame(&winner)
		s.finishMatch(ctx, matchID, g)
		return nil
	})
}

// HandleTimeout applies the timeout default for whatever window is open:
// duel sides default to zero, a pending retreat stays on the origin.
// Safe to call spuriously; a match with no open window is left alone.
func (s *MatchService) HandleTimeout(ctx context.Context, matchID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	g, err := s.engine(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrMatchNotActive) || errors.Is(err, ErrMatchNotFound) {
			return nil
		}
		return err
	}

	switch g.Phase() {
	case gambit.PhaseDuelAllocation:
		log.Info().Str("matchId", matchID).Msg("Duel allocation timed out, defaulting to zero")
		rep, err := g.ForceDuelTimeout()
		if err != nil {
			return err
		}
		s.applyDuelResolution(ctx, matchID, g, rep)
	case gambit.PhaseRetreat:
		log.Info().Str("matchId", matchID).Msg("Retreat timed out, staying on origin")
		turn, err := g.ForceRetreatTimeout()
		if err != nil {
			return err
		}
		s.finishTurn(ctx, matchID, g, turn)
	default:
		return nil
	}

	if g.Phase() == gambit.PhaseGameOver {
		return nil
	}
	if err := s.persist(ctx, matchID, g); err != nil {
		return err
	}
	s.broadcastState(matchID, g)
	return nil
}

// CheckTimeouts is the polling fallback for missed keyspace events: any
// live match whose open duel or retreat window is past its deadline is
// timed out.
func (s *MatchService) CheckTimeouts(ctx context.Context) {
	s.engines.Range(func(key, value any) bool {
		matchID := key.(string)
		g := value.(*gambit.Game)

		var startedAt time.Time
		var window time.Duration
		switch g.Phase() {
		case gambit.PhaseDuelAllocation:
			d := g.ActiveDuel()
			if d == nil {
				return true
			}
			startedAt, window = d.StartedAt, s.settings.DuelTimeout
		case gambit.PhaseRetreat:
			r := g.PendingRetreat()
			if r == nil {
				return true
			}
			startedAt, window = r.StartedAt, s.settings.RetreatTimeout
		default:
			return true
		}

		if s.now().After(startedAt.Add(window)) {
			if err := s.HandleTimeout(ctx, matchID); err != nil {
				log.Error().Err(err).Str("matchId", matchID).Msg("Timeout handling failed from poller")
			}
		}
		return true
	})
}

// RecoverActiveMatches rehydrates engines for all active matches after a
// restart: Redis first, the Postgres snapshot as fallback. Open duel or
// retreat windows get their timers re-armed.
func (s *MatchService) RecoverActiveMatches(ctx context.Context) error {
	matches, err := s.matchRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active matches: %w", err)
	}
	if len(matches) == 0 {
		log.Info().Msg("No active matches to recover")
		return nil
	}
	log.Info().Int("count", len(matches)).Msg("Recovering active matches after restart")

	for _, m := range matches {
		g, err := s.rehydrate(ctx, m.ID)
		if err != nil {
			log.Error().Err(err).Str("matchId", m.ID).Msg("Failed to recover match")
			continue
		}
		s.engines.Store(m.ID, g)

		switch g.Phase() {
		case gambit.PhaseDuelAllocation:
			if d := g.ActiveDuel(); d != nil {
				s.cache.SetTimer(ctx, m.ID, d.StartedAt.Add(s.settings.DuelTimeout))
			}
		case gambit.PhaseRetreat:
			if r := g.PendingRetreat(); r != nil {
				s.cache.SetTimer(ctx, m.ID, r.StartedAt.Add(s.settings.RetreatTimeout))
			}
		}
		log.Info().Str("matchId", m.ID).Str("phase", string(g.Phase())).
			Uint64("seq", g.Sequence()).Msg("Recovered match state")
	}
	return nil
}

// mutate runs one engine mutation under the match lock, then persists
// and broadcasts. Rejected requests change nothing and broadcast nothing.
func (s *MatchService) mutate(ctx context.Context, matchID, playerID string, fn func(*gambit.Game, gambit.Color) error) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return ErrMatchNotFound
	}
	side, ok := seatOf(match, playerID)
	if !ok {
		return ErrNotInMatch
	}

	g, err := s.engine(ctx, matchID)
	if err != nil {
		return err
	}

	before := g.Sequence()
	if err := fn(g, side); err != nil {
		var fe *gambit.FaultError
		if errors.As(err, &fe) {
			// The engine aborted the match; record and announce it.
			log.Error().Err(err).Str("matchId", matchID).Msg("Engine fault, aborting match")
			s.finishMatch(ctx, matchID, g)
		}
		return err
	}
	if g.Phase() == gambit.PhaseGameOver {
		// finishMatch already persisted and broadcast the terminal state.
		return nil
	}
	if g.Sequence() == before {
		return nil
	}
	if err := s.persist(ctx, matchID, g); err != nil {
		return err
	}
	s.broadcastState(matchID, g)
	return nil
}

// engine returns the live engine for a match, rehydrating it on demand.
func (s *MatchService) engine(ctx context.Context, matchID string) (*gambit.Game, error) {
	if v, ok := s.engines.Load(matchID); ok {
		return v.(*gambit.Game), nil
	}
	g, err := s.rehydrate(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.engines.Store(matchID, g)
	return g, nil
}

// rehydrate loads the engine state from Redis, falling back to the
// Postgres snapshot.
func (s *MatchService) rehydrate(ctx context.Context, matchID string) (*gambit.Game, error) {
	state, err := s.cache.GetMatchState(ctx, matchID)
	if err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Redis state read failed, trying snapshot")
	}
	if state == nil {
		state, _, err = s.turnRepo.LatestSnapshot(ctx, matchID)
		if err != nil {
			return nil, err
		}
	}
	if state == nil {
		return nil, ErrMatchNotActive
	}
	g, err := gambit.Restore([]byte(state))
	if err != nil {
		return nil, fmt.Errorf("restore engine: %w", err)
	}
	return g, nil
}

// persist writes the serialized engine state to Redis and Postgres.
func (s *MatchService) persist(ctx context.Context, matchID string, g *gambit.Game) error {
	data, err := g.Persist()
	if err != nil {
		return fmt.Errorf("serialize engine: %w", err)
	}
	if err := s.cache.SetMatchState(ctx, matchID, data); err != nil {
		return fmt.Errorf("cache engine state: %w", err)
	}
	if err := s.turnRepo.SaveSnapshot(ctx, matchID, g.Sequence(), data); err != nil {
		return fmt.Errorf("snapshot engine state: %w", err)
	}
	return nil
}

// applyDuelResolution handles the aftermath of a resolved duel:
// broadcast the public outcome, then either finish the turn, enter the
// retreat window, or end the match on a king capture.
func (s *MatchService) applyDuelResolution(ctx context.Context, matchID string, g *gambit.Game, rep *gambit.RevealReport) {
	s.broadcaster.BroadcastMatchEvent(matchID, EventDuelOutcome, map[string]any{
		"outcome":         string(rep.Outcome),
		"attacker_amount": rep.AttackerAmount,
		"defender_amount": rep.DefenderAmount,
	})

	switch {
	case rep.Turn != nil:
		s.finishTurn(ctx, matchID, g, rep.Turn)
	case len(rep.RetreatOptions) > 0:
		s.armTimer(ctx, matchID, s.settings.RetreatTimeout)
		// Options go only to the retreating player; the opponent and
		// spectators learn them from the chosen square.
		s.broadcaster.SendRoleEvent(matchID, gambit.RoleFor(g.SideToMove()), EventRetreatOptions, map[string]any{
			"options": g.PendingRetreat().Options,
		})
	}
}

// finishTurn records history, disarms the window timer and closes out
// the match if the turn ended it.
func (s *MatchService) finishTurn(ctx context.Context, matchID string, g *gambit.Game, turn *gambit.TurnReport) {
	if turn == nil {
		return
	}
	s.cache.ClearTimer(ctx, matchID)

	advantages := ""
	if len(turn.Advantages) > 0 {
		if data, err := json.Marshal(turn.Advantages); err == nil {
			advantages = string(data)
		}
	}
	if err := s.turnRepo.RecordTurn(ctx, model.Turn{
		MatchID:    matchID,
		Seq:        g.Sequence(),
		Mover:      turn.Mover.String(),
		Regen:      turn.Regen,
		Advantages: advantages,
	}); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to record turn")
	}

	if turn.GameOver || g.Phase() == gambit.PhaseGameOver {
		s.finishMatch(ctx, matchID, g)
	}
}

// finishMatch persists the terminal result, clears live state and
// broadcasts the final public snapshot. Once this runs the match is no
// longer live: the Redis entries are gone and only the Postgres record
// and final snapshot remain.
func (s *MatchService) finishMatch(ctx context.Context, matchID string, g *gambit.Game) {
	if data, err := g.Persist(); err == nil {
		if err := s.turnRepo.SaveSnapshot(ctx, matchID, g.Sequence(), data); err != nil {
			log.Error().Err(err).Str("matchId", matchID).Msg("Failed to save final snapshot")
		}
	}

	winner := ""
	if w := g.Winner(); w != nil {
		winner = w.String()
	}
	faulted := g.Fault() != nil
	if err := s.matchRepo.SetFinished(ctx, matchID, winner, faulted); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to mark match finished")
	}
	if err := s.cache.DeleteMatchData(ctx, matchID); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to clear match cache")
	}
	s.engines.Delete(matchID)

	data := map[string]any{"winner": winner}
	if faulted {
		// Viewers get a generic failure; the detail stays in the logs.
		data["aborted"] = true
		log.Error().Err(g.Fault()).Str("matchId", matchID).Msg("Match aborted by engine fault")
	}
	s.broadcaster.BroadcastMatchEvent(matchID, EventMatchEnded, data)
	s.broadcastState(matchID, g)
}

// broadcastState pushes the role-filtered snapshots to all viewers.
// Each role gets its own filtering; nothing player-scoped ever rides a
// spectator payload.
func (s *MatchService) broadcastState(matchID string, g *gambit.Game) {
	for _, role := range []gambit.Role{gambit.RoleWhite, gambit.RoleBlack, gambit.RoleSpectator} {
		s.broadcaster.SendRoleEvent(matchID, role, EventState, gambit.SnapshotFor(role, g))
	}
}

// armTimer sets the Redis TTL timer for the current window.
func (s *MatchService) armTimer(ctx context.Context, matchID string, window time.Duration) {
	if err := s.cache.SetTimer(ctx, matchID, s.now().Add(window)); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to arm timer, poller will catch the timeout")
	}
}

// seatOf finds a player's side in a match.
func seatOf(match *model.Match, playerID string) (gambit.Color, bool) {
	for _, p := range match.Players {
		if p.PlayerID == playerID {
			if side, ok := gambit.Role(p.Seat).Side(); ok {
				return side, true
			}
		}
	}
	return 0, false
}
