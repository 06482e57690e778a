package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crowngambit/api/pkg/gambit"
)

type testEnv struct {
	svc     *MatchService
	matches *mockMatchRepo
	turns   *mockTurnRepo
	cache   *mockCache
	bcast   *recordingBroadcaster
}

func newTestEnv() *testEnv {
	matches := newMockMatchRepo()
	turns := newMockTurnRepo()
	cache := newMockCache()
	bcast := &recordingBroadcaster{}
	svc := NewMatchService(matches, turns, cache, bcast, gambit.DefaultSettings())
	return &testEnv{svc: svc, matches: matches, turns: turns, cache: cache, bcast: bcast}
}

// startedMatch creates a match with alice (white) and bob (black) seated
// and the engine running.
func startedMatch(t *testing.T, env *testEnv) string {
	t.Helper()
	ctx := context.Background()
	m, err := env.svc.CreateMatch(ctx, "Test Match", "alice")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if _, err := env.svc.JoinMatch(ctx, m.ID, "bob"); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	return m.ID
}

// runDuel commits and reveals both sides of the active duel.
func runDuel(t *testing.T, env *testEnv, matchID string, whiteAmt, blackAmt int) {
	t.Helper()
	ctx := context.Background()
	if err := env.svc.SubmitDuelCommit(ctx, matchID, "alice", gambit.HashAllocation(whiteAmt, "wn")); err != nil {
		t.Fatalf("white commit: %v", err)
	}
	if err := env.svc.SubmitDuelCommit(ctx, matchID, "bob", gambit.HashAllocation(blackAmt, "bn")); err != nil {
		t.Fatalf("black commit: %v", err)
	}
	if err := env.svc.SubmitDuelReveal(ctx, matchID, "alice", whiteAmt, "wn"); err != nil {
		t.Fatalf("white reveal: %v", err)
	}
	if err := env.svc.SubmitDuelReveal(ctx, matchID, "bob", blackAmt, "bn"); err != nil {
		t.Fatalf("black reveal: %v", err)
	}
}

func TestCreateMatch_SeatsCreatorAsWhite(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	m, err := env.svc.CreateMatch(ctx, "Opening Night", "alice")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if m.Status != "waiting" {
		t.Errorf("status = %q, want waiting", m.Status)
	}
	if len(m.Players) != 1 || m.Players[0].PlayerID != "alice" || m.Players[0].Seat != "white" {
		t.Errorf("players = %+v, want alice seated white", m.Players)
	}
}

func TestJoinMatch_SecondPlayerStartsMatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	m, err := env.svc.CreateMatch(ctx, "Test", "alice")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	joined, err := env.svc.JoinMatch(ctx, m.ID, "bob")
	if err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	if joined.Status != "active" {
		t.Errorf("status = %q, want active", joined.Status)
	}
	if len(joined.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(joined.Players))
	}

	if env.cache.states[m.ID] == nil {
		t.Error("engine state not cached after start")
	}
	if env.turns.snapshots[m.ID] == nil {
		t.Error("engine snapshot not saved after start")
	}
	if _, err := env.bcast.lastOfType(EventMatchStarted); err != nil {
		t.Error(err)
	}

	fs, err := env.svc.StateFor(ctx, m.ID, gambit.RoleSpectator)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	if fs.Phase != gambit.PhaseNormal || fs.Turn != gambit.White {
		t.Errorf("phase/turn = %s/%s, want normal/white", fs.Phase, fs.Turn)
	}
}

func TestJoinMatch_Errors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.JoinMatch(ctx, "missing", "bob"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("missing match: err = %v, want ErrMatchNotFound", err)
	}

	m, _ := env.svc.CreateMatch(ctx, "Test", "alice")
	if _, err := env.svc.JoinMatch(ctx, m.ID, "alice"); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("rejoin: err = %v, want ErrAlreadyJoined", err)
	}
	if _, err := env.svc.JoinMatch(ctx, m.ID, "bob"); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	if _, err := env.svc.JoinMatch(ctx, m.ID, "carol"); !errors.Is(err, ErrMatchFull) {
		t.Errorf("third player: err = %v, want ErrMatchFull", err)
	}
}

func TestSubmitMove_QuietMoveCompletesTurn(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}

	turns, _ := env.svc.ListTurns(ctx, matchID, gambit.RoleSpectator)
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Mover != "white" {
		t.Errorf("mover = %q, want white", turns[0].Mover)
	}

	fs, err := env.svc.StateFor(ctx, matchID, gambit.RoleSpectator)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	if fs.Turn != gambit.Black {
		t.Errorf("turn = %s, want black", fs.Turn)
	}
	if fs.Board["e4"] != "wP" {
		t.Errorf("e4 = %q, want wP", fs.Board["e4"])
	}
}

func TestSubmitMove_OutOfTurnRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	err := env.svc.SubmitMove(ctx, matchID, "bob", "e7", "e5")
	var re *gambit.RejectError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RejectError", err)
	}
	if turns, _ := env.svc.ListTurns(ctx, matchID, gambit.RoleSpectator); len(turns) != 0 {
		t.Errorf("turns recorded after rejected move: %d", len(turns))
	}
}

func TestSubmitMove_ByOutsiderRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "mallory", "e2", "e4"); !errors.Is(err, ErrNotInMatch) {
		t.Errorf("err = %v, want ErrNotInMatch", err)
	}
}

func TestCaptureDuel_SuccessfulCapture(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "d1", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}
	if _, err := env.bcast.lastOfType(EventDuelInitiated); err != nil {
		t.Error(err)
	}
	if _, ok := env.cache.timers[matchID]; !ok {
		t.Error("duel timer not armed")
	}

	runDuel(t, env, matchID, 3, 1)

	ev, err := env.bcast.lastOfType(EventDuelOutcome)
	if err != nil {
		t.Fatal(err)
	}
	data := ev.Data.(map[string]any)
	if data["outcome"] != "success" {
		t.Errorf("outcome = %v, want success", data["outcome"])
	}
	if data["attacker_amount"] != 3 || data["defender_amount"] != 1 {
		t.Errorf("amounts = %v/%v, want 3/1", data["attacker_amount"], data["defender_amount"])
	}

	if _, ok := env.cache.timers[matchID]; ok {
		t.Error("timer still armed after turn completion")
	}
	turns, _ := env.svc.ListTurns(ctx, matchID, gambit.RoleSpectator)
	if len(turns) != 1 || turns[0].Mover != "white" {
		t.Fatalf("turns = %+v, want one white turn", turns)
	}

	fs, _ := env.svc.StateFor(ctx, matchID, gambit.RoleSpectator)
	if fs.Board["d7"] != "wQ" {
		t.Errorf("d7 = %q, want wQ", fs.Board["d7"])
	}
}

func TestCaptureDuel_FailedEntersRetreat(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "d1", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}
	// Defender strictly outbids: pawn capacity is 2 with overload.
	runDuel(t, env, matchID, 1, 2)

	ev, err := env.bcast.lastOfType(EventDuelOutcome)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Data.(map[string]any)["outcome"] != "failed" {
		t.Errorf("outcome = %v, want failed", ev.Data.(map[string]any)["outcome"])
	}

	opts, err := env.bcast.lastOfType(EventRetreatOptions)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Role != gambit.RoleWhite {
		t.Errorf("retreat options sent to %q, want white", opts.Role)
	}
	if _, ok := env.cache.timers[matchID]; !ok {
		t.Error("retreat timer not armed")
	}

	// The d-file is blocked by white's own d2 pawn, so the queen's only
	// retreat is the origin.
	fs, _ := env.svc.StateFor(ctx, matchID, gambit.RoleWhite)
	if fs.Phase != gambit.PhaseRetreat {
		t.Fatalf("phase = %s, want retreat", fs.Phase)
	}
	if n := len(fs.Retreat.Options); n != 1 {
		t.Fatalf("retreat options = %d, want 1 (origin only)", n)
	}

	if err := env.svc.SelectRetreat(ctx, matchID, "alice", "d1"); err != nil {
		t.Fatalf("SelectRetreat: %v", err)
	}
	fs, _ = env.svc.StateFor(ctx, matchID, gambit.RoleSpectator)
	if fs.Phase != gambit.PhaseNormal || fs.Turn != gambit.Black {
		t.Errorf("phase/turn = %s/%s, want normal/black", fs.Phase, fs.Turn)
	}
	if fs.Board["d1"] != "wQ" || fs.Board["d7"] != "bP" {
		t.Errorf("board after retreat: d1=%q d7=%q", fs.Board["d1"], fs.Board["d7"])
	}
}

func TestSubmitDuelReveal_MismatchRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "d1", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}
	if err := env.svc.SubmitDuelCommit(ctx, matchID, "alice", gambit.HashAllocation(3, "wn")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.svc.SubmitDuelCommit(ctx, matchID, "bob", gambit.HashAllocation(1, "bn")); err != nil {
		t.Fatalf("commit: %v", err)
	}

	err := env.svc.SubmitDuelReveal(ctx, matchID, "alice", 4, "wn")
	if !errors.Is(err, gambit.ErrCommitmentMismatch) {
		t.Fatalf("err = %v, want ErrCommitmentMismatch", err)
	}

	// The honest reveal still goes through.
	if err := env.svc.SubmitDuelReveal(ctx, matchID, "alice", 3, "wn"); err != nil {
		t.Fatalf("honest reveal: %v", err)
	}
}

func TestHandleTimeout_DuelDefaultsToZero(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}
	if err := env.svc.HandleTimeout(ctx, matchID); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}

	ev, err := env.bcast.lastOfType(EventDuelOutcome)
	if err != nil {
		t.Fatal(err)
	}
	data := ev.Data.(map[string]any)
	// Zero versus zero is a tie and ties go to the attacker.
	if data["outcome"] != "success" || data["attacker_amount"] != 0 || data["defender_amount"] != 0 {
		t.Errorf("timeout outcome = %v, want 0-0 success", data)
	}

	fs, _ := env.svc.StateFor(ctx, matchID, gambit.RoleSpectator)
	if fs.Board["d7"] != "wP" {
		t.Errorf("d7 = %q, want wP after timeout capture", fs.Board["d7"])
	}
}

func TestHandleTimeout_NoOpenWindow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	before := len(env.bcast.events)
	if err := env.svc.HandleTimeout(ctx, matchID); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	if len(env.bcast.events) != before {
		t.Error("spurious timeout produced events")
	}
}

func TestHandleTimeout_RetreatStaysOnOrigin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "d1", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}
	runDuel(t, env, matchID, 1, 2)

	if err := env.svc.HandleTimeout(ctx, matchID); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	fs, _ := env.svc.StateFor(ctx, matchID, gambit.RoleSpectator)
	if fs.Phase != gambit.PhaseNormal || fs.Board["d1"] != "wQ" {
		t.Errorf("after retreat timeout: phase=%s d1=%q, want normal/wQ", fs.Phase, fs.Board["d1"])
	}
}

func TestKingCapture_FinishesMatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "d1", "e8"); err != nil {
		t.Fatalf("capture move: %v", err)
	}
	// King capacity is 4 with overload; the queen can simply outbid it.
	runDuel(t, env, matchID, 5, 4)

	m, err := env.svc.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if m.Status != "finished" || m.Winner != "white" || m.Faulted {
		t.Errorf("match = %s/%s/faulted=%v, want finished/white/false", m.Status, m.Winner, m.Faulted)
	}
	if _, err := env.bcast.lastOfType(EventMatchEnded); err != nil {
		t.Error(err)
	}
	if env.cache.states[matchID] != nil {
		t.Error("live cache not cleared after finish")
	}
	if env.turns.snapshots[matchID] == nil {
		t.Error("final snapshot missing after finish")
	}
}

func TestResign_FinishesMatchForOpponent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.Resign(ctx, matchID, "bob"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	m, _ := env.svc.GetMatch(ctx, matchID)
	if m.Status != "finished" || m.Winner != "white" {
		t.Errorf("match = %s/%s, want finished/white", m.Status, m.Winner)
	}

	// Nothing more is accepted.
	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "e4"); err == nil {
		t.Error("move accepted after resignation")
	}
}

func TestRoleOf(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	cases := []struct {
		viewer string
		want   gambit.Role
	}{
		{"alice", gambit.RoleWhite},
		{"bob", gambit.RoleBlack},
		{"carol", gambit.RoleSpectator},
	}
	for _, tc := range cases {
		role, err := env.svc.RoleOf(ctx, matchID, tc.viewer)
		if err != nil {
			t.Fatalf("RoleOf(%s): %v", tc.viewer, err)
		}
		if role != tc.want {
			t.Errorf("RoleOf(%s) = %q, want %q", tc.viewer, role, tc.want)
		}
	}
	if _, err := env.svc.RoleOf(ctx, "missing", "alice"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("missing match: err = %v, want ErrMatchNotFound", err)
	}
}

func TestStateFor_MasksOpponentPool(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	fs, err := env.svc.StateFor(ctx, matchID, gambit.RoleWhite)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	if !fs.Pools["white"].Known || fs.Pools["black"].Known {
		t.Errorf("white view pools = %+v, want own known only", fs.Pools)
	}
}

func TestListTurns_MasksRegenDuringPlay(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}

	// The mover sees their own regen; the opponent and spectators must
	// not, or they could reconstruct the masked pool from the stream.
	own, err := env.svc.ListTurns(ctx, matchID, gambit.RoleWhite)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(own) != 1 || own[0].Regen == 0 {
		t.Fatalf("white view = %+v, want own regen visible", own)
	}
	for _, role := range []gambit.Role{gambit.RoleBlack, gambit.RoleSpectator} {
		turns, err := env.svc.ListTurns(ctx, matchID, role)
		if err != nil {
			t.Fatalf("ListTurns(%s): %v", role, err)
		}
		if len(turns) != 1 {
			t.Fatalf("%s view turns = %d, want 1", role, len(turns))
		}
		if turns[0].Regen != 0 || turns[0].Advantages != "" {
			t.Errorf("%s view leaked regen=%d advantages=%q mid-game",
				role, turns[0].Regen, turns[0].Advantages)
		}
		if turns[0].Mover != "white" {
			t.Errorf("%s view mover = %q, want white", role, turns[0].Mover)
		}
	}
}

func TestListTurns_OpensUpWhenFinished(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if err := env.svc.Resign(ctx, matchID, "bob"); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	turns, err := env.svc.ListTurns(ctx, matchID, gambit.RoleSpectator)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 1 || turns[0].Regen == 0 {
		t.Fatalf("finished-match history = %+v, want full regen detail", turns)
	}
}

func TestListTurns_MissingMatch(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.ListTurns(context.Background(), "nope", gambit.RoleSpectator); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("err = %v, want ErrMatchNotFound", err)
	}
}

func TestRecoverActiveMatches(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	wantSeq := env.turns.snapSeqs[matchID]

	// Simulate a restart with a cold Redis: only the Postgres snapshot
	// survives.
	delete(env.cache.states, matchID)
	fresh := NewMatchService(env.matches, env.turns, env.cache, &recordingBroadcaster{}, gambit.DefaultSettings())
	if err := fresh.RecoverActiveMatches(ctx); err != nil {
		t.Fatalf("RecoverActiveMatches: %v", err)
	}

	fs, err := fresh.StateFor(ctx, matchID, gambit.RoleSpectator)
	if err != nil {
		t.Fatalf("StateFor after recovery: %v", err)
	}
	if fs.Seq != wantSeq {
		t.Errorf("recovered seq = %d, want %d", fs.Seq, wantSeq)
	}
	if fs.Board["e4"] != "wP" {
		t.Errorf("recovered board lost the move: e4 = %q", fs.Board["e4"])
	}
}

func TestRecoverActiveMatches_RearmsDuelTimer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "d1", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}

	cache := newMockCache()
	cache.states[matchID] = env.cache.states[matchID]
	fresh := NewMatchService(env.matches, env.turns, cache, &recordingBroadcaster{}, gambit.DefaultSettings())
	if err := fresh.RecoverActiveMatches(ctx); err != nil {
		t.Fatalf("RecoverActiveMatches: %v", err)
	}
	if _, ok := cache.timers[matchID]; !ok {
		t.Error("duel timer not re-armed after recovery")
	}
}

func TestCheckTimeouts_SweepsExpiredWindows(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "d7"); err != nil {
		t.Fatalf("capture move: %v", err)
	}

	// Nothing expires while the window is open.
	env.svc.CheckTimeouts(ctx)
	if _, err := env.bcast.lastOfType(EventDuelOutcome); err == nil {
		t.Fatal("duel resolved before its deadline")
	}

	env.svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	env.svc.CheckTimeouts(ctx)
	if _, err := env.bcast.lastOfType(EventDuelOutcome); err != nil {
		t.Error("expired duel not swept by poller")
	}
}

func TestStateBroadcast_PerRoleFiltering(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	matchID := startedMatch(t, env)

	env.bcast.events = nil
	if err := env.svc.SubmitMove(ctx, matchID, "alice", "e2", "e4"); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}

	roles := map[gambit.Role]bool{}
	for _, e := range env.bcast.events {
		if e.Type == EventState {
			roles[e.Role] = true
			fs := e.Data.(gambit.FilteredState)
			if self, ok := e.Role.Side(); ok {
				if !fs.Pools[self.String()].Known {
					t.Errorf("%s state hides own pool", e.Role)
				}
				if fs.Pools[self.Other().String()].Known {
					t.Errorf("%s state leaks opponent pool", e.Role)
				}
			} else if fs.Pools["white"].Known || fs.Pools["black"].Known {
				t.Error("spectator state leaks a pool")
			}
		}
	}
	for _, r := range []gambit.Role{gambit.RoleWhite, gambit.RoleBlack, gambit.RoleSpectator} {
		if !roles[r] {
			t.Errorf("no state broadcast for role %q", r)
		}
	}
}
