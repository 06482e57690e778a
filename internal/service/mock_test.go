package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crowngambit/api/internal/model"
	"github.com/crowngambit/api/pkg/gambit"
)

// mockMatchRepo implements repository.MatchRepository in memory.
type mockMatchRepo struct {
	matches map[string]*model.Match
	players map[string][]model.MatchPlayer
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{
		matches: make(map[string]*model.Match),
		players: make(map[string][]model.MatchPlayer),
	}
}

func (m *mockMatchRepo) Create(_ context.Context, id, name, creatorID string) (*model.Match, error) {
	match := &model.Match{
		ID:        id,
		Name:      name,
		CreatorID: creatorID,
		Status:    "waiting",
		CreatedAt: time.Now(),
	}
	m.matches[id] = match
	return match, nil
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockMatchRepo) ListOpen(_ context.Context) ([]model.Match, error) {
	return m.listByStatus("waiting"), nil
}

func (m *mockMatchRepo) ListActive(_ context.Context) ([]model.Match, error) {
	return m.listByStatus("active"), nil
}

func (m *mockMatchRepo) ListFinished(_ context.Context) ([]model.Match, error) {
	return m.listByStatus("finished"), nil
}

func (m *mockMatchRepo) listByStatus(status string) []model.Match {
	var result []model.Match
	for _, match := range m.matches {
		if match.Status == status {
			cp := *match
			cp.Players = m.players[match.ID]
			result = append(result, cp)
		}
	}
	return result
}

func (m *mockMatchRepo) Join(_ context.Context, matchID, playerID, seat string) error {
	for _, p := range m.players[matchID] {
		if p.PlayerID == playerID || p.Seat == seat {
			return nil
		}
	}
	m.players[matchID] = append(m.players[matchID], model.MatchPlayer{
		MatchID:  matchID,
		PlayerID: playerID,
		Seat:     seat,
		JoinedAt: time.Now(),
	})
	return nil
}

func (m *mockMatchRepo) ListPlayers(_ context.Context, matchID string) ([]model.MatchPlayer, error) {
	return m.players[matchID], nil
}

func (m *mockMatchRepo) SetActive(_ context.Context, matchID string) error {
	if match, ok := m.matches[matchID]; ok {
		match.Status = "active"
		now := time.Now()
		match.StartedAt = &now
	}
	return nil
}

func (m *mockMatchRepo) SetFinished(_ context.Context, matchID, winner string, faulted bool) error {
	if match, ok := m.matches[matchID]; ok {
		match.Status = "finished"
		match.Winner = winner
		match.Faulted = faulted
		now := time.Now()
		match.FinishedAt = &now
	}
	return nil
}

func (m *mockMatchRepo) Delete(_ context.Context, matchID string) error {
	delete(m.matches, matchID)
	delete(m.players, matchID)
	return nil
}

// mockTurnRepo implements repository.TurnRepository in memory.
type mockTurnRepo struct {
	turns     map[string][]model.Turn
	snapshots map[string]json.RawMessage
	snapSeqs  map[string]uint64
}

func newMockTurnRepo() *mockTurnRepo {
	return &mockTurnRepo{
		turns:     make(map[string][]model.Turn),
		snapshots: make(map[string]json.RawMessage),
		snapSeqs:  make(map[string]uint64),
	}
}

func (m *mockTurnRepo) RecordTurn(_ context.Context, turn model.Turn) error {
	turn.ID = int64(len(m.turns[turn.MatchID]) + 1)
	turn.CreatedAt = time.Now()
	m.turns[turn.MatchID] = append(m.turns[turn.MatchID], turn)
	return nil
}

func (m *mockTurnRepo) ListTurns(_ context.Context, matchID string) ([]model.Turn, error) {
	return m.turns[matchID], nil
}

func (m *mockTurnRepo) SaveSnapshot(_ context.Context, matchID string, seq uint64, state json.RawMessage) error {
	m.snapshots[matchID] = append(json.RawMessage(nil), state...)
	m.snapSeqs[matchID] = seq
	return nil
}

func (m *mockTurnRepo) LatestSnapshot(_ context.Context, matchID string) (json.RawMessage, uint64, error) {
	return m.snapshots[matchID], m.snapSeqs[matchID], nil
}

// mockCache implements repository.MatchCache in memory.
type mockCache struct {
	states map[string]json.RawMessage
	timers map[string]time.Time
}

func newMockCache() *mockCache {
	return &mockCache{
		states: make(map[string]json.RawMessage),
		timers: make(map[string]time.Time),
	}
}

func (c *mockCache) SetMatchState(_ context.Context, matchID string, state json.RawMessage) error {
	c.states[matchID] = append(json.RawMessage(nil), state...)
	return nil
}

func (c *mockCache) GetMatchState(_ context.Context, matchID string) (json.RawMessage, error) {
	return c.states[matchID], nil
}

func (c *mockCache) SetTimer(_ context.Context, matchID string, deadline time.Time) error {
	c.timers[matchID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, matchID string) error {
	delete(c.timers, matchID)
	return nil
}

func (c *mockCache) DeleteMatchData(_ context.Context, matchID string) error {
	delete(c.states, matchID)
	delete(c.timers, matchID)
	return nil
}

// recordingBroadcaster captures events for assertions.
type recordedEvent struct {
	MatchID string
	Role    gambit.Role // empty for match-wide events
	Type    string
	Data    any
}

type recordingBroadcaster struct {
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastMatchEvent(matchID, eventType string, data any) {
	b.events = append(b.events, recordedEvent{MatchID: matchID, Type: eventType, Data: data})
}

func (b *recordingBroadcaster) SendRoleEvent(matchID string, role gambit.Role, eventType string, data any) {
	b.events = append(b.events, recordedEvent{MatchID: matchID, Role: role, Type: eventType, Data: data})
}

func (b *recordingBroadcaster) typesFor(matchID string) []string {
	var types []string
	for _, e := range b.events {
		if e.MatchID == matchID {
			types = append(types, e.Type)
		}
	}
	return types
}

func (b *recordingBroadcaster) lastOfType(eventType string) (recordedEvent, error) {
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == eventType {
			return b.events[i], nil
		}
	}
	return recordedEvent{}, fmt.Errorf("no %q event recorded", eventType)
}
