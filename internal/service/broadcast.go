package service

import "github.com/crowngambit/api/pkg/gambit"

// WebSocket event types pushed to match subscribers.
const (
	EventMatchStarted   = "match_started"
	EventState          = "state"
	EventDuelInitiated  = "duel_initiated"
	EventDuelCommitted  = "duel_committed"
	EventDuelOutcome    = "duel_outcome"
	EventRetreatOptions = "retreat_options"
	EventMatchEnded     = "match_ended"
)

// Broadcaster sends real-time events to connected clients. Implemented
// by the WebSocket hub; a no-op implementation keeps the service usable
// without one.
//
// The two methods differ in audience: BroadcastMatchEvent reaches every
// subscriber of a match and must only carry public data, SendRoleEvent
// reaches the subscribers holding one role and may carry that role's
// private view.
type Broadcaster interface {
	BroadcastMatchEvent(matchID string, eventType string, data any)
	SendRoleEvent(matchID string, role gambit.Role, eventType string, data any)
}

// NoopBroadcaster discards all events.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any)        {}
func (NoopBroadcaster) SendRoleEvent(string, gambit.Role, string, any) {}
