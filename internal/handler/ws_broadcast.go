package handler

import "github.com/crowngambit/api/pkg/gambit"

// The Hub implements service.Broadcaster.

// BroadcastMatchEvent sends a public event to every match subscriber.
func (h *Hub) BroadcastMatchEvent(matchID string, eventType string, data any) {
	h.BroadcastToMatch(matchID, WSEvent{
		Type:    eventType,
		MatchID: matchID,
		Data:    data,
	})
}

// SendRoleEvent sends a role-scoped event, typically a filtered snapshot
// or retreat options, only to the subscribers holding that role.
func (h *Hub) SendRoleEvent(matchID string, role gambit.Role, eventType string, data any) {
	h.BroadcastToRole(matchID, role, WSEvent{
		Type:    eventType,
		MatchID: matchID,
		Data:    data,
	})
}
