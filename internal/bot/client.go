// Package bot implements a scripted player that drives a match through the
// public HTTP and WebSocket API, used for smoke testing a running server.
package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/crowngambit/api/internal/model"
	"github.com/crowngambit/api/pkg/gambit"
)

// WSEvent mirrors handler.WSEvent for client-side deserialization.
type WSEvent struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id"`
	Data    json.RawMessage `json:"data"`
}

// Client is an HTTP+WebSocket client for a single player identity.
type Client struct {
	playerID string
	baseURL  string
	wsConn   *websocket.Conn
	events   chan WSEvent
	httpC    *http.Client
	mu       sync.Mutex
	closedWS bool
}

// NewClient creates a client targeting the given server URL. The playerID
// doubles as the viewer identity on reads and the WebSocket connection.
func NewClient(playerID, baseURL string) *Client {
	return &Client{
		playerID: playerID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		events:   make(chan WSEvent, 64),
		httpC:    &http.Client{Timeout: 30 * time.Second},
	}
}

// PlayerID returns the identity this client plays as.
func (c *Client) PlayerID() string { return c.playerID }

// CreateMatch creates a new match and returns its ID. The creator is
// seated as white.
func (c *Client) CreateMatch(name string) (string, error) {
	resp, err := c.postJSON("/api/v1/matches", map[string]string{
		"name":      name,
		"player_id": c.playerID,
	})
	if err != nil {
		return "", err
	}
	id, _ := resp["id"].(string)
	return id, nil
}

// JoinMatch takes the first free seat in an existing match.
func (c *Client) JoinMatch(matchID string) error {
	return c.post("/api/v1/matches/"+matchID+"/join", map[string]string{"player_id": c.playerID})
}

// GetMatch fetches the match record including seating.
func (c *Client) GetMatch(matchID string) (*model.Match, error) {
	var m model.Match
	if err := c.getInto("/api/v1/matches/"+matchID, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Seat returns this player's seat in the match ("white" or "black"), or an
// error if the player holds no seat.
func (c *Client) Seat(matchID string) (gambit.Color, error) {
	m, err := c.GetMatch(matchID)
	if err != nil {
		return 0, err
	}
	for _, p := range m.Players {
		if p.PlayerID == c.playerID {
			if side, ok := gambit.Role(p.Seat).Side(); ok {
				return side, nil
			}
		}
	}
	return 0, fmt.Errorf("player %s holds no seat in match %s", c.playerID, matchID)
}

// State fetches the viewer-filtered match state.
func (c *Client) State(matchID string) (*gambit.FilteredState, error) {
	var fs gambit.FilteredState
	path := "/api/v1/matches/" + matchID + "/state?viewer=" + url.QueryEscape(c.playerID)
	if err := c.getInto(path, &fs); err != nil {
		return nil, err
	}
	return &fs, nil
}

// Move submits a move attempt.
func (c *Client) Move(matchID, from, to string) error {
	return c.post("/api/v1/matches/"+matchID+"/move", map[string]string{
		"player_id": c.playerID, "from": from, "to": to,
	})
}

// DuelCommit submits a sealed allocation commitment.
func (c *Client) DuelCommit(matchID, commitment string) error {
	return c.post("/api/v1/matches/"+matchID+"/duel/commit", map[string]string{
		"player_id": c.playerID, "commitment": commitment,
	})
}

// DuelReveal opens a previously committed allocation.
func (c *Client) DuelReveal(matchID string, amount int, nonce string) error {
	return c.post("/api/v1/matches/"+matchID+"/duel/reveal", map[string]any{
		"player_id": c.playerID, "amount": amount, "nonce": nonce,
	})
}

// Retreat selects a retreat square after a failed capture duel.
func (c *Client) Retreat(matchID, to string) error {
	return c.post("/api/v1/matches/"+matchID+"/retreat", map[string]string{
		"player_id": c.playerID, "to": to,
	})
}

// Resign concedes the match.
func (c *Client) Resign(matchID string) error {
	return c.post("/api/v1/matches/"+matchID+"/resign", map[string]string{"player_id": c.playerID})
}

// ConnectWS opens a WebSocket connection and starts listening for events.
func (c *Client) ConnectWS() error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/ws?viewer=" + url.QueryEscape(c.playerID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.wsConn = conn

	go c.readWSLoop()
	return nil
}

// Subscribe sends a subscribe message for the given match.
func (c *Client) Subscribe(matchID string) error {
	msg := map[string]string{"action": "subscribe", "match_id": matchID}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wsConn.WriteJSON(msg)
}

// Events returns the channel of incoming WebSocket events.
func (c *Client) Events() <-chan WSEvent { return c.events }

// CloseWS closes the WebSocket connection.
func (c *Client) CloseWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil && !c.closedWS {
		c.closedWS = true
		c.wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsConn.Close()
	}
}

func (c *Client) readWSLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			if !c.closedWS {
				log.Debug().Err(err).Str("player", c.playerID).Msg("WS read error")
			}
			return
		}
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}
		c.events <- event
	}
}

func (c *Client) getInto(path string, out any) error {
	resp, err := c.httpC.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// post sends a POST request and checks for errors without decoding the
// response body.
func (c *Client) post(path string, payload any) error {
	resp, err := c.doPost(path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, body)
	}
	return nil
}

func (c *Client) postJSON(path string, payload any) (map[string]any, error) {
	resp, err := c.doPost(path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, body)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func (c *Client) doPost(path string, payload any) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpC.Do(req)
}
