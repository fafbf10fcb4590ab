package broadcast

import (
	"encoding/json"
	"time"

	"casino-relay/internal/results"
)

const (
	EventConnected      = "connected"
	EventGameData       = "gameData"
	EventNewResult      = "new_result"
	EventInitialResults = "initial_results"
	EventPing           = "ping"
	EventError          = "error"
	EventShutdown       = "shutdown"
)

type ConnectedPayload struct {
	ClientID   string   `json:"client_id"`
	GameID     string   `json:"game_id"`
	TableIDs   []string `json:"table_ids"`
	ServerTime int64    `json:"server_ts"`
}

type GameDataPayload struct {
	GameID     string          `json:"game_id"`
	TableID    string          `json:"table_id"`
	Type       string          `json:"type,omitempty"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"received_at"`
}

// InitialResultsPayload carries either a cached table snapshot or recent
// persisted results sent right after connect.
type InitialResultsPayload struct {
	GameID   string               `json:"game_id"`
	TableID  string               `json:"table_id,omitempty"`
	Snapshot json.RawMessage      `json:"snapshot,omitempty"`
	Results  []results.GameResult `json:"results,omitempty"`
}

type PingPayload struct {
	TS int64 `json:"ts"`
}

type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ShutdownPayload struct {
	Reason string `json:"reason"`
}
