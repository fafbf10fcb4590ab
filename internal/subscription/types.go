package subscription

import (
	"encoding/json"
	"time"
)

// TableUpdate is one raw upstream update for a table. The most recent update per
// table is cached as the table snapshot.
type TableUpdate struct {
	TableID    string          `json:"table_id"`
	Type       string          `json:"type,omitempty"`
	Raw        json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"received_at"`
	// Replayed marks a cached snapshot handed to a sink when it subscribes.
	Replayed bool `json:"replayed,omitempty"`
}

// ResultSink receives table updates for the games it subscribed to.
// Deliver must not block and must not call back into the Registry.
type ResultSink interface {
	Deliver(update TableUpdate) error
}

// FuncSink adapts a function to ResultSink. Use NewFuncSink so each sink has its
// own identity in the registry.
type FuncSink struct {
	fn func(TableUpdate) error
}

func NewFuncSink(fn func(TableUpdate) error) *FuncSink {
	return &FuncSink{fn: fn}
}

func (s *FuncSink) Deliver(update TableUpdate) error {
	return s.fn(update)
}

// Feed is the upstream side of the registry.
type Feed interface {
	SubscribeTable(tableID string)
	UnsubscribeTable(tableID string)
}

type GameData struct {
	GameID    string                 `json:"game_id"`
	TableIDs  []string               `json:"table_ids"`
	Listeners int                    `json:"listeners"`
	Snapshots map[string]TableUpdate `json:"snapshots"`
}

type Stats struct {
	Games     int            `json:"games"`
	Tables    int            `json:"tables"`
	Listeners int            `json:"listeners"`
	Snapshots int            `json:"snapshots"`
	RefCounts map[string]int `json:"ref_counts"`
	Delivered int64          `json:"delivered"`
	SinkFails int64          `json:"sink_failures"`
}
