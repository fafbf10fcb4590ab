package results

import (
	"encoding/json"
	"time"
)

type ResultType string

const (
	ResultNumber ResultType = "number"
	ResultCard   ResultType = "card"
	ResultColor  ResultType = "color"
	ResultText   ResultType = "text"
)

type RetentionPeriod string

const (
	Retention1d        RetentionPeriod = "1d"
	Retention3d        RetentionPeriod = "3d"
	Retention7d        RetentionPeriod = "7d"
	Retention30d       RetentionPeriod = "30d"
	RetentionPermanent RetentionPeriod = "permanent"
)

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityCritical  Priority = "critical"
	PriorityPermanent Priority = "permanent"
)

// Rank orders priorities from low (1) to permanent (5). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	case PriorityPermanent:
		return 5
	}
	return 0
}

// GameResult is one observed round outcome. It is built once by the ingest
// pipeline and never mutated afterwards.
type GameResult struct {
	ID              string          `json:"id"`
	GameID          string          `json:"game_id"`
	TableID         string          `json:"table_id"`
	Result          string          `json:"result"`
	ResultType      ResultType      `json:"result_type"`
	Winner          string          `json:"winner,omitempty"`
	Multiplier      *float64        `json:"multiplier,omitempty"`
	CardValue       string          `json:"card_value,omitempty"`
	Color           string          `json:"color,omitempty"`
	Slots           json.RawMessage `json:"slots,omitempty"`
	Payout          *float64        `json:"payout,omitempty"`
	ExtractedAt     time.Time       `json:"extracted_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	RetentionPeriod RetentionPeriod `json:"retention_period"`
	Priority        Priority        `json:"priority"`
	RoundID         string          `json:"round_id,omitempty"`
	DealerName      string          `json:"dealer_name,omitempty"`
	TotalPlayers    *int            `json:"total_players,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// Expired reports whether the row is eligible for deletion at now.
func (r GameResult) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// RecentQuery selects unexpired results newest first. Empty GameID/TableID
// match everything; a zero Since disables the lower bound.
type RecentQuery struct {
	GameID  string
	TableID string
	Limit   int
	Since   time.Time
}

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 500
)

// Normalize clamps Limit into [1, MaxRecentLimit].
func (q RecentQuery) Normalize() RecentQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultRecentLimit
	}
	if q.Limit > MaxRecentLimit {
		q.Limit = MaxRecentLimit
	}
	return q
}
