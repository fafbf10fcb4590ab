// Package notify pushes webhook alerts for notable results and upstream
// feed outages to Discord and Feishu targets.
package notify

import (
	"time"

	"casino-relay/internal/results"
	"casino-relay/internal/upstream"
)

const (
	EventResult        = "result"
	EventUpstreamState = "upstream_state"

	ScopeAll   = "all"
	ScopeGame  = "game"
	ScopeTable = "table"

	upstreamPanelKey = "upstream"
)

type Target struct {
	Platform       string           `json:"platform"`
	Endpoint       string           `json:"endpoint"`
	Secret         string           `json:"secret"`
	ScopeType      string           `json:"scope_type"`
	ScopeValue     string           `json:"scope_value"`
	MinPriority    results.Priority `json:"min_priority"`
	EventAllowlist []string         `json:"event_allowlist"`
	Enabled        bool             `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	MinPriority         results.Priority
	TableInterval       time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

// Event is either a stored result or an upstream state transition.
type Event struct {
	Type          string
	GameID        string
	TableID       string
	Priority      results.Priority
	Result        *results.GameResult
	UpstreamState upstream.State
	Detail        string
	At            time.Time
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	PanelKey    string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type pushJob struct {
	Target    Target
	Event     Event
	Formatted FormattedMessage
	Attempt   int
	// PanelTerminal drops the panel after delivery so the next outage posts anew.
	PanelTerminal bool
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}

type Stats struct {
	Enabled   bool  `json:"enabled"`
	Targets   int   `json:"targets"`
	QueueLen  int   `json:"queue_len"`
	Queued    int64 `json:"queued"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Throttled int64 `json:"throttled"`
	Retries   int64 `json:"retries"`
	Reloads   int64 `json:"config_reloads"`
}
