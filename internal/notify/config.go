package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"casino-relay/internal/config"
	"casino-relay/internal/results"
)

func ConfigFromApp(cfg config.NotifyConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.Enabled,
		ConfigPath:          strings.TrimSpace(cfg.TargetsPath),
		ConfigReload:        time.Duration(cfg.ReloadMS) * time.Millisecond,
		Workers:             cfg.Workers,
		RetryMax:            cfg.RetryMax,
		RetryBase:           time.Duration(cfg.RetryBaseMS) * time.Millisecond,
		MinPriority:         results.Priority(strings.ToLower(strings.TrimSpace(cfg.MinPriority))),
		TableInterval:       time.Duration(cfg.TableIntervalMS) * time.Millisecond,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      1024,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.MinPriority.Rank() == 0 {
		out.MinPriority = results.PriorityHigh
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func loadTargetsJSON(cfg config.NotifyConfig) (string, error) {
	path := strings.TrimSpace(cfg.TargetsPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read notify targets %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.TargetsJSON), nil
}

// parseTargetsJSON normalizes targets and silently skips disabled or
// unusable entries.
func parseTargetsJSON(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse notify targets: %w", err)
	}
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
		t.Endpoint = strings.TrimSpace(t.Endpoint)
		t.ScopeType = strings.ToLower(strings.TrimSpace(t.ScopeType))
		t.ScopeValue = strings.TrimSpace(t.ScopeValue)
		t.MinPriority = results.Priority(strings.ToLower(strings.TrimSpace(string(t.MinPriority))))
		if t.ScopeType == "" {
			t.ScopeType = ScopeAll
		}
		if !t.Enabled || t.Endpoint == "" {
			continue
		}
		switch t.ScopeType {
		case ScopeAll:
		case ScopeGame, ScopeTable:
			if t.ScopeValue == "" {
				continue
			}
		default:
			continue
		}
		if t.MinPriority != "" && t.MinPriority.Rank() == 0 {
			continue
		}
		for i := range t.EventAllowlist {
			t.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(t.EventAllowlist[i]))
		}
		out = append(out, t)
	}
	return out, nil
}
