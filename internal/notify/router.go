package notify

import (
	"strings"

	"casino-relay/internal/results"
)

type Router struct {
	// DefaultMin applies to targets without their own min_priority.
	DefaultMin results.Priority
}

func (r Router) MatchTargets(targets []Target, ev Event) []Target {
	if len(targets) == 0 {
		return nil
	}
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		if !scopeMatches(t, ev) {
			continue
		}
		if ev.Type == EventResult && !r.priorityAllowed(t, ev.Priority) {
			continue
		}
		if !eventAllowed(t.EventAllowlist, ev.Type) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r Router) priorityAllowed(t Target, p results.Priority) bool {
	threshold := t.MinPriority
	if threshold == "" {
		threshold = r.DefaultMin
	}
	return p.Rank() >= threshold.Rank()
}

// Upstream events carry no game or table and only reach "all" targets.
func scopeMatches(t Target, ev Event) bool {
	switch t.ScopeType {
	case ScopeAll:
		return true
	case ScopeGame:
		return ev.GameID != "" && t.ScopeValue == ev.GameID
	case ScopeTable:
		return ev.TableID != "" && t.ScopeValue == ev.TableID
	default:
		return false
	}
}

func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	evType = strings.ToLower(strings.TrimSpace(evType))
	for _, v := range allowlist {
		if v != "" && v == evType {
			return true
		}
	}
	return false
}
