package results

import (
	"strings"
	"time"
)

const day = 24 * time.Hour

// permanentSpan stands in for "never" while keeping ExpiresAt a real timestamp.
const permanentSpan = 100 * 365 * day

// Policy is the retention decision for one result.
type Policy struct {
	Retention RetentionPeriod
	Priority  Priority
}

// ApplyPolicy evaluates the retention rules in order: big multipliers first,
// then bonus winners, then the default.
func ApplyPolicy(multiplier *float64, winner, _ string) Policy {
	m := 0.0
	if multiplier != nil {
		m = *multiplier
	}
	switch {
	case m >= 100:
		return Policy{Retention: Retention30d, Priority: PriorityCritical}
	case m >= 10:
		return Policy{Retention: Retention30d, Priority: PriorityHigh}
	case strings.Contains(strings.ToLower(winner), "bonus"):
		return Policy{Retention: Retention7d, Priority: PriorityHigh}
	default:
		return Policy{Retention: Retention7d, Priority: PriorityNormal}
	}
}

// Duration returns the lifetime of a retention period.
func (p RetentionPeriod) Duration() time.Duration {
	switch p {
	case Retention1d:
		return day
	case Retention3d:
		return 3 * day
	case Retention7d:
		return 7 * day
	case Retention30d:
		return 30 * day
	case RetentionPermanent:
		return permanentSpan
	default:
		return 7 * day
	}
}

// ExpiresAt computes the expiry for a row extracted at t.
func (p RetentionPeriod) ExpiresAt(t time.Time) time.Time {
	return t.Add(p.Duration())
}
