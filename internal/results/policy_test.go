package results

import (
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

func TestApplyPolicy(t *testing.T) {
	cases := []struct {
		name       string
		multiplier *float64
		winner     string
		retention  RetentionPeriod
		priority   Priority
	}{
		{name: "critical multiplier", multiplier: ptr(150), retention: Retention30d, priority: PriorityCritical},
		{name: "boundary 100", multiplier: ptr(100), retention: Retention30d, priority: PriorityCritical},
		{name: "high multiplier", multiplier: ptr(10), retention: Retention30d, priority: PriorityHigh},
		{name: "multiplier beats bonus", multiplier: ptr(25), winner: "Bonus Round", retention: Retention30d, priority: PriorityHigh},
		{name: "bonus winner", multiplier: ptr(5), winner: "Bonus Round", retention: Retention7d, priority: PriorityHigh},
		{name: "bonus case insensitive", winner: "crazy BONUS", retention: Retention7d, priority: PriorityHigh},
		{name: "zero multiplier", multiplier: ptr(0), retention: Retention7d, priority: PriorityNormal},
		{name: "no data", retention: Retention7d, priority: PriorityNormal},
		{name: "just below high", multiplier: ptr(9.99), winner: "player", retention: Retention7d, priority: PriorityNormal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyPolicy(tc.multiplier, tc.winner, "sweet-bonanza")
			if got.Retention != tc.retention || got.Priority != tc.priority {
				t.Fatalf("ApplyPolicy() = %+v, want %s/%s", got, tc.retention, tc.priority)
			}
		})
	}
}

func TestExpiresAtExactSpan(t *testing.T) {
	extracted := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := ApplyPolicy(ptr(150), "", "sweet-bonanza")
	expires := p.Retention.ExpiresAt(extracted)
	if expires.Sub(extracted) != 30*24*time.Hour {
		t.Fatalf("span = %v, want 720h", expires.Sub(extracted))
	}
	want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if !expires.Equal(want) {
		t.Fatalf("expires = %v, want %v", expires, want)
	}
}

func TestRetentionDurationsAlwaysPositive(t *testing.T) {
	for _, p := range []RetentionPeriod{Retention1d, Retention3d, Retention7d, Retention30d, RetentionPermanent, "bogus"} {
		if p.Duration() <= 0 {
			t.Fatalf("%s duration must be positive", p)
		}
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	r := GameResult{ExpiresAt: now}
	if !r.Expired(now) {
		t.Fatal("row expiring exactly now should be expired")
	}
	r.ExpiresAt = now.Add(time.Second)
	if r.Expired(now) {
		t.Fatal("future expiry should not be expired")
	}
}

func TestPriorityRankOrder(t *testing.T) {
	order := []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical, PriorityPermanent}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("%s should rank below %s", order[i-1], order[i])
		}
	}
	if Priority("bogus").Rank() != 0 {
		t.Fatal("unknown priority should rank 0")
	}
}
