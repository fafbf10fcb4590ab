package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"casino-relay/internal/results"
	"casino-relay/internal/upstream"
)

func TestFormatResultMessage(t *testing.T) {
	mult := 250.0
	players := 1200
	rec := results.GameResult{
		GameID: "crazy-time", TableID: "701", Result: "250", ResultType: results.ResultNumber,
		Multiplier: &mult, Priority: results.PriorityCritical, RetentionPeriod: results.Retention30d,
		RoundID: "r9", DealerName: "Ana", TotalPlayers: &players,
		ExtractedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	msg, ok := FormatMessage(Event{Type: EventResult, Result: &rec})
	if !ok {
		t.Fatal("expected result message")
	}
	if msg.Title != "crazy-time · T:701 · 250x" {
		t.Fatalf("unexpected title: %q", msg.Title)
	}
	if msg.Color != colorCritical || msg.Timestamp != "2024-03-01T12:00:00Z" || msg.PanelKey != "" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	want := map[string]string{"Multiplier": "250x", "Round": "r9", "Dealer": "Ana", "Players": "1200", "Retention": "30d"}
	for _, f := range msg.Fields {
		if v, ok := want[f.Name]; ok {
			if f.Value != v {
				t.Fatalf("field %s = %q, want %q", f.Name, f.Value, v)
			}
			delete(want, f.Name)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing fields: %v", want)
	}
}

func TestFormatResultUsesWinnerHeadline(t *testing.T) {
	rec := results.GameResult{GameID: "baccarat", TableID: "401", Result: "banker", Winner: "banker", Priority: results.PriorityHigh}
	msg, ok := FormatMessage(Event{Type: EventResult, Result: &rec})
	if !ok || !strings.HasSuffix(msg.Title, "banker") || msg.Color != colorWarn {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestFormatUpstreamMessages(t *testing.T) {
	msg, ok := FormatMessage(Event{Type: EventUpstreamState, UpstreamState: upstream.StateFailed, Detail: errors.New("dial refused").Error()})
	if !ok {
		t.Fatal("expected upstream message")
	}
	if msg.PanelKey != upstreamPanelKey || msg.Color != colorCritical {
		t.Fatalf("unexpected failed message: %+v", msg)
	}
	if len(msg.Fields) != 2 || msg.Fields[1].Value != "dial refused" {
		t.Fatalf("expected error field, got %+v", msg.Fields)
	}

	if _, ok := FormatMessage(Event{Type: EventUpstreamState, UpstreamState: upstream.StateConnecting}); ok {
		t.Fatal("connecting state should not format")
	}
	if _, ok := FormatMessage(Event{Type: EventResult}); ok {
		t.Fatal("result event without result should not format")
	}
}
