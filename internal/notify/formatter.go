package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"casino-relay/internal/results"
	"casino-relay/internal/upstream"
)

const (
	colorInfo     = 0x5865F2
	colorWarn     = 0xFEE75C
	colorRecover  = 0x57F287
	colorCritical = 0xED4245

	defaultFooter = "casino-relay"
)

func FormatMessage(ev Event) (FormattedMessage, bool) {
	base := FormattedMessage{
		Timestamp: eventTimestamp(ev.At),
		Footer:    defaultFooter,
	}
	switch ev.Type {
	case EventResult:
		if ev.Result == nil {
			return FormattedMessage{}, false
		}
		return formatResult(base, *ev.Result), true
	case EventUpstreamState:
		return formatUpstream(base, ev)
	default:
		return FormattedMessage{}, false
	}
}

func formatResult(base FormattedMessage, r results.GameResult) FormattedMessage {
	base.Title = fmt.Sprintf("%s · T:%s · %s", r.GameID, fallback(r.TableID, "-"), resultHeadline(r))
	base.Content = fmt.Sprintf("%s result on %s", r.Priority, r.GameID)
	base.Description = fmt.Sprintf("Table %s produced %s.", fallback(r.TableID, "-"), resultHeadline(r))
	base.Color = priorityColor(r.Priority)
	if !r.ExtractedAt.IsZero() {
		base.Timestamp = eventTimestamp(r.ExtractedAt)
	}

	fields := []MessageField{
		{Name: "Result", Value: fallback(r.Result, "-"), Inline: true},
		{Name: "Type", Value: string(r.ResultType), Inline: true},
		{Name: "Priority", Value: string(r.Priority), Inline: true},
		{Name: "Retention", Value: string(r.RetentionPeriod), Inline: true},
	}
	if r.Multiplier != nil {
		fields = append(fields, MessageField{Name: "Multiplier", Value: formatMultiplier(*r.Multiplier), Inline: true})
	}
	if r.Winner != "" {
		fields = append(fields, MessageField{Name: "Winner", Value: r.Winner, Inline: true})
	}
	if r.RoundID != "" {
		fields = append(fields, MessageField{Name: "Round", Value: r.RoundID, Inline: true})
	}
	if r.DealerName != "" {
		fields = append(fields, MessageField{Name: "Dealer", Value: r.DealerName, Inline: true})
	}
	if r.TotalPlayers != nil {
		fields = append(fields, MessageField{Name: "Players", Value: strconv.Itoa(*r.TotalPlayers), Inline: true})
	}
	base.Fields = fields
	return base
}

func formatUpstream(base FormattedMessage, ev Event) (FormattedMessage, bool) {
	base.PanelKey = upstreamPanelKey
	switch ev.UpstreamState {
	case upstream.StateReconnecting:
		base.Title = "Upstream feed reconnecting"
		base.Description = "The upstream WebSocket dropped and is retrying."
		base.Color = colorWarn
	case upstream.StateFailed:
		base.Title = "Upstream feed failed"
		base.Description = "Reconnect attempts are exhausted. POST /admin/upstream/reconnect to retry."
		base.Color = colorCritical
	case upstream.StateConnected:
		base.Title = "Upstream feed recovered"
		base.Description = "The upstream WebSocket is connected again."
		base.Color = colorRecover
	default:
		return FormattedMessage{}, false
	}
	base.Content = strings.ToLower(base.Title)
	base.Fields = []MessageField{{Name: "State", Value: string(ev.UpstreamState), Inline: true}}
	if ev.Detail != "" {
		base.Fields = append(base.Fields, MessageField{Name: "Error", Value: ev.Detail, Inline: false})
	}
	return base, true
}

func resultHeadline(r results.GameResult) string {
	if r.Multiplier != nil {
		return formatMultiplier(*r.Multiplier)
	}
	if r.Winner != "" {
		return r.Winner
	}
	return fallback(r.Result, "result")
}

func priorityColor(p results.Priority) int {
	switch p {
	case results.PriorityCritical, results.PriorityPermanent:
		return colorCritical
	case results.PriorityHigh:
		return colorWarn
	default:
		return colorInfo
	}
}

func formatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64) + "x"
}

func eventTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
