package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// payload is the table update body, either the frame itself or its data object.
type payload struct {
	GameResult   []rawEntry      `json:"gameResult"`
	Last20       []rawEntry      `json:"last20Results"`
	DealerName   json.RawMessage `json:"dealerName"`
	Dealer       json.RawMessage `json:"dealer"`
	TotalPlayers json.RawMessage `json:"totalPlayers"`
}

type rawEntry struct {
	Result       json.RawMessage `json:"result"`
	Multiplier   json.RawMessage `json:"multiplier"`
	Payout       json.RawMessage `json:"payout"`
	Winner       json.RawMessage `json:"winner"`
	GameID       json.RawMessage `json:"gameId"`
	Time         json.RawMessage `json:"time"`
	Color        json.RawMessage `json:"color"`
	CardValue    json.RawMessage `json:"cardValue"`
	Slots        json.RawMessage `json:"slots"`
	DealerName   json.RawMessage `json:"dealerName"`
	TotalPlayers json.RawMessage `json:"totalPlayers"`
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// rawString reads a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawFloat reads a JSON number or numeric string. A trailing "x" is accepted
// ("120x").
func rawFloat(raw json.RawMessage) *float64 {
	s := rawString(raw)
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(strings.ToLower(s), "x")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func rawInt(raw json.RawMessage) *int {
	f := rawFloat(raw)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// rawTime reads RFC3339 text or epoch milliseconds.
func rawTime(raw json.RawMessage) (time.Time, bool) {
	s := rawString(raw)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func dealerName(p payload) string {
	if name := rawString(p.DealerName); name != "" {
		return name
	}
	if isNull(p.Dealer) {
		return ""
	}
	var d struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(p.Dealer, &d); err == nil && d.Name != "" {
		return d.Name
	}
	return rawString(p.Dealer)
}
