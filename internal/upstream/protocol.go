package upstream

import (
	"bytes"
	"encoding/json"
)

const (
	MsgAvailable   = "available"
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
)

// ControlMessage is an outbound provider control frame.
type ControlMessage struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	CasinoID string `json:"casinoId"`
	Currency string `json:"currency,omitempty"`
}

type inboundFrame struct {
	Type    string          `json:"type"`
	TableID FlexString      `json:"tableId"`
	Tables  json.RawMessage `json:"tables"`
	Data    json.RawMessage `json:"data"`
}

type nestedTable struct {
	TableID FlexString `json:"tableId"`
}

// FlexString accepts a JSON string or number. Providers are not consistent
// about table id types.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// parseAvailableTables accepts either ["701", ...] or [{"tableId": "701"}, ...].
func parseAvailableTables(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var id FlexString
		if err := json.Unmarshal(item, &id); err == nil && id != "" {
			out = append(out, string(id))
			continue
		}
		var obj nestedTable
		if err := json.Unmarshal(item, &obj); err == nil && obj.TableID != "" {
			out = append(out, string(obj.TableID))
		}
	}
	return out
}
