package stream

import (
	"bytes"
	"net/http/httptest"
	"testing"
)

func TestWriteSSENamedEvent(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSSE(&buf, Event{Name: "new_result", Data: map[string]any{"result": "7"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "event: new_result\ndata: {\"result\":\"7\"}\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected frame %q", buf.String())
	}

	buf.Reset()
	_ = WriteSSE(&buf, Event{ID: "01H", Name: "ping", Data: map[string]int64{"ts": 1}})
	if buf.String() != "id: 01H\nevent: ping\ndata: {\"ts\":1}\n\n" {
		t.Fatalf("unexpected frame with id %q", buf.String())
	}
}

func TestWriteSSEMarshalError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSSE(&buf, Event{Name: "x", Data: make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written on marshal error")
	}
}

func TestSetCORSHeaders(t *testing.T) {
	cases := []struct {
		name    string
		origin  string
		allowed []string
		want    string
	}{
		{"wildcard", "https://a.example", []string{"*"}, "*"},
		{"exact match", "https://a.example", []string{"https://b.example", "https://a.example"}, "https://a.example"},
		{"no match", "https://evil.example", []string{"https://a.example"}, ""},
		{"no origin header", "", []string{"https://a.example"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SetCORSHeaders(rec, tc.origin, tc.allowed)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
