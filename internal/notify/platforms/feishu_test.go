package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestFeishuAdapterCardPayload(t *testing.T) {
	var got map[string]any
	var sig string
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		defer r.Body.Close()
		sig = r.Header.Get("X-Lark-Signature")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return respond(http.StatusOK, `{"code":0}`), nil
	})

	err := NewFeishuAdapter(client).Send(context.Background(), "https://open.feishu.cn/open-apis/bot/v2/hook/x", "sig:abc", Message{
		Title:       "Lightning Roulette 500x",
		Description: "table 204",
		Color:       0xED4245,
		Fields:      []Field{{Name: "Result", Value: "17"}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sig != "abc" {
		t.Fatalf("expected signature header, got %q", sig)
	}
	if got["msg_type"] != "interactive" {
		t.Fatalf("unexpected msg_type: %v", got["msg_type"])
	}
	card := got["card"].(map[string]any)
	header := card["header"].(map[string]any)
	if header["template"] != "red" {
		t.Fatalf("unexpected template: %v", header["template"])
	}
	elements := card["elements"].([]any)
	if len(elements) != 2 {
		t.Fatalf("expected description + 1 field, got %d", len(elements))
	}
	if text := elements[1].(map[string]any)["text"]; text != "**Result**: 17" {
		t.Fatalf("unexpected field text: %v", text)
	}
}

func TestFeishuAdapterPanelPatchUsesBearer(t *testing.T) {
	var patchAuth, patchPath string
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodPatch {
			patchAuth = r.Header.Get("Authorization")
			patchPath = r.URL.Path
			return respond(http.StatusOK, `{}`), nil
		}
		return respond(http.StatusOK, `{"data":{"message_id":"om_1"}}`), nil
	})
	adapter := NewFeishuAdapter(client)
	endpoint := "https://open.feishu.cn/open-apis/bot/v2/hook/x"
	msg := Message{PanelKey: "upstream", Title: "Upstream"}
	for i := 0; i < 2; i++ {
		if err := adapter.Send(context.Background(), endpoint, "sig:s;bearer:tok", msg); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	if patchPath != "/open-apis/im/v1/messages/om_1" {
		t.Fatalf("unexpected patch path: %q", patchPath)
	}
	if patchAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header: %q", patchAuth)
	}
}

func TestParseFeishuSecret(t *testing.T) {
	tests := []struct {
		in, sig, bearer string
	}{
		{"", "", ""},
		{"plain", "plain", ""},
		{"sig:a;bearer:b", "a", "b"},
		{"bearer:b", "", "b"},
	}
	for _, tt := range tests {
		sig, bearer := parseFeishuSecret(tt.in)
		if sig != tt.sig || bearer != tt.bearer {
			t.Fatalf("parseFeishuSecret(%q) = %q, %q", tt.in, sig, bearer)
		}
	}
}

func TestFeishuTemplate(t *testing.T) {
	tests := map[int]string{
		0:        "blue",
		0xED4245: "red",
		0xFEE75C: "yellow",
		0x57F287: "green",
		0x5865F2: "blue",
	}
	for color, want := range tests {
		if got := feishuTemplate(color); got != want {
			t.Fatalf("feishuTemplate(%#x) = %q, want %q", color, got, want)
		}
	}
}
