package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

type FeishuAdapter struct {
	client *HTTPClient
	panels *panels
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client, panels: newPanels()}
}

func (a *FeishuAdapter) Name() string { return "feishu" }

func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	signature, bearer := parseFeishuSecret(secret)
	headers := map[string]string{}
	if signature != "" {
		headers["X-Lark-Signature"] = signature
	}
	payload := feishuPayload(msg)
	if strings.TrimSpace(msg.PanelKey) == "" {
		_, err := a.client.Post(ctx, endpoint, headers, payload)
		return err
	}
	return a.panels.upsert(endpoint, msg.PanelKey,
		func(msgID string) (bool, error) {
			editURL, ok := feishuEditURL(endpoint, msgID)
			if !ok {
				return false, nil
			}
			patchHeaders := map[string]string{}
			if bearer != "" {
				patchHeaders["Authorization"] = "Bearer " + bearer
			}
			_, err := a.client.Patch(ctx, editURL, patchHeaders, payload)
			return true, err
		},
		func() (string, error) {
			body, err := a.client.Post(ctx, endpoint, headers, payload)
			if err != nil {
				return "", err
			}
			if id := feishuMessageID(body); id != "" {
				return id, nil
			}
			return "", errors.New("feishu response missing message id")
		},
	)
}

func (a *FeishuAdapter) ForgetPanel(endpoint, panelKey string) {
	a.panels.forget(endpoint, panelKey)
}

func feishuPayload(msg Message) map[string]any {
	elements := make([]map[string]string, 0, len(msg.Fields)+1)
	body := msg.Description
	if body == "" {
		body = msg.Content
	}
	elements = append(elements, map[string]string{"tag": "markdown", "text": body})
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{"tag": "markdown", "text": "**" + f.Name + "**: " + f.Value})
	}
	return map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": msg.Title},
				"template": feishuTemplate(msg.Color),
			},
			"elements": elements,
		},
	}
}

// feishuTemplate picks the closest card header template for an RGB color.
func feishuTemplate(color int) string {
	r, g, b := color>>16&0xff, color>>8&0xff, color&0xff
	switch {
	case color == 0:
		return "blue"
	case r > 0xc0 && g < 0x80:
		return "red"
	case r > 0xc0 && g > 0xc0 && b < 0x80:
		return "yellow"
	case g > r && g > b:
		return "green"
	default:
		return "blue"
	}
}

// parseFeishuSecret accepts "sig:<s>;bearer:<t>" or a bare signature.
func parseFeishuSecret(secret string) (signature string, bearer string) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return "", ""
	}
	parts := strings.Split(s, ";")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "sig:"):
			signature = strings.TrimSpace(strings.TrimPrefix(p, "sig:"))
		case strings.HasPrefix(p, "bearer:"):
			bearer = strings.TrimSpace(strings.TrimPrefix(p, "bearer:"))
		case len(parts) == 1:
			signature = p
		}
	}
	return signature, bearer
}

func feishuEditURL(endpoint, msgID string) (string, bool) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(msgID) == "" {
		return "", false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false
	}
	u.Path = "/open-apis/im/v1/messages/" + msgID
	u.RawQuery = ""
	return u.String(), true
}

func feishuMessageID(body []byte) string {
	var raw struct {
		MessageID string `json:"message_id"`
		ID        string `json:"id"`
		Data      struct {
			MessageID string `json:"message_id"`
			ID        string `json:"id"`
		} `json:"data"`
	}
	if json.Unmarshal(body, &raw) != nil {
		return ""
	}
	for _, v := range []string{raw.MessageID, raw.ID, raw.Data.MessageID, raw.Data.ID} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
