package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

type DiscordAdapter struct {
	client *HTTPClient
	panels *panels
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client, panels: newPanels()}
}

func (a *DiscordAdapter) Name() string { return "discord" }

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, _ string, msg Message) error {
	payload := discordPayload(msg)
	if strings.TrimSpace(msg.PanelKey) == "" {
		_, err := a.client.Post(ctx, endpoint, nil, payload)
		return err
	}
	return a.panels.upsert(endpoint, msg.PanelKey,
		func(msgID string) (bool, error) {
			editURL, ok := discordEditURL(endpoint, msgID)
			if !ok {
				return false, nil
			}
			_, err := a.client.Patch(ctx, editURL, nil, payload)
			return true, err
		},
		func() (string, error) {
			return a.create(ctx, endpoint, payload)
		},
	)
}

func (a *DiscordAdapter) ForgetPanel(endpoint, panelKey string) {
	a.panels.forget(endpoint, panelKey)
}

func discordPayload(msg Message) map[string]any {
	type embedField struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline"`
	}
	fields := make([]embedField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	embed := map[string]any{
		"title":       msg.Title,
		"description": msg.Description,
		"fields":      fields,
		"color":       msg.Color,
	}
	if msg.Timestamp != "" {
		embed["timestamp"] = msg.Timestamp
	}
	if msg.Footer != "" {
		embed["footer"] = map[string]string{"text": msg.Footer}
	}
	return map[string]any{
		"content": msg.Content,
		"embeds":  []map[string]any{embed},
	}
}

// create posts with wait=true so Discord returns the message id.
func (a *DiscordAdapter) create(ctx context.Context, endpoint string, payload map[string]any) (string, error) {
	waitEndpoint := endpoint
	if strings.Contains(waitEndpoint, "?") {
		waitEndpoint += "&wait=true"
	} else {
		waitEndpoint += "?wait=true"
	}
	body, err := a.client.Post(ctx, waitEndpoint, nil, payload)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &created) == nil && strings.TrimSpace(created.ID) != "" {
		return created.ID, nil
	}
	return "", errors.New("discord webhook response missing message id")
}

// discordEditURL maps /api/webhooks/{id}/{token} to its message edit path.
func discordEditURL(endpoint, msgID string) (string, bool) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(msgID) == "" {
		return "", false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "webhooks" {
		return "", false
	}
	u.Path = "/api/webhooks/" + parts[2] + "/" + parts[3] + "/messages/" + msgID
	u.RawQuery = ""
	return u.String(), true
}
