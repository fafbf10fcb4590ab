// Package platforms renders alert messages for chat webhooks.
package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a platform-neutral alert. A non-empty PanelKey asks the adapter
// to keep one message per (endpoint, key) and edit it in place.
type Message struct {
	PanelKey    string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}

// PanelForgetter drops a remembered panel so the next send posts a new message.
type PanelForgetter interface {
	ForgetPanel(endpoint, panelKey string)
}
