package platforms

import (
	"strings"
	"sync"
)

// panels remembers the provider message id for each (endpoint, panel key).
type panels struct {
	mu  sync.Mutex
	ids map[string]string
}

func newPanels() *panels {
	return &panels{ids: map[string]string{}}
}

func panelID(endpoint, key string) string {
	return strings.TrimSpace(endpoint) + "|" + strings.TrimSpace(key)
}

func (p *panels) get(endpoint, key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids[panelID(endpoint, key)]
}

func (p *panels) set(endpoint, key, msgID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[panelID(endpoint, key)] = msgID
}

func (p *panels) forget(endpoint, key string) {
	if strings.TrimSpace(endpoint) == "" && strings.TrimSpace(key) == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, panelID(endpoint, key))
}

// upsert edits the remembered panel message, creating one when none is known
// or the provider no longer has it.
func (p *panels) upsert(endpoint, key string, edit func(msgID string) (bool, error), create func() (string, error)) error {
	if msgID := p.get(endpoint, key); msgID != "" {
		handled, err := edit(msgID)
		if handled && err == nil {
			return nil
		}
		if handled && !isNotFound(err) {
			return err
		}
	}
	msgID, err := create()
	if err != nil {
		return err
	}
	if msgID != "" {
		p.set(endpoint, key, msgID)
	}
	return nil
}
