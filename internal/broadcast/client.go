package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"casino-relay/internal/broadcast/stream"
	"casino-relay/internal/metrics"
	"casino-relay/internal/subscription"
)

type ClientState int32

const (
	StateConnecting ClientState = iota
	StateConnected
	StateDisconnected
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client is one SSE subscriber. Only the handler goroutine writes to the
// response; everyone else goes through the queue.
type Client struct {
	ID          string
	GameID      string
	TableIDs    []string
	Remote      string
	ConnectedAt time.Time

	tables   map[string]struct{}
	queue    chan stream.Event
	state    atomic.Int32
	lastPing atomic.Int64
	sink     *subscription.FuncSink

	disconnectOnce sync.Once
	disconnected   chan struct{}
	shutdownOnce   sync.Once
	shutdown       chan struct{}
	teardownOnce   sync.Once
}

func newClient(id, gameID string, tableIDs []string, remote string, buffer int) *Client {
	c := &Client{
		ID:           id,
		GameID:       gameID,
		TableIDs:     tableIDs,
		Remote:       remote,
		ConnectedAt:  time.Now(),
		tables:       make(map[string]struct{}, len(tableIDs)),
		queue:        make(chan stream.Event, buffer),
		disconnected: make(chan struct{}),
		shutdown:     make(chan struct{}),
	}
	for _, t := range tableIDs {
		c.tables[t] = struct{}{}
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Client) State() ClientState { return ClientState(c.state.Load()) }

func (c *Client) wants(tableID string) bool {
	_, ok := c.tables[tableID]
	return ok
}

// enqueue never blocks. A full queue disconnects the client.
func (c *Client) enqueue(ev stream.Event) error {
	if c.State() == StateDisconnected {
		return ErrClientWrite
	}
	select {
	case c.queue <- ev:
		return nil
	default:
		metrics.SSEFramesDroppedTotal.WithLabelValues("queue_full").Inc()
		c.markDisconnected()
		return ErrClientWrite
	}
}

func (c *Client) markDisconnected() {
	c.disconnectOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		close(c.disconnected)
	})
}

func (c *Client) requestShutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdown) })
}

type ClientInfo struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	TableIDs    []string  `json:"table_ids"`
	State       string    `json:"state"`
	Remote      string    `json:"remote,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	LastPing    *int64    `json:"last_ping_ts,omitempty"`
	Queued      int       `json:"queued"`
}

func (c *Client) info() ClientInfo {
	out := ClientInfo{
		ID:          c.ID,
		GameID:      c.GameID,
		TableIDs:    c.TableIDs,
		State:       c.State().String(),
		Remote:      c.Remote,
		ConnectedAt: c.ConnectedAt,
		Queued:      len(c.queue),
	}
	if ts := c.lastPing.Load(); ts > 0 {
		out.LastPing = &ts
	}
	return out
}
