// Package broadcast fans table updates and results out to SSE clients.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"casino-relay/internal/broadcast/stream"
	"casino-relay/internal/catalog"
	"casino-relay/internal/config"
	"casino-relay/internal/metrics"
	"casino-relay/internal/results"
	"casino-relay/internal/store"
	"casino-relay/internal/subscription"

	"github.com/rs/zerolog/log"
)

const historyTimeout = 2 * time.Second

type Registry interface {
	SubscribeToGame(gameID string, tableIDs []string, sink subscription.ResultSink)
	UnsubscribeFromGame(gameID string, sink subscription.ResultSink)
}

type History interface {
	QueryRecent(ctx context.Context, q results.RecentQuery) ([]results.GameResult, error)
}

type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ClientBuffer   int
	HistoryLimit   int
	AllowedOrigins []string
}

// AllowedOrigins resolves the CORS origin list; development with no explicit
// list admits any origin.
func AllowedOrigins(server config.ServerConfig) []string {
	if len(server.AllowedOrigins) == 0 && server.Environment == "development" {
		return []string{"*"}
	}
	return server.AllowedOrigins
}

// ConfigFromApp builds the manager config from the stream and server settings.
func ConfigFromApp(sc config.StreamConfig, server config.ServerConfig) Config {
	origins := AllowedOrigins(server)
	return Config{
		PingInterval:   time.Duration(sc.PingIntervalMS) * time.Millisecond,
		WriteTimeout:   time.Duration(sc.WriteTimeoutMS) * time.Millisecond,
		ClientBuffer:   sc.ClientBuffer,
		HistoryLimit:   sc.HistoryLimit,
		AllowedOrigins: origins,
	}
}

type Stats struct {
	ActiveClients    int            `json:"active_clients"`
	ByGame           map[string]int `json:"by_game"`
	TotalConnections int64          `json:"total_connections"`
	Rejected         int64          `json:"rejected"`
	DroppedFrames    int64          `json:"dropped_frames"`
	Purged           int64          `json:"purged"`
}

type Manager struct {
	cfg      Config
	registry Registry
	catalog  catalog.Catalog
	history  History

	mu      sync.RWMutex
	clients map[string]*Client
	byGame  map[string]map[string]*Client

	closed       atomic.Bool
	done         chan struct{}
	shutdownOnce sync.Once
	loops        sync.WaitGroup
	streams      atomic.Int64

	total    atomic.Int64
	rejected atomic.Int64
	dropped  atomic.Int64
	purged   atomic.Int64
}

func NewManager(cfg Config, reg Registry, cat catalog.Catalog, history History) *Manager {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 64
	}
	return &Manager{
		cfg:      cfg,
		registry: reg,
		catalog:  cat,
		history:  history,
		clients:  map[string]*Client{},
		byGame:   map[string]map[string]*Client{},
		done:     make(chan struct{}),
	}
}

// Start runs the keepalive loop until ctx ends or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	m.loops.Add(1)
	go func() {
		defer m.loops.Done()
		ticker := time.NewTicker(m.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C:
				m.keepalive()
			}
		}
	}()
}

// InitConnection serves one SSE stream and returns when it ends. Setup failures
// are reported to the client as an error event before returning.
func (m *Manager) InitConnection(w http.ResponseWriter, r *http.Request, gameID string, tableIDs []string) error {
	rc := http.NewResponseController(w)
	stream.SetSSEHeaders(w)
	stream.SetCORSHeaders(w, r.Header.Get("Origin"), m.cfg.AllowedOrigins)

	if m.closed.Load() {
		return m.reject(w, rc, gameID, ErrShuttingDown)
	}
	game, tables, err := m.resolve(gameID, tableIDs)
	if err != nil {
		return m.reject(w, rc, gameID, err)
	}

	client := newClient(store.NewID(), game.GameID, tables, r.RemoteAddr, m.cfg.ClientBuffer)
	w.WriteHeader(http.StatusOK)
	connected := stream.Event{Name: EventConnected, Data: ConnectedPayload{
		ClientID:   client.ID,
		GameID:     client.GameID,
		TableIDs:   client.TableIDs,
		ServerTime: time.Now().UnixMilli(),
	}}
	if err := m.write(w, rc, connected); err != nil {
		m.rejected.Add(1)
		return fmt.Errorf("%w: %v", ErrClientWrite, err)
	}

	m.streams.Add(1)
	defer m.streams.Add(-1)
	client.state.Store(int32(StateConnected))
	client.sink = subscription.NewFuncSink(func(u subscription.TableUpdate) error {
		return m.deliverUpdate(client, u)
	})
	m.registry.SubscribeToGame(client.GameID, client.TableIDs, client.sink)
	m.register(client)
	defer m.teardown(client)
	if m.closed.Load() {
		client.requestShutdown()
	}

	log.Info().Str("client_id", client.ID).Str("game_id", client.GameID).Strs("tables", client.TableIDs).Msg("sse_client_connected")
	m.sendHistory(r.Context(), client)
	return m.writeLoop(r.Context(), w, rc, client)
}

func (m *Manager) reject(w http.ResponseWriter, rc *http.ResponseController, gameID string, cause error) error {
	m.rejected.Add(1)
	w.WriteHeader(http.StatusOK)
	_ = m.write(w, rc, stream.Event{Name: EventError, Data: ErrorPayload{Error: errorCode(cause), Message: cause.Error()}})
	log.Warn().Err(cause).Str("game_id", gameID).Msg("sse_client_rejected")
	return cause
}

func (m *Manager) writeLoop(ctx context.Context, w http.ResponseWriter, rc *http.ResponseController, c *Client) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.disconnected:
			return nil
		case <-c.shutdown:
			_ = m.write(w, rc, stream.Event{Name: EventShutdown, Data: ShutdownPayload{Reason: "server_shutdown"}})
			return nil
		case ev := <-c.queue:
			if err := m.write(w, rc, ev); err != nil {
				m.dropped.Add(1)
				metrics.SSEFramesDroppedTotal.WithLabelValues("write_error").Inc()
				c.markDisconnected()
				return fmt.Errorf("%w: %v", ErrClientWrite, err)
			}
		}
	}
}

func (m *Manager) write(w http.ResponseWriter, rc *http.ResponseController, ev stream.Event) error {
	if err := rc.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if err := stream.WriteSSE(w, ev); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			return ErrStreamingUnsupported
		}
		return err
	}
	return nil
}

func (m *Manager) resolve(gameID string, tableIDs []string) (catalog.GameInfo, []string, error) {
	tableIDs = cleanTables(tableIDs)
	var game catalog.GameInfo
	if gameID == "" {
		if len(tableIDs) == 0 {
			return game, nil, ErrNoTables
		}
		g, ok := m.catalog.FindByTableID(tableIDs[0])
		if !ok {
			return game, nil, fmt.Errorf("%w: %s", ErrUnknownTable, tableIDs[0])
		}
		game = g
	} else {
		g, ok := m.catalog.FindGame(gameID)
		if !ok || !g.IsActive {
			return game, nil, fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
		}
		game = g
	}
	if len(tableIDs) == 0 {
		tableIDs = cleanTables(game.TableIDs)
	} else {
		known := make(map[string]struct{}, len(game.TableIDs))
		for _, t := range game.TableIDs {
			known[t] = struct{}{}
		}
		for _, t := range tableIDs {
			if _, ok := known[t]; !ok {
				return game, nil, fmt.Errorf("%w: %s not in %s", ErrUnknownTable, t, game.GameID)
			}
		}
	}
	if len(tableIDs) == 0 {
		return game, nil, fmt.Errorf("%w: %s", ErrNoTables, game.GameID)
	}
	return game, tableIDs, nil
}

// deliverUpdate runs inside the registry lock and must not block.
func (m *Manager) deliverUpdate(c *Client, u subscription.TableUpdate) error {
	if !c.wants(u.TableID) {
		return nil
	}
	var ev stream.Event
	if u.Replayed {
		ev = stream.Event{Name: EventInitialResults, Data: InitialResultsPayload{GameID: c.GameID, TableID: u.TableID, Snapshot: u.Raw}}
	} else {
		ev = stream.Event{Name: EventGameData, Data: GameDataPayload{
			GameID: c.GameID, TableID: u.TableID, Type: u.Type, Data: u.Raw, ReceivedAt: u.ReceivedAt,
		}}
	}
	return m.enqueue(c, ev)
}

func (m *Manager) enqueue(c *Client, ev stream.Event) error {
	if err := c.enqueue(ev); err != nil {
		m.dropped.Add(1)
		return err
	}
	return nil
}

func (m *Manager) sendHistory(ctx context.Context, c *Client) {
	if m.history == nil || m.cfg.HistoryLimit <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	q := results.RecentQuery{GameID: c.GameID, Limit: m.cfg.HistoryLimit}
	if len(c.TableIDs) == 1 {
		q.TableID = c.TableIDs[0]
	}
	rows, err := m.history.QueryRecent(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("client_id", c.ID).Msg("sse_history_failed")
		return
	}
	filtered := rows[:0]
	for _, r := range rows {
		if c.wants(r.TableID) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return
	}
	_ = m.enqueue(c, stream.Event{Name: EventInitialResults, Data: InitialResultsPayload{GameID: c.GameID, Results: filtered}})
}

// BroadcastToGame enqueues an event for every connected client of gameID and
// returns how many accepted it.
func (m *Manager) BroadcastToGame(gameID, event string, payload any) int {
	return m.fanout(m.gameClients(gameID), stream.Event{Name: event, Data: payload})
}

// BroadcastToTable enqueues an event for every client watching tableID.
func (m *Manager) BroadcastToTable(tableID, event string, payload any) int {
	m.mu.RLock()
	targets := make([]*Client, 0)
	for _, c := range m.clients {
		if c.wants(tableID) {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()
	return m.fanout(targets, stream.Event{Name: event, Data: payload})
}

// PublishResult sends new_result to the clients of the result's game that
// watch its table.
func (m *Manager) PublishResult(rec results.GameResult) {
	targets := m.gameClients(rec.GameID)
	filtered := targets[:0]
	for _, c := range targets {
		if c.wants(rec.TableID) {
			filtered = append(filtered, c)
		}
	}
	m.fanout(filtered, stream.Event{Name: EventNewResult, Data: rec})
}

func (m *Manager) fanout(targets []*Client, ev stream.Event) int {
	sent := 0
	for _, c := range targets {
		if c.State() != StateConnected {
			continue
		}
		if err := m.enqueue(c, ev); err == nil {
			sent++
		}
	}
	return sent
}

func (m *Manager) gameClients(gameID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.byGame[gameID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (m *Manager) keepalive() {
	now := time.Now()
	for _, c := range m.allClients() {
		if c.State() == StateDisconnected {
			m.purged.Add(1)
			m.teardown(c)
			continue
		}
		if err := m.enqueue(c, stream.Event{Name: EventPing, Data: PingPayload{TS: now.UnixMilli()}}); err != nil {
			continue
		}
		c.lastPing.Store(now.UnixMilli())
	}
}

func (m *Manager) register(c *Client) {
	m.mu.Lock()
	m.clients[c.ID] = c
	set := m.byGame[c.GameID]
	if set == nil {
		set = map[string]*Client{}
		m.byGame[c.GameID] = set
	}
	set[c.ID] = c
	m.mu.Unlock()
	m.total.Add(1)
	metrics.SSEConnectionsTotal.Inc()
	metrics.SSEConnectionsActive.Inc()
}

// teardown is safe to call from the handler and the keepalive sweep; only the
// first call has an effect.
func (m *Manager) teardown(c *Client) {
	c.teardownOnce.Do(func() {
		c.markDisconnected()
		if c.sink != nil {
			m.registry.UnsubscribeFromGame(c.GameID, c.sink)
		}
		m.mu.Lock()
		delete(m.clients, c.ID)
		if set := m.byGame[c.GameID]; set != nil {
			delete(set, c.ID)
			if len(set) == 0 {
				delete(m.byGame, c.GameID)
			}
		}
		m.mu.Unlock()
		metrics.SSEConnectionsActive.Dec()
		log.Info().Str("client_id", c.ID).Str("game_id", c.GameID).
			Dur("duration", time.Since(c.ConnectedAt)).Msg("sse_client_closed")
	})
}

// Shutdown stops the keepalive loop, sends shutdown to every client and waits
// for their streams to end or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.closed.Store(true)
		close(m.done)
	})
	m.loops.Wait()
	for _, c := range m.allClients() {
		c.requestShutdown()
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for m.streams.Load() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) allClients() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

// Clients lists registered clients ordered by connect time.
func (m *Manager) Clients() []ClientInfo {
	all := m.allClients()
	sort.Slice(all, func(i, j int) bool { return all[i].ConnectedAt.Before(all[j].ConnectedAt) })
	out := make([]ClientInfo, 0, len(all))
	for _, c := range all {
		out = append(out, c.info())
	}
	return out
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	byGame := make(map[string]int, len(m.byGame))
	for g, set := range m.byGame {
		byGame[g] = len(set)
	}
	active := len(m.clients)
	m.mu.RUnlock()
	return Stats{
		ActiveClients:    active,
		ByGame:           byGame,
		TotalConnections: m.total.Load(),
		Rejected:         m.rejected.Load(),
		DroppedFrames:    m.dropped.Load(),
		Purged:           m.purged.Load(),
	}
}

func cleanTables(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
