package subscription

import (
	"fmt"
	"sort"
	"sync"

	"casino-relay/internal/metrics"

	"github.com/rs/zerolog/log"
)

type feedOp struct {
	tableID   string
	subscribe bool
}

type gameSubscription struct {
	tables map[string]struct{}
	sinks  map[ResultSink]struct{}
}

// Registry maps games to upstream tables and reference-counts the tables so each
// one is subscribed upstream exactly while at least one game listener needs it.
// Feed frames are queued under mu and written after it is released, so a slow
// upstream write never stalls Dispatch.
type Registry struct {
	feed   Feed
	feedMu sync.Mutex

	mu        sync.Mutex
	pending   []feedOp
	games     map[string]*gameSubscription
	refs      map[string]int
	snapshots map[string]TableUpdate
	delivered int64
	sinkFails int64
}

func NewRegistry(feed Feed) *Registry {
	return &Registry{
		feed:      feed,
		games:     map[string]*gameSubscription{},
		refs:      map[string]int{},
		snapshots: map[string]TableUpdate{},
	}
}

func (r *Registry) SubscribeToGame(gameID string, tableIDs []string, sink ResultSink) {
	if gameID == "" || sink == nil {
		return
	}
	tableIDs = uniqueTables(tableIDs)
	defer r.flushFeed()
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.games[gameID]
	if sub == nil {
		sub = &gameSubscription{tables: map[string]struct{}{}, sinks: map[ResultSink]struct{}{}}
		r.games[gameID] = sub
	}
	for _, tableID := range tableIDs {
		if _, ok := sub.tables[tableID]; ok {
			continue
		}
		sub.tables[tableID] = struct{}{}
		r.refs[tableID]++
		if r.refs[tableID] == 1 {
			r.pending = append(r.pending, feedOp{tableID: tableID, subscribe: true})
			metrics.UpstreamTablesSubscribed.Inc()
		}
	}
	sub.sinks[sink] = struct{}{}

	for _, tableID := range tableIDs {
		snap, ok := r.snapshots[tableID]
		if !ok {
			continue
		}
		snap.Replayed = true
		r.deliverLocked(gameID, sink, snap)
	}
}

// UnsubscribeFromGame removes sink. When the game has no listeners left, its
// tables are released and the entry is deleted. Calling it twice is harmless.
func (r *Registry) UnsubscribeFromGame(gameID string, sink ResultSink) {
	defer r.flushFeed()
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.games[gameID]
	if sub == nil {
		return
	}
	if _, ok := sub.sinks[sink]; !ok {
		return
	}
	delete(sub.sinks, sink)
	if len(sub.sinks) > 0 {
		return
	}
	for tableID := range sub.tables {
		r.refs[tableID]--
		if r.refs[tableID] > 0 {
			continue
		}
		delete(r.refs, tableID)
		delete(r.snapshots, tableID)
		r.pending = append(r.pending, feedOp{tableID: tableID})
		metrics.UpstreamTablesSubscribed.Dec()
	}
	delete(r.games, gameID)
}

// Dispatch caches update as the table snapshot and fans it out to every sink of
// every game that includes the table. One failing sink never blocks the others.
func (r *Registry) Dispatch(update TableUpdate) {
	if update.TableID == "" {
		return
	}
	update.Replayed = false
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[update.TableID] = update
	for gameID, sub := range r.games {
		if _, ok := sub.tables[update.TableID]; !ok {
			continue
		}
		for sink := range sub.sinks {
			r.deliverLocked(gameID, sink, update)
		}
	}
}

func (r *Registry) deliverLocked(gameID string, sink ResultSink, update TableUpdate) {
	err := safeDeliver(sink, update)
	if err != nil {
		r.sinkFails++
		metrics.SinkFailuresTotal.Inc()
		log.Warn().Err(err).Str("game_id", gameID).Str("table_id", update.TableID).Msg("sink_delivery_failed")
		return
	}
	r.delivered++
}

func safeDeliver(sink ResultSink, update TableUpdate) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sink panic: %v", rec)
		}
	}()
	return sink.Deliver(update)
}

// Resubscribe re-issues upstream subscribe frames for every referenced table.
// The provider does not keep subscriptions across reconnects.
func (r *Registry) Resubscribe() int {
	defer r.flushFeed()
	r.mu.Lock()
	defer r.mu.Unlock()
	for tableID := range r.refs {
		r.pending = append(r.pending, feedOp{tableID: tableID, subscribe: true})
	}
	if len(r.refs) > 0 {
		log.Info().Int("tables", len(r.refs)).Msg("upstream_resubscribed")
	}
	return len(r.refs)
}

// flushFeed writes queued frames in the order they were queued. Only one
// goroutine writes at a time; the others find the queue already drained.
func (r *Registry) flushFeed() {
	r.feedMu.Lock()
	defer r.feedMu.Unlock()
	for {
		r.mu.Lock()
		ops := r.pending
		r.pending = nil
		r.mu.Unlock()
		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			if op.subscribe {
				r.feed.SubscribeTable(op.tableID)
			} else {
				r.feed.UnsubscribeTable(op.tableID)
			}
		}
	}
}

func (r *Registry) Snapshot(tableID string) (TableUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[tableID]
	return snap, ok
}

func (r *Registry) RefCount(tableID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[tableID]
}

// GameTables returns the tables currently held for gameID, sorted.
func (r *Registry) GameTables(gameID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.games[gameID]
	if sub == nil {
		return nil
	}
	return sortedKeys(sub.tables)
}

// GameData reports the live state of a game subscription.
func (r *Registry) GameData(gameID string) (GameData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.games[gameID]
	if sub == nil {
		return GameData{}, false
	}
	out := GameData{
		GameID:    gameID,
		TableIDs:  sortedKeys(sub.tables),
		Listeners: len(sub.sinks),
		Snapshots: map[string]TableUpdate{},
	}
	for tableID := range sub.tables {
		if snap, ok := r.snapshots[tableID]; ok {
			out.Snapshots[tableID] = snap
		}
	}
	return out, true
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	listeners := 0
	for _, sub := range r.games {
		listeners += len(sub.sinks)
	}
	refs := make(map[string]int, len(r.refs))
	for k, v := range r.refs {
		refs[k] = v
	}
	return Stats{
		Games:     len(r.games),
		Tables:    len(r.refs),
		Listeners: listeners,
		Snapshots: len(r.snapshots),
		RefCounts: refs,
		Delivered: r.delivered,
		SinkFails: r.sinkFails,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func uniqueTables(tableIDs []string) []string {
	seen := make(map[string]struct{}, len(tableIDs))
	out := make([]string, 0, len(tableIDs))
	for _, id := range tableIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
