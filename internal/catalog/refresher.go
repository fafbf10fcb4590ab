package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const lookupTimeout = 2 * time.Second

// Refresher is a Catalog that reloads its Source periodically. Table ids that
// miss the index are resolved through the source when it supports TableLookup;
// negative answers are cached until the next refresh.
type Refresher struct {
	src      Source
	interval time.Duration

	mu          sync.RWMutex
	idx         *index
	loadedAt    time.Time
	extra       map[string]GameInfo
	misses      *expirable.LRU[string, struct{}]
	missLookups int64
	lookups     singleflight.Group

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type Stats struct {
	Source      string     `json:"source"`
	Games       int        `json:"games"`
	Tables      int        `json:"tables"`
	LoadedAt    *time.Time `json:"loaded_at,omitempty"`
	MissCached  int        `json:"miss_cached"`
	MissLookups int64      `json:"miss_lookups"`
}

func NewRefresher(src Source, interval time.Duration, missCacheSize int) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if missCacheSize <= 0 {
		missCacheSize = 1024
	}
	return &Refresher{
		src:      src,
		interval: interval,
		idx:      buildIndex(nil),
		extra:    map[string]GameInfo{},
		misses:   expirable.NewLRU[string, struct{}](missCacheSize, nil, interval),
		done:     make(chan struct{}),
	}
}

// Refresh reloads the source. On failure the previous index is kept.
func (r *Refresher) Refresh(ctx context.Context) error {
	games, err := r.src.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", r.src.Name()).Msg("catalog_refresh_failed")
		return err
	}
	idx := buildIndex(games)
	r.mu.Lock()
	r.idx = idx
	r.extra = map[string]GameInfo{}
	r.loadedAt = time.Now()
	r.mu.Unlock()
	r.misses.Purge()
	log.Debug().Str("source", r.src.Name()).Int("games", len(idx.games)).Msg("catalog_refreshed")
	return nil
}

func (r *Refresher) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				_ = r.Refresh(ctx)
			}
		}
	}()
}

func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Refresher) ActiveGames() []GameInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.active()
}

func (r *Refresher) FindGame(gameID string) (GameInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.idx.games[gameID]
	return g, ok
}

func (r *Refresher) FindByTableID(tableID string) (GameInfo, bool) {
	r.mu.RLock()
	if id, ok := r.idx.byTable[tableID]; ok {
		g := r.idx.games[id]
		r.mu.RUnlock()
		return g, true
	}
	if g, ok := r.extra[tableID]; ok {
		r.mu.RUnlock()
		return g, true
	}
	r.mu.RUnlock()

	lookup, ok := r.src.(TableLookup)
	if !ok || tableID == "" {
		return GameInfo{}, false
	}
	if r.misses.Contains(tableID) {
		return GameInfo{}, false
	}

	v, err, _ := r.lookups.Do(tableID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		r.mu.Lock()
		r.missLookups++
		r.mu.Unlock()
		g, found, err := lookup.LookupTable(ctx, tableID)
		if err != nil {
			return nil, err
		}
		if !found {
			r.misses.Add(tableID, struct{}{})
			return nil, nil
		}
		r.mu.Lock()
		r.extra[tableID] = g
		r.mu.Unlock()
		return g, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("table_id", tableID).Msg("catalog_lookup_failed")
		return GameInfo{}, false
	}
	g, ok := v.(GameInfo)
	return g, ok
}

func (r *Refresher) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{
		Source:      r.src.Name(),
		Games:       len(r.idx.games),
		Tables:      len(r.idx.byTable),
		MissCached:  r.misses.Len(),
		MissLookups: r.missLookups,
	}
	if !r.loadedAt.IsZero() {
		t := r.loadedAt
		st.LoadedAt = &t
	}
	return st
}
