// Package ingest turns raw table updates into retained game results.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"casino-relay/internal/catalog"
	"casino-relay/internal/config"
	"casino-relay/internal/metrics"
	"casino-relay/internal/results"
	"casino-relay/internal/store"
	"casino-relay/internal/subscription"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

var ErrUnconfiguredTable = errors.New("unconfigured_table")

const (
	sourceGameResult = "gameResult"
	sourceLast20     = "last20Results"
	persistTimeout   = 5 * time.Second
)

type Persister interface {
	SaveResultSafe(ctx context.Context, rec results.GameResult)
}

// Publisher receives each new result for downstream delivery. It must not block.
type Publisher interface {
	PublishResult(rec results.GameResult)
}

type Config struct {
	Workers     int
	QueueSize   int
	Last20Limit int
	DedupSize   int
	DedupTTL    time.Duration
}

func ConfigFromApp(cfg config.RetentionConfig) Config {
	return Config{
		Workers:     cfg.PersistWorkers,
		QueueSize:   cfg.PersistQueue,
		Last20Limit: cfg.Last20Limit,
		DedupSize:   cfg.DedupSize,
		DedupTTL:    time.Duration(cfg.DedupTTLMin) * time.Minute,
	}
}

type Stats struct {
	Updates     int64 `json:"updates"`
	Unresolved  int64 `json:"unresolved"`
	Built       int64 `json:"built"`
	Duplicates  int64 `json:"duplicates"`
	Persisted   int64 `json:"persisted"`
	QueueDrops  int64 `json:"queue_drops"`
	QueueLength int   `json:"queue_length"`
}

// Pipeline resolves, classifies and tags results, then hands them to the
// persist workers and the publisher independently.
type Pipeline struct {
	cfg     Config
	catalog catalog.Catalog
	store   Persister
	pub     Publisher
	now     func() time.Time

	queue chan results.GameResult
	seen  *expirable.LRU[string, struct{}]

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	updates    atomic.Int64
	unresolved atomic.Int64
	built      atomic.Int64
	duplicates atomic.Int64
	persisted  atomic.Int64
	queueDrops atomic.Int64
}

func New(cfg Config, cat catalog.Catalog, st Persister, pub Publisher) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Last20Limit < 0 {
		cfg.Last20Limit = 0
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = 4096
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 30 * time.Minute
	}
	return &Pipeline{
		cfg:     cfg,
		catalog: cat,
		store:   st,
		pub:     pub,
		now:     time.Now,
		queue:   make(chan results.GameResult, cfg.QueueSize),
		seen:    expirable.NewLRU[string, struct{}](cfg.DedupSize, nil, cfg.DedupTTL),
		done:    make(chan struct{}),
	}
}

// SetClock overrides the fallback time used when an entry carries no time.
func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }

func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.Workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Stop stops accepting work and waits for the workers to drain the queue.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case rec := <-p.queue:
			p.persist(ctx, rec)
		case <-ctx.Done():
			return
		case <-p.done:
			for {
				select {
				case rec := <-p.queue:
					p.persist(context.Background(), rec)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) persist(ctx context.Context, rec results.GameResult) {
	metrics.PersistQueueLen.Set(float64(len(p.queue)))
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	p.store.SaveResultSafe(ctx, rec)
	p.persisted.Add(1)
}

// OnUpstreamUpdate ingests one table update and returns the results it accepted.
func (p *Pipeline) OnUpstreamUpdate(update subscription.TableUpdate) ([]results.GameResult, error) {
	p.updates.Add(1)
	game, ok := p.catalog.FindByTableID(update.TableID)
	if !ok {
		p.unresolved.Add(1)
		metrics.ResultsDroppedTotal.WithLabelValues("unconfigured_table").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnconfiguredTable, update.TableID)
	}
	if len(update.Raw) == 0 {
		return nil, nil
	}
	var body payload
	if err := json.Unmarshal(update.Raw, &body); err != nil {
		metrics.ResultsDroppedTotal.WithLabelValues("bad_payload").Inc()
		return nil, fmt.Errorf("decode table %s payload: %w", update.TableID, err)
	}

	built := p.build(game.GameID, update, body)
	accepted := make([]results.GameResult, 0, len(built))
	for _, rec := range built {
		if !p.firstSeen(rec) {
			p.duplicates.Add(1)
			metrics.ResultsDroppedTotal.WithLabelValues("duplicate").Inc()
			continue
		}
		p.built.Add(1)
		metrics.ResultsIngestedTotal.WithLabelValues(string(rec.Priority)).Inc()
		p.enqueue(rec)
		if p.pub != nil {
			p.pub.PublishResult(rec)
		}
		accepted = append(accepted, rec)
	}
	return accepted, nil
}

func (p *Pipeline) enqueue(rec results.GameResult) {
	select {
	case <-p.done:
		p.queueDrops.Add(1)
		metrics.ResultsDroppedTotal.WithLabelValues("stopped").Inc()
		return
	default:
	}
	select {
	case p.queue <- rec:
		metrics.PersistQueueLen.Set(float64(len(p.queue)))
	default:
		p.queueDrops.Add(1)
		metrics.ResultsDroppedTotal.WithLabelValues("queue_full").Inc()
		log.Warn().Str("table_id", rec.TableID).Str("round_id", rec.RoundID).Msg("persist_queue_full")
	}
}

func (p *Pipeline) build(gameID string, update subscription.TableUpdate, body payload) []results.GameResult {
	out := make([]results.GameResult, 0, len(body.GameResult)+p.cfg.Last20Limit)
	for _, e := range body.GameResult {
		if rec, ok := p.buildOne(gameID, update, body, e, sourceGameResult); ok {
			out = append(out, rec)
		}
	}
	last20 := body.Last20
	if len(last20) > p.cfg.Last20Limit {
		last20 = last20[:p.cfg.Last20Limit]
	}
	for _, e := range last20 {
		// rolling history entries without identity cannot be told apart from
		// the previous update's window
		if isNull(e.GameID) && isNull(e.Time) {
			continue
		}
		if rec, ok := p.buildOne(gameID, update, body, e, sourceLast20); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (p *Pipeline) buildOne(gameID string, update subscription.TableUpdate, body payload, e rawEntry, source string) (results.GameResult, bool) {
	value := rawString(e.Result)
	if value == "" {
		return results.GameResult{}, false
	}
	extracted, ok := rawTime(e.Time)
	if !ok {
		extracted = p.now().UTC()
	}
	mult := rawFloat(e.Multiplier)
	winner := rawString(e.Winner)
	policy := results.ApplyPolicy(mult, winner, gameID)
	kind := results.ClassifyResult(value)

	rec := results.GameResult{
		ID:              store.NewIDAt(extracted),
		GameID:          gameID,
		TableID:         update.TableID,
		Result:          value,
		ResultType:      kind,
		Winner:          winner,
		Multiplier:      mult,
		CardValue:       rawString(e.CardValue),
		Color:           rawString(e.Color),
		Payout:          rawFloat(e.Payout),
		ExtractedAt:     extracted,
		ExpiresAt:       policy.Retention.ExpiresAt(extracted),
		RetentionPeriod: policy.Retention,
		Priority:        policy.Priority,
		RoundID:         rawString(e.GameID),
		DealerName:      rawString(e.DealerName),
		TotalPlayers:    rawInt(e.TotalPlayers),
		Metadata: map[string]any{
			"source":     source,
			"frame_type": update.Type,
		},
	}
	if !isNull(e.Slots) {
		rec.Slots = append([]byte(nil), e.Slots...)
	}
	if rec.CardValue == "" && kind == results.ResultCard {
		rec.CardValue = strings.ToUpper(value)
	}
	if rec.Color == "" && kind == results.ResultColor {
		rec.Color = strings.ToLower(value)
	}
	if rec.DealerName == "" {
		rec.DealerName = dealerName(body)
	}
	if rec.TotalPlayers == nil {
		rec.TotalPlayers = rawInt(body.TotalPlayers)
	}
	return rec, true
}

func (p *Pipeline) firstSeen(rec results.GameResult) bool {
	ident := rec.RoundID
	if ident == "" {
		ident = rec.ExtractedAt.Format(time.RFC3339Nano)
	}
	key := rec.TableID + "|" + ident + "|" + rec.Result
	if p.seen.Contains(key) {
		return false
	}
	p.seen.Add(key, struct{}{})
	return true
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Updates:     p.updates.Load(),
		Unresolved:  p.unresolved.Load(),
		Built:       p.built.Load(),
		Duplicates:  p.duplicates.Load(),
		Persisted:   p.persisted.Load(),
		QueueDrops:  p.queueDrops.Load(),
		QueueLength: len(p.queue),
	}
}
