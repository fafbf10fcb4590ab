package retention

import (
	"context"
	"sort"
	"sync"
	"time"

	"casino-relay/internal/metrics"
	"casino-relay/internal/results"

	"github.com/rs/zerolog/log"
)

type roundKey struct {
	tableID string
	roundID string
	result  string
}

// MemoryStore keeps results in process. It mirrors the Postgres store's
// uniqueness rule on (table, round, result) for rows with a round id.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]results.GameResult
	rounds map[roundKey]string
	now    func() time.Time
	fail   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   map[string]results.GameResult{},
		rounds: map[roundKey]string{},
		now:    time.Now,
	}
}

// SetClock overrides the time source used for expiry checks.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// FailWith makes every write and ping return err until cleared with nil.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *MemoryStore) SaveResult(_ context.Context, rec results.GameResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	if _, ok := m.rows[rec.ID]; ok {
		return false, nil
	}
	if rec.RoundID != "" {
		k := roundKey{tableID: rec.TableID, roundID: rec.RoundID, result: rec.Result}
		if _, ok := m.rounds[k]; ok {
			return false, nil
		}
		m.rounds[k] = rec.ID
	}
	m.rows[rec.ID] = rec
	return true, nil
}

func (m *MemoryStore) SaveResultSafe(ctx context.Context, rec results.GameResult) {
	if _, err := m.SaveResult(ctx, rec); err != nil {
		metrics.PersistErrorsTotal.Inc()
		log.Error().Err(err).Str("game_id", rec.GameID).Str("table_id", rec.TableID).Msg("result_persist_failed")
	}
}

func (m *MemoryStore) QueryRecent(_ context.Context, q results.RecentQuery) ([]results.GameResult, error) {
	q = q.Normalize()
	m.mu.Lock()
	now := m.now()
	out := make([]results.GameResult, 0, len(m.rows))
	for _, r := range m.rows {
		if r.Expired(now) {
			continue
		}
		if q.GameID != "" && r.GameID != q.GameID {
			continue
		}
		if q.TableID != "" && r.TableID != q.TableID {
			continue
		}
		if !q.Since.IsZero() && r.ExtractedAt.Before(q.Since) {
			continue
		}
		out = append(out, r)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ExtractedAt.Equal(out[j].ExtractedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ExtractedAt.After(out[j].ExtractedAt)
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for id, r := range m.rows {
		if !r.Expired(now) {
			continue
		}
		delete(m.rows, id)
		if r.RoundID != "" {
			delete(m.rounds, roundKey{tableID: r.TableID, roundID: r.RoundID, result: r.Result})
		}
		n++
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail
}

// Len returns the number of stored rows, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// All returns every stored row ordered by extraction time.
func (m *MemoryStore) All() []results.GameResult {
	m.mu.Lock()
	out := make([]results.GameResult, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ExtractedAt.Before(out[j].ExtractedAt) })
	return out
}
