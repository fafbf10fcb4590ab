package retention

import (
	"context"
	"sync"
	"time"

	"casino-relay/internal/metrics"

	"github.com/rs/zerolog/log"
)

const sweepTimeout = 2 * time.Minute

type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Sweeper deletes expired results once at start and then every interval.
type Sweeper struct {
	store    Cleaner
	interval time.Duration

	mu       sync.Mutex
	lastRun  time.Time
	lastN    int64
	lastErr  error
	total    int64
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type SweepStats struct {
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastDeleted  int64      `json:"last_deleted"`
	TotalDeleted int64      `json:"total_deleted"`
	LastError    string     `json:"last_error,omitempty"`
	Interval     string     `json:"interval"`
}

func NewSweeper(store Cleaner, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval, done: make(chan struct{})}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.RunOnce(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				_, _ = s.RunOnce(ctx)
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// RunOnce performs one cleanup pass. Failures are logged and returned; the
// periodic loop keeps going.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := s.store.CleanupExpired(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	if err == nil {
		s.lastN = n
		s.total += n
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("retention_sweep_failed")
		return 0, err
	}
	metrics.ExpiredDeletedTotal.Add(float64(n))
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("retention_sweep")
	}
	return n, nil
}

func (s *Sweeper) Stats() SweepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SweepStats{LastDeleted: s.lastN, TotalDeleted: s.total, Interval: s.interval.String()}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		st.LastRun = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
