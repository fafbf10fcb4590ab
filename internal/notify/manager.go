package notify

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"casino-relay/internal/metrics"
	"casino-relay/internal/notify/platforms"
	"casino-relay/internal/results"
	"casino-relay/internal/upstream"

	"github.com/rs/zerolog/log"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

type counters struct {
	queued, sent, failed, dropped, throttled, retries, reloads atomic.Int64
}

type Manager struct {
	cfg      Config
	router   Router
	adapters map[string]platforms.Adapter

	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}
	stopOnce   sync.Once

	mu           sync.Mutex
	started      bool
	lastByTable  map[string]time.Time
	breakerByKey map[string]breakerState
	outage       bool

	stats counters
}

func NewManager(cfg Config) *Manager {
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	if cfg.MinPriority.Rank() == 0 {
		cfg.MinPriority = results.PriorityHigh
	}
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	m := &Manager{
		cfg:    cfg,
		router: Router{DefaultMin: cfg.MinPriority},
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"feishu":  platforms.NewFeishuAdapter(client),
		},
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		lastByTable:  map[string]time.Time{},
		breakerByKey: map[string]breakerState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh, m.done)
	return m
}

func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	if m.cfg.ConfigPath != "" {
		go m.watchConfigLoop(ctx)
	}
	go func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.done:
		}
	}()
	log.Info().Int("targets", len(m.currentTargets())).Int("workers", m.cfg.Workers).Msg("notify_started")
	return nil
}

// Stop releases workers. Queued jobs are dropped.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// PublishResult queues alerts for a stored result. It never blocks.
func (m *Manager) PublishResult(rec results.GameResult) {
	if !m.cfg.Enabled {
		return
	}
	ev := Event{
		Type:     EventResult,
		GameID:   rec.GameID,
		TableID:  rec.TableID,
		Priority: rec.Priority,
		Result:   &rec,
		At:       rec.ExtractedAt,
	}
	targets := m.router.MatchTargets(m.currentTargets(), ev)
	if len(targets) == 0 {
		return
	}
	if !m.allowTable(rec, time.Now()) {
		m.stats.throttled.Add(1)
		metrics.NotifyJobsTotal.WithLabelValues("all", "throttled").Inc()
		return
	}
	m.dispatch(targets, ev, false)
}

// OnUpstreamState matches upstream.Client.OnStateChange. Only outage
// transitions and the first recovery after one produce alerts.
func (m *Manager) OnUpstreamState(state upstream.State, err error) {
	if !m.cfg.Enabled {
		return
	}
	m.mu.Lock()
	switch state {
	case upstream.StateReconnecting, upstream.StateFailed:
		m.outage = true
	case upstream.StateConnected:
		if !m.outage {
			m.mu.Unlock()
			return
		}
		m.outage = false
	default:
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ev := Event{Type: EventUpstreamState, UpstreamState: state, At: time.Now()}
	if err != nil {
		ev.Detail = err.Error()
	}
	targets := m.router.MatchTargets(m.currentTargets(), ev)
	m.dispatch(targets, ev, state == upstream.StateConnected)
}

func (m *Manager) dispatch(targets []Target, ev Event, terminal bool) {
	formatted, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		job := pushJob{Target: target, Event: ev, Formatted: formatted, PanelTerminal: terminal}
		if !m.enqueue(job) {
			m.stats.dropped.Add(1)
			metrics.NotifyJobsTotal.WithLabelValues(target.Platform, "dropped").Inc()
		}
	}
}

// allowTable throttles alerts below critical to one per table per interval.
func (m *Manager) allowTable(rec results.GameResult, now time.Time) bool {
	if m.cfg.TableInterval <= 0 || rec.Priority.Rank() >= results.PriorityCritical.Rank() {
		return true
	}
	key := rec.GameID + "|" + rec.TableID
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastByTable[key]; ok && now.Sub(last) < m.cfg.TableInterval {
		return false
	}
	m.lastByTable[key] = now
	return true
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.dispatchCh <- job:
		m.stats.queued.Add(1)
		metrics.NotifyJobsTotal.WithLabelValues(job.Target.Platform, "queued").Inc()
		metrics.NotifyQueueLen.Set(float64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}

func (m *Manager) currentTargets() []Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Target, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}

func (m *Manager) setTargets(targets []Target) {
	m.mu.Lock()
	m.cfg.Targets = targets
	m.mu.Unlock()
}

func (m *Manager) Stats() Stats {
	return Stats{
		Enabled:   m.cfg.Enabled,
		Targets:   len(m.currentTargets()),
		QueueLen:  len(m.dispatchCh),
		Queued:    m.stats.queued.Load(),
		Sent:      m.stats.sent.Load(),
		Failed:    m.stats.failed.Load(),
		Dropped:   m.stats.dropped.Load(),
		Throttled: m.stats.throttled.Load(),
		Retries:   m.stats.retries.Load(),
		Reloads:   m.stats.reloads.Load(),
	}
}

func (m *Manager) watchConfigLoop(ctx context.Context) {
	interval := m.cfg.ConfigReload
	if interval <= 0 {
		interval = time.Second
	}
	lastRaw := ""
	if raw, err := os.ReadFile(m.cfg.ConfigPath); err == nil {
		lastRaw = strings.TrimSpace(string(raw))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			raw, err := os.ReadFile(m.cfg.ConfigPath)
			if err != nil {
				metrics.NotifyConfigReloadsTotal.WithLabelValues("error").Inc()
				log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("notify_reload_read_failed")
				continue
			}
			next := strings.TrimSpace(string(raw))
			if next == lastRaw {
				continue
			}
			targets, err := parseTargetsJSON(next)
			if err != nil {
				metrics.NotifyConfigReloadsTotal.WithLabelValues("error").Inc()
				log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("notify_reload_parse_failed")
				continue
			}
			m.setTargets(targets)
			lastRaw = next
			m.stats.reloads.Add(1)
			metrics.NotifyConfigReloadsTotal.WithLabelValues("ok").Inc()
			log.Info().Int("targets", len(targets)).Msg("notify_targets_reloaded")
		}
	}
}
