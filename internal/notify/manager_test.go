package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"casino-relay/internal/notify/platforms"
	"casino-relay/internal/results"
	"casino-relay/internal/upstream"
)

type recordingAdapter struct {
	mu      sync.Mutex
	fail    bool
	sent    []platforms.Message
	calls   int
	forgets []string
}

func (a *recordingAdapter) Name() string { return "rec" }

func (a *recordingAdapter) Send(_ context.Context, _ string, _ string, msg platforms.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail {
		return errors.New("failed")
	}
	a.sent = append(a.sent, msg)
	return nil
}

func (a *recordingAdapter) ForgetPanel(_ string, panelKey string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forgets = append(a.forgets, panelKey)
}

func (a *recordingAdapter) snapshot() (int, []platforms.Message, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls, append([]platforms.Message(nil), a.sent...), append([]string(nil), a.forgets...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startTestManager(t *testing.T, cfg Config, adapter *recordingAdapter) *Manager {
	t.Helper()
	cfg.Enabled = true
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	m := NewManager(cfg)
	m.adapters = map[string]platforms.Adapter{"rec": adapter}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	return m
}

var allTarget = Target{Platform: "rec", Endpoint: "https://example.com", ScopeType: ScopeAll, Enabled: true}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	adapter := &recordingAdapter{fail: true}
	m := startTestManager(t, Config{Targets: []Target{allTarget}, RetryMax: 1, RetryBase: 5 * time.Millisecond, FailureThreshold: 10}, adapter)

	if !m.enqueue(pushJob{Target: allTarget, Formatted: FormattedMessage{Title: "x"}}) {
		t.Fatal("enqueue failed")
	}
	waitFor(t, "job to be dropped", func() bool { return m.Stats().Dropped == 1 })
	if calls, _, _ := adapter.snapshot(); calls != 2 {
		t.Fatalf("expected initial send + 1 retry, got %d", calls)
	}
	if st := m.Stats(); st.Retries != 1 || st.Failed != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestCircuitOpenSkipsSubsequentSends(t *testing.T) {
	adapter := &recordingAdapter{fail: true}
	m := startTestManager(t, Config{
		Targets:             []Target{allTarget},
		RetryBase:           5 * time.Millisecond,
		FailureThreshold:    1,
		CircuitOpenDuration: time.Minute,
	}, adapter)

	job := pushJob{Target: allTarget, Formatted: FormattedMessage{Title: "x"}}
	m.enqueue(job)
	waitFor(t, "first drop", func() bool { return m.Stats().Dropped == 1 })
	m.enqueue(job)
	waitFor(t, "second drop", func() bool { return m.Stats().Dropped == 2 })
	if calls, _, _ := adapter.snapshot(); calls != 1 {
		t.Fatalf("expected breaker to skip second send, got %d calls", calls)
	}
}

func TestPublishResultFiltersAndThrottles(t *testing.T) {
	adapter := &recordingAdapter{}
	m := startTestManager(t, Config{
		Targets:       []Target{allTarget},
		MinPriority:   results.PriorityHigh,
		TableInterval: time.Minute,
	}, adapter)

	rec := results.GameResult{GameID: "crazy-time", TableID: "701", Result: "50", Priority: results.PriorityNormal}
	m.PublishResult(rec)

	rec.Priority = results.PriorityHigh
	m.PublishResult(rec)
	m.PublishResult(rec)

	rec.Priority = results.PriorityCritical
	m.PublishResult(rec)
	m.PublishResult(rec)

	waitFor(t, "three alerts", func() bool { return m.Stats().Sent == 3 })
	if st := m.Stats(); st.Throttled != 1 || st.Queued != 3 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestUpstreamOutageUsesOnePanel(t *testing.T) {
	adapter := &recordingAdapter{}
	m := startTestManager(t, Config{Targets: []Target{allTarget}}, adapter)

	m.OnUpstreamState(upstream.StateConnected, nil)
	m.OnUpstreamState(upstream.StateReconnecting, errors.New("eof"))
	m.OnUpstreamState(upstream.StateConnecting, nil)
	m.OnUpstreamState(upstream.StateFailed, errors.New("max attempts"))
	m.OnUpstreamState(upstream.StateConnected, nil)
	m.OnUpstreamState(upstream.StateConnected, nil)

	waitFor(t, "outage alerts", func() bool {
		_, _, forgets := adapter.snapshot()
		return len(forgets) == 1
	})
	_, sent, forgets := adapter.snapshot()
	if len(sent) != 3 {
		t.Fatalf("expected reconnecting, failed, recovered; got %d messages", len(sent))
	}
	for _, msg := range sent {
		if msg.PanelKey != upstreamPanelKey {
			t.Fatalf("expected upstream panel key, got %q", msg.PanelKey)
		}
	}
	if sent[2].Title != "Upstream feed recovered" {
		t.Fatalf("unexpected last message: %q", sent[2].Title)
	}
	if forgets[0] != upstreamPanelKey {
		t.Fatalf("unexpected forgotten panel: %q", forgets[0])
	}
}

func TestDisabledManagerIgnoresEvents(t *testing.T) {
	m := NewManager(Config{Targets: []Target{allTarget}})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.PublishResult(results.GameResult{Priority: results.PriorityPermanent})
	m.OnUpstreamState(upstream.StateFailed, nil)
	if st := m.Stats(); st.Queued != 0 || st.Enabled {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestStopRejectsNewJobs(t *testing.T) {
	adapter := &recordingAdapter{}
	m := startTestManager(t, Config{Targets: []Target{allTarget}}, adapter)
	m.Stop()
	m.Stop()
	if m.enqueue(pushJob{Target: allTarget}) {
		t.Fatal("expected enqueue to fail after stop")
	}
}

func TestWatchConfigReloadsTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o600); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	adapter := &recordingAdapter{}
	m := startTestManager(t, Config{ConfigPath: path, ConfigReload: 10 * time.Millisecond}, adapter)

	if err := os.WriteFile(path, []byte(`{broken`), 0o600); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if st := m.Stats(); st.Targets != 0 || st.Reloads != 0 {
		t.Fatalf("broken file should be ignored: %+v", st)
	}

	if err := os.WriteFile(path, []byte(`[{"platform":"rec","endpoint":"https://x","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	waitFor(t, "reload", func() bool { return m.Stats().Targets == 1 })

	m.PublishResult(results.GameResult{GameID: "g", TableID: "t", Priority: results.PriorityPermanent})
	waitFor(t, "alert to reloaded target", func() bool { return m.Stats().Sent == 1 })
}
