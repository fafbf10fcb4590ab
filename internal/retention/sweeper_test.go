package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 3, nil
}

func TestSweeperRunsAtStartAndOnInterval(t *testing.T) {
	c := &countingCleaner{}
	s := NewSweeper(c, 20*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.calls.Load() < 3 {
		t.Fatalf("expected repeated sweeps, got %d", c.calls.Load())
	}
	st := s.Stats()
	if st.LastRun == nil || st.LastDeleted != 3 || st.TotalDeleted < 6 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestSweeperStopHaltsLoop(t *testing.T) {
	c := &countingCleaner{}
	s := NewSweeper(c, 10*time.Millisecond)
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	after := c.calls.Load()
	time.Sleep(40 * time.Millisecond)
	if c.calls.Load() != after {
		t.Fatalf("sweeper kept running after stop: %d -> %d", after, c.calls.Load())
	}
}

func TestSweeperRecordsFailure(t *testing.T) {
	c := &countingCleaner{err: errors.New("db down")}
	s := NewSweeper(c, time.Hour)
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if st := s.Stats(); st.LastError == "" || st.TotalDeleted != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
