package subscription

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFeed struct {
	mu           sync.Mutex
	subscribes   map[string]int
	unsubscribes map[string]int
	order        []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subscribes: map[string]int{}, unsubscribes: map[string]int{}}
}

func (f *fakeFeed) SubscribeTable(tableID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes[tableID]++
	f.order = append(f.order, "sub:"+tableID)
}

func (f *fakeFeed) UnsubscribeTable(tableID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes[tableID]++
	f.order = append(f.order, "unsub:"+tableID)
}

func (f *fakeFeed) counts(tableID string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes[tableID], f.unsubscribes[tableID]
}

type recordingSink struct {
	mu      sync.Mutex
	updates []TableUpdate
	err     error
	panics  bool
}

func (s *recordingSink) Deliver(update TableUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	if s.panics {
		panic("boom")
	}
	return s.err
}

func (s *recordingSink) received() []TableUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TableUpdate, len(s.updates))
	copy(out, s.updates)
	return out
}

func update(tableID, body string) TableUpdate {
	return TableUpdate{TableID: tableID, Type: "game_data", Raw: json.RawMessage(body), ReceivedAt: time.Now()}
}

func TestRefCountingAcrossGames(t *testing.T) {
	feed := newFakeFeed()
	reg := NewRegistry(feed)
	games := []string{"sweet-bonanza", "mega-wheel", "crazy-time"}
	sinks := make([]*recordingSink, len(games))
	for i, g := range games {
		sinks[i] = &recordingSink{}
		reg.SubscribeToGame(g, []string{"701"}, sinks[i])
	}

	subs, unsubs := feed.counts("701")
	if subs != 1 || unsubs != 0 {
		t.Fatalf("after subscribe: subs=%d unsubs=%d, want 1/0", subs, unsubs)
	}
	if reg.RefCount("701") != 3 {
		t.Fatalf("refcount = %d, want 3", reg.RefCount("701"))
	}

	for i := 0; i < len(games)-1; i++ {
		reg.UnsubscribeFromGame(games[i], sinks[i])
		if _, unsubs := feed.counts("701"); unsubs != 0 {
			t.Fatalf("unsubscribe sent early after %d releases", i+1)
		}
	}
	last := len(games) - 1
	reg.UnsubscribeFromGame(games[last], sinks[last])
	subs, unsubs = feed.counts("701")
	if subs != 1 || unsubs != 1 {
		t.Fatalf("after release: subs=%d unsubs=%d, want 1/1", subs, unsubs)
	}
	if reg.RefCount("701") != 0 {
		t.Fatalf("refcount = %d, want 0", reg.RefCount("701"))
	}
}

func TestSameGameManyListenersCountsOnce(t *testing.T) {
	feed := newFakeFeed()
	reg := NewRegistry(feed)
	a, b := &recordingSink{}, &recordingSink{}
	reg.SubscribeToGame("sweet-bonanza", []string{"701", "701", "702"}, a)
	reg.SubscribeToGame("sweet-bonanza", []string{"701", "702"}, b)
	if reg.RefCount("701") != 1 || reg.RefCount("702") != 1 {
		t.Fatalf("refcounts = %d/%d, want 1/1", reg.RefCount("701"), reg.RefCount("702"))
	}

	reg.UnsubscribeFromGame("sweet-bonanza", a)
	if _, unsubs := feed.counts("701"); unsubs != 0 {
		t.Fatal("table released while a listener remains")
	}
	reg.UnsubscribeFromGame("sweet-bonanza", b)
	reg.UnsubscribeFromGame("sweet-bonanza", b)
	if _, unsubs := feed.counts("701"); unsubs != 1 {
		t.Fatalf("unsubs = %d, want exactly 1", unsubs)
	}
	if _, ok := reg.GameData("sweet-bonanza"); ok {
		t.Fatal("game entry should be deleted once empty")
	}
}

func TestDispatchIsolatesFailingSinks(t *testing.T) {
	reg := NewRegistry(newFakeFeed())
	sinks := []*recordingSink{
		{},
		{err: errors.New("write failed")},
		{panics: true},
		{},
	}
	for i, s := range sinks {
		game := "g" + string(rune('a'+i))
		reg.SubscribeToGame(game, []string{"701"}, s)
	}

	reg.Dispatch(update("701", `{"tableId":"701"}`))

	for i, s := range sinks {
		if got := len(s.received()); got != 1 {
			t.Fatalf("sink %d received %d updates, want 1", i, got)
		}
	}
	st := reg.Stats()
	if st.SinkFails != 2 || st.Delivered != 2 {
		t.Fatalf("stats = %+v, want 2 failures and 2 deliveries", st)
	}
}

func TestSnapshotReplayOnSubscribe(t *testing.T) {
	reg := NewRegistry(newFakeFeed())
	early := &recordingSink{}
	reg.SubscribeToGame("sweet-bonanza", []string{"701"}, early)
	reg.Dispatch(update("701", `{"n":1}`))
	reg.Dispatch(update("701", `{"n":2}`))

	late := &recordingSink{}
	reg.SubscribeToGame("mega-wheel", []string{"701"}, late)
	got := late.received()
	if len(got) != 1 {
		t.Fatalf("late sink received %d updates on subscribe, want 1", len(got))
	}
	if !got[0].Replayed || string(got[0].Raw) != `{"n":2}` {
		t.Fatalf("replayed update = %+v, want latest snapshot marked replayed", got[0])
	}

	reg.Dispatch(update("701", `{"n":3}`))
	got = late.received()
	if len(got) != 2 || got[1].Replayed || string(got[1].Raw) != `{"n":3}` {
		t.Fatalf("live update not delivered after replay: %+v", got)
	}
}

func TestNoReplayWithoutSnapshot(t *testing.T) {
	reg := NewRegistry(newFakeFeed())
	s := &recordingSink{}
	reg.SubscribeToGame("sweet-bonanza", []string{"701"}, s)
	if len(s.received()) != 0 {
		t.Fatal("no snapshot should mean no replay")
	}
}

func TestDispatchOnlyReachesMatchingGames(t *testing.T) {
	reg := NewRegistry(newFakeFeed())
	a, b := &recordingSink{}, &recordingSink{}
	reg.SubscribeToGame("sweet-bonanza", []string{"701"}, a)
	reg.SubscribeToGame("mega-wheel", []string{"800"}, b)

	reg.Dispatch(update("701", `{}`))
	if len(a.received()) != 1 || len(b.received()) != 0 {
		t.Fatalf("unexpected fan-out a=%d b=%d", len(a.received()), len(b.received()))
	}
}

func TestResubscribeReissuesReferencedTables(t *testing.T) {
	feed := newFakeFeed()
	reg := NewRegistry(feed)
	reg.SubscribeToGame("sweet-bonanza", []string{"701", "702"}, &recordingSink{})
	released := &recordingSink{}
	reg.SubscribeToGame("mega-wheel", []string{"900"}, released)
	reg.UnsubscribeFromGame("mega-wheel", released)

	if n := reg.Resubscribe(); n != 2 {
		t.Fatalf("Resubscribe() = %d, want 2", n)
	}
	if subs, _ := feed.counts("701"); subs != 2 {
		t.Fatalf("701 subscribes = %d, want 2", subs)
	}
	if subs, _ := feed.counts("900"); subs != 1 {
		t.Fatalf("released table 900 should not be resubscribed, got %d", subs)
	}
}

func TestReleasedTableDropsSnapshot(t *testing.T) {
	reg := NewRegistry(newFakeFeed())
	s := &recordingSink{}
	reg.SubscribeToGame("sweet-bonanza", []string{"701"}, s)
	reg.Dispatch(update("701", `{}`))
	reg.UnsubscribeFromGame("sweet-bonanza", s)
	if _, ok := reg.Snapshot("701"); ok {
		t.Fatal("snapshot should be dropped once nobody references the table")
	}
}

func TestConcurrentSubscribeUnsubscribeKeepsCountsBalanced(t *testing.T) {
	feed := newFakeFeed()
	reg := NewRegistry(feed)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewFuncSink(func(TableUpdate) error { return nil })
			game := "game-" + string(rune('a'+i%5))
			reg.SubscribeToGame(game, []string{"701", "702"}, s)
			reg.Dispatch(update("701", `{}`))
			reg.UnsubscribeFromGame(game, s)
		}(i)
	}
	wg.Wait()

	if reg.RefCount("701") != 0 || reg.RefCount("702") != 0 {
		t.Fatalf("refcounts not balanced: %d/%d", reg.RefCount("701"), reg.RefCount("702"))
	}
	subs, unsubs := feed.counts("701")
	if subs != unsubs {
		t.Fatalf("subscribe/unsubscribe frames unbalanced: %d/%d", subs, unsubs)
	}
}

// blockingFeed parks inside SubscribeTable for one table until released.
type blockingFeed struct {
	*fakeFeed
	blockOn string
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFeed) SubscribeTable(tableID string) {
	if tableID == f.blockOn {
		close(f.entered)
		<-f.release
	}
	f.fakeFeed.SubscribeTable(tableID)
}

func TestDispatchNotBlockedBySlowFeedWrite(t *testing.T) {
	feed := &blockingFeed{fakeFeed: newFakeFeed(), blockOn: "702", entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRegistry(feed)
	sink := &recordingSink{}
	r.SubscribeToGame("sweet-bonanza", []string{"701"}, sink)

	subscribed := make(chan struct{})
	go func() {
		r.SubscribeToGame("mega-wheel", []string{"702"}, &recordingSink{})
		close(subscribed)
	}()
	select {
	case <-feed.entered:
	case <-time.After(time.Second):
		t.Fatal("subscribe frame for 702 never written")
	}

	dispatched := make(chan struct{})
	go func() {
		r.Dispatch(update("701", `{"n":1}`))
		close(dispatched)
	}()
	select {
	case <-dispatched:
	case <-time.After(time.Second):
		t.Fatal("dispatch for 701 waited on the 702 subscribe write")
	}
	if got := sink.received(); len(got) != 1 {
		t.Fatalf("expected live update during slow write, got %d", len(got))
	}
	if n := r.RefCount("702"); n != 1 {
		t.Fatalf("refcount must be visible before the frame is written, got %d", n)
	}

	// queued behind the slow write, still sent in order
	unsubscribed := make(chan struct{})
	go func() {
		r.UnsubscribeFromGame("sweet-bonanza", sink)
		close(unsubscribed)
	}()

	close(feed.release)
	for _, ch := range []chan struct{}{subscribed, unsubscribed} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("feed calls did not finish after release")
		}
	}
	feed.mu.Lock()
	order := append([]string(nil), feed.order...)
	feed.mu.Unlock()
	want := []string{"sub:701", "sub:702", "unsub:701"}
	if len(order) != len(want) {
		t.Fatalf("unexpected frames: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("frame %d = %s, want %s (all %v)", i, order[i], want[i], order)
		}
	}
}
