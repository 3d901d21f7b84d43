package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blockchain-explorer/internal/fetchers"
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/store"
	"blockchain-explorer/internal/syncer"

	"github.com/rs/zerolog"
)

// MockSyncer counts syncs and commits; when block is set each sync waits on it or on ctx
type MockSyncer struct {
	calls   int32
	commits int32
	block   chan struct{}
}

func (m *MockSyncer) Sync(ctx context.Context) syncer.Result {
	atomic.AddInt32(&m.calls, 1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return syncer.Result{Err: ctx.Err()}
		}
	}
	return syncer.Result{Total: 5, TotalPages: 1}
}

func (m *MockSyncer) Commit(*syncer.Result) {
	atomic.AddInt32(&m.commits, 1)
}

func (m *MockSyncer) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

func (m *MockSyncer) Commits() int {
	return int(atomic.LoadInt32(&m.commits))
}

// HangingPageSource serves page 1 and then blocks on page 2 until ctx is done
type HangingPageSource struct {
	reached chan struct{}
	once    sync.Once
}

func (h *HangingPageSource) FetchPage(ctx context.Context, page, _ int) ([]models.TransactionRecord, error) {
	if page == 1 {
		return []models.TransactionRecord{{ID: "late", Epoch: 1700000000}}, nil
	}
	h.once.Do(func() { close(h.reached) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// MockPages serves fixed pages; missing pages come back empty
type MockPages struct {
	pages map[int][]models.TransactionRecord
}

func (m *MockPages) FetchPage(_ context.Context, page, _ int) ([]models.TransactionRecord, error) {
	return m.pages[page], nil
}

// MockEventEmitter records emitted events
type MockEventEmitter struct {
	events []models.TransactionEvent
	mu     sync.Mutex
}

func (m *MockEventEmitter) EmitEvent(ev models.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MockEventEmitter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type MockStats struct {
	stats models.NetworkStats
	err   error
}

func (m *MockStats) FetchStats(context.Context) (models.NetworkStats, error) {
	return m.stats, m.err
}

type MockWallets struct {
	balance    string
	balanceErr error
	activity   fetchers.Activity
	mu         sync.Mutex
	addresses  []string
}

func (m *MockWallets) FetchBalance(_ context.Context, addr string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses = append(m.addresses, addr)
	return m.balance, m.balanceErr
}

func (m *MockWallets) FetchActivity(context.Context, string) fetchers.Activity {
	return m.activity
}

// MockTarget records every applied cycle
type MockTarget struct {
	address string
	results []CycleResult
	mu      sync.Mutex
}

func (m *MockTarget) ConnectedAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

func (m *MockTarget) ApplyCycle(res CycleResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
}

func (m *MockTarget) Results() []CycleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CycleResult, len(m.results))
	copy(out, m.results)
	return out
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

func newTestScheduler(interval time.Duration, sy Syncer, stats StatsSource, wallets WalletSource, target Target) *Scheduler {
	logger := zerolog.New(nil)
	return New(Config{Interval: interval}, sy, stats, wallets, target, &logger)
}

func TestScheduler_StartupCycle(t *testing.T) {
	sy := &MockSyncer{}
	target := &MockTarget{}
	stats := &MockStats{stats: models.NetworkStats{TotalBlocks: 9}}
	s := newTestScheduler(time.Hour, sy, stats, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, "startup cycle", func() bool { return len(target.Results()) == 1 })

	res := target.Results()[0]
	if res.Reason != ReasonStartup {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonStartup)
	}
	if res.Stats.TotalBlocks != 9 || res.Sync.Total != 5 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Wallet != nil {
		t.Error("Wallet should be nil when nothing is connected")
	}
}

func TestScheduler_IndependentFailures(t *testing.T) {
	target := &MockTarget{address: "erd1abc"}
	wallets := &MockWallets{
		balance: "1.0",
		activity: fetchers.Activity{
			Incoming:    []models.TransactionRecord{{ID: "in"}},
			Outgoing:    []models.TransactionRecord{},
			OutgoingErr: errors.New("outgoing down"),
		},
	}
	s := newTestScheduler(time.Hour, &MockSyncer{}, &MockStats{err: errors.New("stats down")}, wallets, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, "startup cycle", func() bool { return len(target.Results()) == 1 })
	res := target.Results()[0]

	if res.StatsErr == nil {
		t.Error("expected stats error")
	}
	if res.Sync.Err != nil || res.Sync.Total != 5 {
		t.Errorf("sync should succeed independently: %+v", res.Sync)
	}
	if res.Wallet == nil || res.Wallet.Address != "erd1abc" {
		t.Fatalf("Wallet = %+v", res.Wallet)
	}
	if len(res.Wallet.Activity.Incoming) != 1 || res.Wallet.Balance != "1.0" {
		t.Errorf("incoming/balance lost: %+v", res.Wallet)
	}
	if !res.Wallet.Failed() {
		t.Error("Failed() should report the outgoing error")
	}
}

func TestScheduler_TriggerWhileInFlight(t *testing.T) {
	sy := &MockSyncer{block: make(chan struct{})}
	target := &MockTarget{}
	s := newTestScheduler(time.Hour, sy, &MockStats{}, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, "cycle in flight", s.InFlight)

	if err := s.Trigger(ReasonManual); !errors.Is(err, ErrRefreshInFlight) {
		t.Errorf("Trigger() error = %v, want ErrRefreshInFlight", err)
	}

	close(sy.block)
	waitFor(t, "cycle to finish", func() bool { return len(target.Results()) == 1 && !s.InFlight() })

	time.Sleep(20 * time.Millisecond)
	if got := sy.Calls(); got != 1 {
		t.Errorf("expected the rejected trigger to be dropped, got %d syncs", got)
	}
}

func TestScheduler_ManualTrigger(t *testing.T) {
	sy := &MockSyncer{}
	target := &MockTarget{}
	s := newTestScheduler(time.Hour, sy, &MockStats{}, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, "startup cycle", func() bool { return len(target.Results()) == 1 && !s.InFlight() })

	if err := s.Trigger(""); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	waitFor(t, "manual cycle", func() bool { return len(target.Results()) == 2 })

	if got := target.Results()[1].Reason; got != ReasonManual {
		t.Errorf("Reason = %q, want %q", got, ReasonManual)
	}
}

func TestScheduler_Interval(t *testing.T) {
	sy := &MockSyncer{}
	target := &MockTarget{}
	s := newTestScheduler(10*time.Millisecond, sy, &MockStats{}, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, "interval cycles", func() bool { return len(target.Results()) >= 3 })

	if got := target.Results()[1].Reason; got != ReasonInterval {
		t.Errorf("Reason = %q, want %q", got, ReasonInterval)
	}
}

func TestScheduler_StopDiscardsInFlight(t *testing.T) {
	sy := &MockSyncer{block: make(chan struct{})}
	target := &MockTarget{}
	s := newTestScheduler(time.Hour, sy, &MockStats{}, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "cycle in flight", s.InFlight)

	s.Stop()

	if n := len(target.Results()); n != 0 {
		t.Errorf("expected in-flight result to be discarded, got %d applied", n)
	}
	if n := sy.Commits(); n != 0 {
		t.Errorf("expected no commit for a cancelled cycle, got %d", n)
	}
	if err := s.Trigger(ReasonManual); !errors.Is(err, ErrStopped) {
		t.Errorf("Trigger() after Stop = %v, want ErrStopped", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop = %v, want ErrStopped", err)
	}
	s.Stop()
}

func TestScheduler_StopLeavesStoreUntouched(t *testing.T) {
	logger := zerolog.New(nil)
	st := store.New()
	emitter := &MockEventEmitter{}
	source := &HangingPageSource{reached: make(chan struct{})}
	engine := syncer.NewEngine(syncer.Config{PageSize: 50, MaxPages: 5}, source, st, emitter, &logger)
	target := &MockTarget{}
	s := newTestScheduler(time.Hour, engine, &MockStats{}, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-source.reached:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for page 2 to be requested")
	}

	s.Stop()

	if n := st.Len(); n != 0 {
		t.Errorf("store has %d records after Stop, want 0", n)
	}
	if n := emitter.Count(); n != 0 {
		t.Errorf("emitted %d events after Stop, want 0", n)
	}
	if n := len(target.Results()); n != 0 {
		t.Errorf("applied %d cycles after Stop, want 0", n)
	}
}

func TestScheduler_CommitsCompletedCycle(t *testing.T) {
	logger := zerolog.New(nil)
	st := store.New()
	emitter := &MockEventEmitter{}
	source := &MockPages{pages: map[int][]models.TransactionRecord{
		1: {{ID: "t1", Epoch: 2}, {ID: "t2", Epoch: 1}},
	}}
	engine := syncer.NewEngine(syncer.Config{PageSize: 50, MaxPages: 5, DisplayPageSize: 10}, source, st, emitter, &logger)
	target := &MockTarget{}
	s := newTestScheduler(time.Hour, engine, &MockStats{}, nil, target)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, "startup cycle", func() bool { return len(target.Results()) == 1 })

	res := target.Results()[0].Sync
	if st.Len() != 2 || res.Added != 2 || res.Total != 2 || res.TotalPages != 1 {
		t.Errorf("store %d, result %+v", st.Len(), res)
	}
	if n := emitter.Count(); n != 2 {
		t.Errorf("emitted %d events, want 2", n)
	}
}

func TestScheduler_ParentContextCancel(t *testing.T) {
	sy := &MockSyncer{}
	target := &MockTarget{}
	s := newTestScheduler(10*time.Millisecond, sy, &MockStats{}, nil, target)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "startup cycle", func() bool { return len(target.Results()) >= 1 })

	cancel()
	s.Stop()
	n := len(target.Results())

	time.Sleep(50 * time.Millisecond)
	if got := len(target.Results()); got != n {
		t.Errorf("cycles ran after cancel: %d -> %d", n, got)
	}
}

func TestScheduler_TriggerBeforeStart(t *testing.T) {
	s := newTestScheduler(time.Hour, &MockSyncer{}, &MockStats{}, nil, &MockTarget{})

	if err := s.Trigger(ReasonManual); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Trigger() = %v, want ErrNotStarted", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}
