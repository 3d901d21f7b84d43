package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"blockchain-explorer/internal/fetchers"
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/syncer"

	"github.com/rs/zerolog"
)

var (
	// ErrRefreshInFlight is returned by Trigger while a cycle is running or already queued.
	ErrRefreshInFlight = errors.New("refresh already in flight")
	ErrStopped         = errors.New("scheduler stopped")
	ErrNotStarted      = errors.New("scheduler not started")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)

const (
	ReasonStartup  = "startup"
	ReasonInterval = "interval"
	ReasonManual   = "manual"
)

// Syncer fetches the listing in Sync and applies it to the store in Commit.
// Commit is only called for cycles that were not cancelled.
type Syncer interface {
	Sync(ctx context.Context) syncer.Result
	Commit(res *syncer.Result)
}

type StatsSource interface {
	FetchStats(ctx context.Context) (models.NetworkStats, error)
}

type WalletSource interface {
	FetchBalance(ctx context.Context, addr string) (string, error)
	FetchActivity(ctx context.Context, addr string) fetchers.Activity
}

// Target receives the outcome of every completed cycle.
type Target interface {
	// ConnectedAddress returns the wallet to refresh, or "" when none is connected.
	ConnectedAddress() string
	ApplyCycle(res CycleResult)
}

// WalletResult is the wallet part of a cycle.
type WalletResult struct {
	Address    string
	Balance    string
	BalanceErr error
	Activity   fetchers.Activity
}

// Failed reports whether any of the wallet calls failed.
func (w WalletResult) Failed() bool {
	return w.BalanceErr != nil || w.Activity.IncomingErr != nil || w.Activity.OutgoingErr != nil
}

// CycleResult holds everything one refresh cycle produced. Each resource
// succeeds or fails on its own.
type CycleResult struct {
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
	Sync       syncer.Result
	Stats      models.NetworkStats
	StatsErr   error
	// Wallet is nil when no wallet was connected at cycle start.
	Wallet *WalletResult
}

type Config struct {
	Interval time.Duration
}

// Scheduler runs refresh cycles at startup, on an interval and on demand,
// never more than one at a time.
type Scheduler struct {
	cfg     Config
	syncer  Syncer
	stats   StatsSource
	wallets WalletSource
	target  Target
	logger  *zerolog.Logger

	inFlight atomic.Bool
	manual   chan string

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config, sy Syncer, stats StatsSource, wallets WalletSource, target Target, logger *zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Scheduler{
		cfg:     cfg,
		syncer:  sy,
		stats:   stats,
		wallets: wallets,
		target:  target,
		logger:  logger,
		manual:  make(chan string, 1),
	}
}

// Start runs the startup cycle and then keeps refreshing until Stop is called
// or ctx is cancelled. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Msg("Starting refresh scheduler")

	go s.loop(ctx)
	return nil
}

// Stop cancels the ticker and any in-flight cycle, whose result is discarded,
// and waits for the loop to exit. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info().Msg("Refresh scheduler stopped")
}

// Trigger requests an immediate cycle. It returns ErrRefreshInFlight if a
// cycle is running or one is already queued; the request is then dropped.
func (s *Scheduler) Trigger(reason string) error {
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()

	switch {
	case stopped:
		return ErrStopped
	case !started:
		return ErrNotStarted
	case s.inFlight.Load():
		return ErrRefreshInFlight
	}

	if reason == "" {
		reason = ReasonManual
	}
	select {
	case s.manual <- reason:
		return nil
	default:
		return ErrRefreshInFlight
	}
}

// InFlight reports whether a cycle is currently running.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runCycle(ctx, ReasonStartup)
	drain(ticker.C)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Shutting down")
			return

		case <-ticker.C:
			s.runCycle(ctx, ReasonInterval)

		case reason := <-s.manual:
			s.runCycle(ctx, reason)
		}
		// ticks that fired while the cycle ran are dropped
		drain(ticker.C)
	}
}

func drain(c <-chan time.Time) {
	select {
	case <-c:
	default:
	}
}

func (s *Scheduler) runCycle(ctx context.Context, reason string) {
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	res := s.cycle(ctx, reason)

	if ctx.Err() != nil {
		s.logger.Debug().
			Str("reason", reason).
			Int("fetched", res.Sync.Fetched).
			Msg("Discarding result of cancelled cycle")
		return
	}

	s.syncer.Commit(&res.Sync)
	s.target.ApplyCycle(res)

	s.logger.Info().
		Str("reason", reason).
		Int("transactions", res.Sync.Total).
		Bool("syncOK", res.Sync.Err == nil).
		Bool("statsOK", res.StatsErr == nil).
		Bool("wallet", res.Wallet != nil).
		Dur("took", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Refresh cycle complete")
}

// cycle runs sync, stats and the wallet refresh concurrently. Each goroutine
// writes only its own field of res.
func (s *Scheduler) cycle(ctx context.Context, reason string) CycleResult {
	res := CycleResult{Reason: reason, StartedAt: time.Now()}
	addr := s.target.ConnectedAddress()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.Sync = s.syncer.Sync(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.Stats, res.StatsErr = s.stats.FetchStats(ctx)
		if res.StatsErr != nil {
			s.logger.Error().
				Err(res.StatsErr).
				Msg("Failed to fetch network stats")
		}
	}()

	if addr != "" && s.wallets != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Wallet = FetchWallet(ctx, s.wallets, addr)
		}()
	}

	wg.Wait()
	res.FinishedAt = time.Now()
	return res
}

// FetchWallet fetches balance and activity for addr concurrently.
func FetchWallet(ctx context.Context, wallets WalletSource, addr string) *WalletResult {
	w := &WalletResult{Address: addr}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Balance, w.BalanceErr = wallets.FetchBalance(ctx, addr)
	}()
	w.Activity = wallets.FetchActivity(ctx, addr)
	wg.Wait()

	return w
}
