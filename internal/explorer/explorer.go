package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"blockchain-explorer/internal/health"
	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/normalize"
	"blockchain-explorer/internal/projection"
	"blockchain-explorer/internal/scheduler"
	"blockchain-explorer/internal/store"
	"blockchain-explorer/internal/syncer"
	"blockchain-explorer/internal/validation"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrInvalidSortKey = errors.New("invalid sort key")
	ErrNoRefresher    = errors.New("no refresher configured")
)

const (
	ResourceTransactions = "transactions"
	ResourceStats        = "stats"
	ResourceWallet       = "wallet"
)

// Refresher is the manual-trigger side of the refresh scheduler.
type Refresher interface {
	Trigger(reason string) error
	InFlight() bool
}

// ResourceStatus is the loading state of one sub-resource.
type ResourceStatus struct {
	// Loading is true until the first result for the resource is applied.
	Loading   bool      `json:"loading"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Status struct {
	Transactions ResourceStatus `json:"transactions"`
	Stats        ResourceStatus `json:"stats"`
	Wallet       ResourceStatus `json:"wallet"`
	Refreshing   bool           `json:"refreshing"`
	LastRefresh  time.Time      `json:"lastRefresh"`
}

// PageView is one projected page plus the paging context around it.
type PageView struct {
	Page         int                        `json:"page"`
	PageSize     int                        `json:"pageSize"`
	TotalPages   int                        `json:"totalPages"`
	TotalRecords int                        `json:"totalRecords"`
	SearchTerm   string                     `json:"searchTerm"`
	Sort         models.SortConfig          `json:"sort"`
	Records      []models.TransactionRecord `json:"records"`
}

// StatsView is the upstream counters plus what this instance has seen itself.
type StatsView struct {
	models.NetworkStats
	ObservedAccounts   uint64 `json:"observedAccounts"`
	MergedTransactions int    `json:"mergedTransactions"`
}

// Summary is published to subscribers after each applied cycle.
type Summary struct {
	Reason          string              `json:"reason"`
	At              time.Time           `json:"at"`
	Added           int                 `json:"added"`
	Total           int                 `json:"total"`
	TotalPages      int                 `json:"totalPages"`
	Stats           models.NetworkStats `json:"stats"`
	WalletConnected bool                `json:"walletConnected"`
	Status          Status              `json:"status"`
}

type Config struct {
	PageSize        int
	AddressHRPs     []string
	ExplorerBaseURL string
}

// Explorer is the single state object behind the UI-facing operations. The
// refresh scheduler mutates it only through ApplyCycle.
type Explorer struct {
	cfg       Config
	store     *store.Store
	wallets   scheduler.WalletSource
	refresher Refresher
	logger    *zerolog.Logger

	mu     sync.RWMutex
	term   string
	sort   models.SortConfig
	page   int
	stats  models.NetworkStats
	wallet *models.WalletSession
	status Status

	listenersMu sync.Mutex
	listeners   []func(Summary)
}

func New(cfg Config, st *store.Store, wallets scheduler.WalletSource, logger *zerolog.Logger) *Explorer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &Explorer{
		cfg:     cfg,
		store:   st,
		wallets: wallets,
		logger:  logger,
		page:    1,
		status: Status{
			Transactions: ResourceStatus{Loading: true},
			Stats:        ResourceStatus{Loading: true},
		},
	}
}

var _ scheduler.Target = (*Explorer)(nil)

// SetRefresher wires the scheduler used by RefreshNow.
func (e *Explorer) SetRefresher(r Refresher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresher = r
}

// Subscribe registers fn to be called after every applied cycle.
func (e *Explorer) Subscribe(fn func(Summary)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Page projects page n of the merged set under the current search term and
// sort, and makes n the current page.
func (e *Explorer) Page(n int) PageView {
	e.mu.Lock()
	e.page = n
	e.mu.Unlock()
	return e.CurrentPage()
}

// CurrentPage projects the current page without changing any state.
func (e *Explorer) CurrentPage() PageView {
	e.mu.RLock()
	term, cfg, page := e.term, e.sort, e.page
	e.mu.RUnlock()

	snapshot := e.store.Snapshot()
	matched := len(projection.Filter(snapshot, term))

	return PageView{
		Page:         page,
		PageSize:     e.cfg.PageSize,
		TotalPages:   projection.TotalPages(matched, e.cfg.PageSize),
		TotalRecords: matched,
		SearchTerm:   term,
		Sort:         cfg,
		Records:      projection.Project(snapshot, term, cfg, page, e.cfg.PageSize),
	}
}

// Transaction looks a single record up by id.
func (e *Explorer) Transaction(id string) (models.TransactionRecord, bool) {
	return e.store.Get(id)
}

// ExplorerURL links id to the public block explorer, or "" when unconfigured.
func (e *Explorer) ExplorerURL(id string) string {
	return syncer.ExplorerURL(e.cfg.ExplorerBaseURL, id)
}

// SetSearchTerm changes the filter and resets to page 1.
func (e *Explorer) SetSearchTerm(term string) PageView {
	e.mu.Lock()
	e.term = term
	e.page = 1
	e.mu.Unlock()
	return e.CurrentPage()
}

// SetSortKey selects key as the sort column, toggling direction on repeated
// selection, and resets to page 1.
func (e *Explorer) SetSortKey(key string) (PageView, error) {
	k, ok := models.ParseSortKey(key)
	if !ok {
		return PageView{}, fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}

	e.mu.Lock()
	e.sort = e.sort.Select(k)
	e.page = 1
	e.mu.Unlock()
	return e.CurrentPage(), nil
}

// RefreshNow asks the scheduler for an immediate cycle. It returns
// scheduler.ErrRefreshInFlight when one is already running.
func (e *Explorer) RefreshNow() error {
	e.mu.RLock()
	r := e.refresher
	e.mu.RUnlock()

	if r == nil {
		return ErrNoRefresher
	}
	return r.Trigger(scheduler.ReasonManual)
}

// ConnectWallet validates addr, fetches its balance and activity and makes it
// the connected wallet. Fetch failures default the affected fields; only an
// invalid address is an error.
func (e *Explorer) ConnectWallet(ctx context.Context, addr string) (models.WalletSession, error) {
	addr = strings.TrimSpace(addr)
	if err := validation.ValidateAddress(addr, e.cfg.AddressHRPs); err != nil {
		return models.WalletSession{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	e.mu.Lock()
	e.status.Wallet = ResourceStatus{Loading: true}
	e.mu.Unlock()

	e.logger.Info().
		Str("address", addr).
		Msg("Connecting wallet")

	res := scheduler.FetchWallet(ctx, e.wallets, addr)

	e.mu.Lock()
	e.wallet = &models.WalletSession{Address: addr}
	e.applyWallet(res, time.Now())
	session := copySession(e.wallet)
	e.mu.Unlock()

	health.UpdateResource(ResourceWallet, walletErr(res))

	return session, nil
}

// DisconnectWallet drops the wallet session.
func (e *Explorer) DisconnectWallet() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.wallet != nil {
		e.logger.Info().
			Str("address", e.wallet.Address).
			Msg("Disconnecting wallet")
	}
	e.wallet = nil
	e.status.Wallet = ResourceStatus{}
}

// Wallet returns a copy of the current session.
func (e *Explorer) Wallet() (models.WalletSession, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.wallet == nil {
		return models.WalletSession{}, false
	}
	return copySession(e.wallet), true
}

func (e *Explorer) ConnectedAddress() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.wallet == nil {
		return ""
	}
	return e.wallet.Address
}

func (e *Explorer) Stats() StatsView {
	e.mu.RLock()
	stats := e.stats
	e.mu.RUnlock()

	return StatsView{
		NetworkStats:       stats,
		ObservedAccounts:   e.store.ObservedAccounts(),
		MergedTransactions: e.store.Len(),
	}
}

func (e *Explorer) Status() Status {
	e.mu.RLock()
	st := e.status
	r := e.refresher
	e.mu.RUnlock()

	if r != nil {
		st.Refreshing = r.InFlight()
	}
	return st
}

// ApplyCycle folds one scheduler cycle into the state. It is the only place
// refresh results are written.
func (e *Explorer) ApplyCycle(res scheduler.CycleResult) {
	now := res.FinishedAt
	if now.IsZero() {
		now = time.Now()
	}

	e.mu.Lock()
	e.status.Transactions = resourceStatus(res.Sync.Err, now)

	if res.StatsErr == nil {
		e.stats = res.Stats
	}
	e.status.Stats = resourceStatus(res.StatsErr, now)

	// a wallet disconnected or replaced mid-cycle keeps its own state
	if res.Wallet != nil && e.wallet != nil && e.wallet.Address == res.Wallet.Address {
		e.applyWallet(res.Wallet, now)
	}
	e.status.LastRefresh = now

	summary := Summary{
		Reason:          res.Reason,
		At:              now,
		Added:           res.Sync.Added,
		Total:           e.store.Len(),
		TotalPages:      projection.TotalPages(e.store.Len(), e.cfg.PageSize),
		Stats:           e.stats,
		WalletConnected: e.wallet != nil,
		Status:          e.status,
	}
	e.mu.Unlock()

	health.UpdateResource(ResourceTransactions, res.Sync.Err)
	health.UpdateResource(ResourceStats, res.StatsErr)
	if res.Wallet != nil {
		health.UpdateResource(ResourceWallet, walletErr(res.Wallet))
	}
	if res.Sync.Err == nil {
		health.SetReady(true)
	}

	e.notify(summary)
}

// applyWallet must be called with e.mu held and e.wallet set.
func (e *Explorer) applyWallet(res *scheduler.WalletResult, now time.Time) {
	balance := res.Balance
	if res.BalanceErr != nil || balance == "" {
		balance = normalize.ZeroBalance
	}
	e.wallet.Balance = balance
	e.wallet.Incoming = nonNil(res.Activity.Incoming)
	e.wallet.Outgoing = nonNil(res.Activity.Outgoing)
	e.status.Wallet = resourceStatus(walletErr(res), now)
}

func (e *Explorer) notify(s Summary) {
	e.listenersMu.Lock()
	listeners := make([]func(Summary), len(e.listeners))
	copy(listeners, e.listeners)
	e.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// walletErr is nil while either activity direction succeeded; partial
// failures only leave the failed side empty.
func walletErr(res *scheduler.WalletResult) error {
	if res.Activity.IncomingErr != nil && res.Activity.OutgoingErr != nil {
		return errors.Join(res.Activity.IncomingErr, res.Activity.OutgoingErr)
	}
	return nil
}

func resourceStatus(err error, now time.Time) ResourceStatus {
	if err != nil {
		return ResourceStatus{OK: false, Error: err.Error(), UpdatedAt: now}
	}
	return ResourceStatus{OK: true, UpdatedAt: now}
}

func copySession(s *models.WalletSession) models.WalletSession {
	out := *s
	out.Incoming = append([]models.TransactionRecord{}, s.Incoming...)
	out.Outgoing = append([]models.TransactionRecord{}, s.Outgoing...)
	return out
}

func nonNil(records []models.TransactionRecord) []models.TransactionRecord {
	if records == nil {
		return []models.TransactionRecord{}
	}
	return records
}
