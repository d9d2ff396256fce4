// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/debounce"
	"github.com/danielhkuo/coinpoll/ledger"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/remote"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/tracker"
)

// Result describes what one reconciliation did.
type Result string

// Reconciliation results
const (
	Committed       Result = "committed"
	SkippedInFlight Result = "skipped_in_flight"
	SkippedCooldown Result = "skipped_cooldown"
	DiscardedStale  Result = "discarded_stale"
	Failed          Result = "failed"
)

// Tables whose realtime changes trigger a reconciliation
var WatchedTables = []string{models.TablePolls, models.TableVotes, models.TableComments}

type Config struct {
	Interval  time.Duration // periodic safety-net reconciliation
	Cooldown  time.Duration // quiet period after a local write
	Debounce  time.Duration // realtime burst coalescing window
	ActiveTTL time.Duration // lifetime of a recently-active marker
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		Interval:  30 * time.Second,
		Cooldown:  10 * time.Second,
		Debounce:  500 * time.Millisecond,
		ActiveTTL: 5 * time.Second,
	}
}

// Scheduler keeps the cache eventually consistent with the remote store
// without clobbering newer local writes.
type Scheduler struct {
	cache   *cache.Cache
	tracker *tracker.Tracker
	store   remote.Store
	ledger  ledger.Adapter
	session *session.Wallet
	cfg     Config
	now     func() time.Time
	log     *slog.Logger

	inFlight atomic.Bool
	rerun    atomic.Bool // mandatory request made while a fetch was in flight

	activeMu sync.Mutex
	active   map[string]time.Time // poll id -> marker expiry

	cancel    context.CancelFunc
	stops     []func()
	debouncer *debounce.Debouncer
	wg        sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLedger(l ledger.Adapter) Option {
	return func(s *Scheduler) { s.ledger = l }
}

func WithSession(w *session.Wallet) Option {
	return func(s *Scheduler) { s.session = w }
}

// WithClock replaces time.Now for recently-active markers.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a scheduler over c. Zero durations in cfg take defaults.
func New(c *cache.Cache, store remote.Store, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.ActiveTTL <= 0 {
		cfg.ActiveTTL = def.ActiveTTL
	}

	s := &Scheduler{
		cache:   c,
		tracker: c.Tracker(),
		store:   store,
		ledger:  ledger.Null{},
		session: session.New(),
		cfg:     cfg,
		now:     time.Now,
		log:     slog.Default(),
		active:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the mandatory startup reconciliation, then starts the ticker,
// the realtime subscription, and the session listener. The scheduler runs
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	result := s.Reconcile(ctx, true)
	s.log.Info("startup reconciliation", "result", result)

	s.debouncer = debounce.New(s.cfg.Debounce, func() {
		if r := s.Reconcile(ctx, false); r != Committed {
			s.log.Debug("realtime reconciliation", "result", r)
		}
	})

	unsubscribe, err := s.store.Subscribe(WatchedTables, s.onChange)
	if err != nil {
		cancel()
		s.debouncer.Stop()
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	s.stops = append(s.stops, unsubscribe)

	s.stops = append(s.stops, s.session.OnChange(func(wallet string) {
		result := s.Reconcile(ctx, true)
		s.log.Info("session reconciliation", "wallet", wallet, "result", result)
	}))

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r := s.Reconcile(ctx, false); r != Committed {
				s.log.Debug("periodic reconciliation", "result", r)
			}
		}
	}
}

// Stop cancels background work and waits for the ticker loop to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	for _, stop := range s.stops {
		stop()
	}
	s.stops = nil
	s.debouncer.Stop()
	s.wg.Wait()
}

func (s *Scheduler) onChange(change remote.Change) {
	if change.Table == models.TableVotes && change.ID != "" {
		s.markActive(change.ID)
	}
	s.debouncer.Trigger()
}

func (s *Scheduler) markActive(pollID string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.active[pollID] = s.now().Add(s.cfg.ActiveTTL)
}

// RecentlyActive reports whether a vote on pollID arrived over the
// realtime feed within the last ActiveTTL. It is a display hint only.
func (s *Scheduler) RecentlyActive(pollID string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	expiry, ok := s.active[pollID]
	if !ok {
		return false
	}
	if !s.now().Before(expiry) {
		delete(s.active, pollID)
		return false
	}
	return true
}

// Reconcile fetches the authoritative snapshot and commits it unless a
// local mutation happened while the fetch was in flight. A non-mandatory
// call is skipped during the cooldown after a local write. Failures are
// logged and leave the cache untouched.
//
// A mandatory call that finds a fetch in flight returns SkippedInFlight and
// leaves a request behind; the running call repeats itself as mandatory
// before it returns, so the new session's votes are fetched.
func (s *Scheduler) Reconcile(ctx context.Context, mandatory bool) Result {
	if !s.inFlight.CompareAndSwap(false, true) {
		if mandatory {
			s.rerun.Store(true)
		}
		return SkippedInFlight
	}

	result := s.reconcile(ctx, mandatory)
	for {
		for s.rerun.Swap(false) {
			result = s.reconcile(ctx, true)
		}
		s.inFlight.Store(false)
		// A request may have landed between the last check and the release.
		if !s.rerun.Load() || !s.inFlight.CompareAndSwap(false, true) {
			return result
		}
	}
}

func (s *Scheduler) reconcile(ctx context.Context, mandatory bool) Result {
	if !mandatory && s.tracker.SinceLastMutation() < s.cfg.Cooldown {
		return SkippedCooldown
	}

	gen := s.tracker.Generation()
	snap, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("reconciliation failed", "error", err)
		return Failed
	}

	if !s.cache.CommitIf(gen, snap) {
		s.log.Debug("discarding stale snapshot", "generation", gen)
		return DiscardedStale
	}
	s.tracker.Prune()
	return Committed
}

func (s *Scheduler) fetch(ctx context.Context) (cache.Snapshot, error) {
	var snap cache.Snapshot

	polls, err := s.store.FetchPolls(ctx)
	if err != nil {
		return snap, fmt.Errorf("fetch polls: %w", err)
	}
	users, err := s.store.FetchUsers(ctx)
	if err != nil {
		return snap, fmt.Errorf("fetch users: %w", err)
	}

	for _, p := range polls {
		if s.tracker.IsTombstoned(p.ID) {
			continue
		}
		snap.Polls = append(snap.Polls, p)
	}
	snap.Users = users

	voter := s.session.Current()
	if voter == "" {
		return snap, nil
	}

	votes, err := s.store.FetchVotes(ctx, remote.VoteFilter{Voter: voter})
	if err != nil {
		return snap, fmt.Errorf("fetch votes for %s: %w", voter, err)
	}
	snap.Voter = voter
	for _, v := range votes {
		if !s.tracker.IsTombstoned(v.PollID) {
			snap.Votes = append(snap.Votes, v)
		}
	}

	if s.ledger.Active() {
		balance, err := s.ledger.Balance(ctx, voter)
		if err != nil {
			return snap, fmt.Errorf("ledger balance: %w", err)
		}
		snap.Users = withBalance(snap.Users, voter, balance)
	}
	return snap, nil
}

// withBalance overrides wallet's balance, adding the account if the store
// has not seen it yet.
func withBalance(users []models.UserAccount, wallet string, balance int64) []models.UserAccount {
	for i := range users {
		if users[i].Wallet == wallet {
			users[i].Balance = balance
			return users
		}
	}
	return append(users, models.UserAccount{Wallet: wallet, Balance: balance})
}
