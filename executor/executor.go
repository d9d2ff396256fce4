// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/errclass"
	"github.com/danielhkuo/coinpoll/ledger"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/notify"
	"github.com/danielhkuo/coinpoll/remote"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/tracker"
)

// Precondition failures. They are returned before anything changes.
var (
	ErrNoSession           = errors.New("no wallet connected")
	ErrNotFound            = errors.New("poll not found")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidPoll         = errors.New("invalid poll")
	ErrPollNotActive       = errors.New("poll is not active")
	ErrPollEnded           = errors.New("poll has ended")
	ErrHasVotes            = errors.New("poll already has votes")
	ErrOptionCount         = errors.New("option count cannot change")
	ErrInvalidOption       = errors.New("invalid option")
	ErrInvalidCoins        = errors.New("coin count must be positive")
	ErrCoinCap             = errors.New("coin cap exceeded")
	ErrCreatorVote         = errors.New("creator cannot vote on own poll")
)

// OpError is returned when persisting an applied operation failed. The
// local change has already been rolled back.
type OpError struct {
	Op   string
	Kind errclass.Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Message is the short reason shown to the user.
func (e *OpError) Message() string {
	return errclass.Message(e.Kind)
}

// DefaultMaxCoinsPerPoll caps one voter's coins on one poll.
const DefaultMaxCoinsPerPoll int64 = 100

// Executor runs user operations against the cache optimistically and
// persists them to the ledger and the remote store.
type Executor struct {
	cache    *cache.Cache
	tracker  *tracker.Tracker
	store    remote.Store
	session  *session.Wallet
	ledger   ledger.Adapter
	sink     notify.Sink
	retry    errclass.RetryPolicy
	maxCoins int64
	now      func() time.Time
	log      *slog.Logger

	// Operations run one at a time from apply to confirm or rollback, so a
	// rollback never restores over another operation's confirmed write.
	opMu sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

func WithLedger(l ledger.Adapter) Option {
	return func(e *Executor) { e.ledger = l }
}

func WithNotifier(s notify.Sink) Option {
	return func(e *Executor) { e.sink = s }
}

// WithRetry retries remote store writes that fail with a transient error.
func WithRetry(p errclass.RetryPolicy) Option {
	return func(e *Executor) { e.retry = p }
}

func WithMaxCoins(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxCoins = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// New creates an executor acting as the wallet connected to sess.
func New(c *cache.Cache, store remote.Store, sess *session.Wallet, opts ...Option) *Executor {
	e := &Executor{
		cache:    c,
		tracker:  c.Tracker(),
		store:    store,
		session:  sess,
		ledger:   ledger.Null{},
		sink:     notify.Discard{},
		retry:    errclass.RetryPolicy{Attempts: 1},
		maxCoins: DefaultMaxCoinsPerPoll,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxCoinsPerPoll returns the configured per-voter coin cap.
func (e *Executor) MaxCoinsPerPoll() int64 {
	return e.maxCoins
}

// operation describes one optimistic mutation. plan runs under the cache
// lock and may fill variables captured by the other closures.
type operation struct {
	name   string
	kind   ledger.Kind
	title  string
	pollID string

	plan    func(cache.View) (*cache.Command, error)
	deltas  func() map[string]int64
	persist func(ctx context.Context) error
	undo    func()
	done    func() (title, message string)
}

// run applies op, persists it, and rolls it back if persisting fails.
func (e *Executor) run(ctx context.Context, op operation) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	cmd, err := e.cache.Execute(op.plan)
	if err != nil {
		return err
	}

	e.emit(models.NotifySubmitting, op.title, "Submitting...", op.pollID)

	if err := e.settle(ctx, op); err != nil {
		e.cache.Rollback(cmd)
		if op.undo != nil {
			op.undo()
		}
		kind := errclass.Classify(err)
		e.log.Warn("operation rolled back",
			"op", op.name,
			"poll_id", op.pollID,
			"generation", cmd.Generation(),
			"kind", kind,
			"error", err,
		)
		e.emit(models.NotifyFailed, op.title+" failed", errclass.Message(kind), op.pollID)
		return &OpError{Op: op.name, Kind: kind, Err: err}
	}

	e.cache.Confirm(cmd)
	e.log.Info("operation confirmed", "op", op.name, "poll_id", op.pollID, "generation", cmd.Generation())
	title, message := op.title+" confirmed", ""
	if op.done != nil {
		title, message = op.done()
	}
	e.emit(models.NotifyConfirmed, title, message, op.pollID)
	return nil
}

// settle submits to the ledger first, then writes the remote store. When
// the store write fails after the ledger accepted, the ledger entry is
// reversed.
func (e *Executor) settle(ctx context.Context, op operation) error {
	var deltas map[string]int64
	if op.deltas != nil {
		deltas = op.deltas()
	}
	params := ledger.Params{PollID: op.pollID, Actor: e.session.Current(), Deltas: deltas}

	submitted := false
	if e.ledger.Active() {
		confirmation, err := e.ledger.Submit(ctx, op.kind, params)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		submitted = true
		e.log.Debug("ledger accepted", "op", op.name, "confirmation", confirmation)
	}

	err := e.retry.Do(ctx, op.persist)
	if err != nil && submitted {
		e.compensate(ctx, op.kind, params)
	}
	return err
}

func (e *Executor) compensate(ctx context.Context, kind ledger.Kind, params ledger.Params) {
	if len(params.Deltas) == 0 {
		return
	}
	reversed := make(map[string]int64, len(params.Deltas))
	for w, d := range params.Deltas {
		reversed[w] = -d
	}
	params.Deltas = reversed
	params.Memo = "reversal of " + string(kind)
	if _, err := e.ledger.Submit(ctx, kind, params); err != nil {
		e.log.Error("ledger reversal failed", "kind", kind, "poll_id", params.PollID, "error", err)
	}
}

func (e *Executor) emit(kind, title, message, pollID string) {
	e.sink.Emit(notify.New(kind, title, message, pollID))
}

func (e *Executor) caller() (string, error) {
	wallet := e.session.Current()
	if wallet == "" {
		return "", ErrNoSession
	}
	return wallet, nil
}

// loadAccounts fetches the accounts of wallets the cache has not seen, so
// that writing them back never replaces a remote balance with zero.
func (e *Executor) loadAccounts(ctx context.Context, wallets ...string) (map[string]models.UserAccount, error) {
	missing := make(map[string]bool)
	for _, w := range wallets {
		if _, ok := e.cache.User(w); !ok {
			missing[w] = true
		}
	}
	loaded := make(map[string]models.UserAccount, len(missing))
	if len(missing) == 0 {
		return loaded, nil
	}

	users, err := e.store.FetchUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	for _, u := range users {
		if missing[u.Wallet] {
			loaded[u.Wallet] = u
		}
	}
	return loaded, nil
}

// account returns wallet's account from the view, then from loaded, and
// otherwise a new empty account. Expired statistics windows are reset.
func account(v cache.View, loaded map[string]models.UserAccount, wallet string, now time.Time) models.UserAccount {
	u, ok := v.User(wallet)
	if !ok {
		u, ok = loaded[wallet]
	}
	if !ok {
		u = models.UserAccount{Wallet: wallet}
	}
	u.RefreshWindows(now)
	return u
}

func (e *Executor) writeUsers(ctx context.Context, users []models.UserAccount) error {
	for _, u := range users {
		if err := e.store.UpdateUser(ctx, u.Wallet, models.UserToRow(u)); err != nil {
			return fmt.Errorf("update user %s: %w", u.Wallet, err)
		}
	}
	return nil
}
