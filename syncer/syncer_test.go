// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/ledger"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/remote"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/testutil"
	"github.com/danielhkuo/coinpoll/tracker"
)

type fixture struct {
	clock   *testutil.Clock
	tracker *tracker.Tracker
	cache   *cache.Cache
	store   *testutil.Store
	session *session.Wallet
	sched   *Scheduler
}

func setup(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:   testutil.NewClock(),
		store:   testutil.NewStore(),
		session: session.New(),
	}
	f.tracker = tracker.New(tracker.WithClock(f.clock.Now))
	f.cache = cache.New(f.tracker)
	opts = append([]Option{
		WithClock(f.clock.Now),
		WithSession(f.session),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	f.sched = New(f.cache, f.store, cfg, opts...)
	return f
}

// mutate performs a local optimistic write that bumps the generation.
func (f *fixture) mutate(t *testing.T, p models.Poll) {
	t.Helper()
	cmd, err := f.cache.Execute(func(v cache.View) (*cache.Command, error) {
		cmd := cache.NewCommand(v, "test")
		cmd.PutPoll(p)
		return cmd, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	f.cache.Confirm(cmd)
}

func TestReconcileCommits(t *testing.T) {
	f := setup(t, Config{})
	f.store.SeedPoll(testutil.TestPoll("p1", "creator"))
	f.store.SeedUser(testutil.TestUser("alice", 5_000_000_000))

	if got := f.sched.Reconcile(context.Background(), true); got != Committed {
		t.Fatalf("Reconcile() = %s, want %s", got, Committed)
	}
	if _, ok := f.cache.Poll("p1"); !ok {
		t.Error("poll p1 not committed")
	}
	if u, ok := f.cache.User("alice"); !ok || u.Balance != 5_000_000_000 {
		t.Errorf("user alice = %+v, %v", u, ok)
	}
}

// A local write that lands while a fetch is in flight must survive it.
func TestReconcileDiscardsStaleSnapshot(t *testing.T) {
	f := setup(t, Config{})
	remotePoll := testutil.TestPoll("p1", "creator")
	f.store.SeedPoll(remotePoll)

	local := remotePoll.Clone()
	local.Title = "edited locally"
	f.store.BeforeFetchReturn = func() { f.mutate(t, local) }

	if got := f.sched.Reconcile(context.Background(), true); got != DiscardedStale {
		t.Fatalf("Reconcile() = %s, want %s", got, DiscardedStale)
	}
	p, _ := f.cache.Poll("p1")
	if p.Title != "edited locally" {
		t.Errorf("stale fetch overwrote local write: title = %q", p.Title)
	}

	// Once nothing interleaves, the next fetch commits.
	f.store.BeforeFetchReturn = nil
	if got := f.sched.Reconcile(context.Background(), true); got != Committed {
		t.Errorf("second Reconcile() = %s, want %s", got, Committed)
	}
}

func TestReconcileCooldown(t *testing.T) {
	f := setup(t, Config{Cooldown: 10 * time.Second})
	ctx := context.Background()
	f.mutate(t, testutil.TestPoll("local", "creator"))

	tests := []struct {
		name      string
		advance   time.Duration
		mandatory bool
		want      Result
	}{
		{"routine within cooldown", 5 * time.Second, false, SkippedCooldown},
		{"mandatory within cooldown", 0, true, Committed},
		{"routine after cooldown", 5 * time.Second, false, Committed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Advance(tt.advance)
			if got := f.sched.Reconcile(ctx, tt.mandatory); got != tt.want {
				t.Errorf("Reconcile(%v) = %s, want %s", tt.mandatory, got, tt.want)
			}
		})
	}
}

func TestReconcileSkipsWhileInFlight(t *testing.T) {
	f := setup(t, Config{})
	ctx := context.Background()

	var nested Result
	f.store.BeforeFetchReturn = func() {
		f.store.BeforeFetchReturn = nil
		nested = f.sched.Reconcile(ctx, true)
	}
	if got := f.sched.Reconcile(ctx, false); got != Committed {
		t.Fatalf("outer Reconcile() = %s, want %s", got, Committed)
	}
	if nested != SkippedInFlight {
		t.Errorf("nested Reconcile() = %s, want %s", nested, SkippedInFlight)
	}
	// The skipped mandatory request runs once the outer fetch returns.
	if n := f.store.Calls(testutil.OpFetchPolls); n != 2 {
		t.Errorf("FetchPolls called %d times, want 2", n)
	}
}

func TestReconcileRoutineSkipWhileInFlightIsDropped(t *testing.T) {
	f := setup(t, Config{})
	ctx := context.Background()

	var nested Result
	f.store.BeforeFetchReturn = func() {
		f.store.BeforeFetchReturn = nil
		nested = f.sched.Reconcile(ctx, false)
	}
	f.sched.Reconcile(ctx, true)
	if nested != SkippedInFlight {
		t.Errorf("nested Reconcile() = %s, want %s", nested, SkippedInFlight)
	}
	if n := f.store.Calls(testutil.OpFetchPolls); n != 1 {
		t.Errorf("FetchPolls called %d times, want 1", n)
	}
}

// A session switch during a fetch for the previous wallet must still load
// the new wallet's votes.
func TestReconcileSessionChangeDuringFetch(t *testing.T) {
	f := setup(t, Config{})
	ctx := context.Background()
	f.store.SeedPoll(testutil.TestPoll("p1", "creator"))
	f.store.SeedVote(models.Vote{PollID: "p1", Voter: "alice", VotesPerOption: []int64{3, 0}, TotalStaked: 30_000_000})
	f.store.SeedVote(models.Vote{PollID: "p1", Voter: "bob", VotesPerOption: []int64{2, 0}, TotalStaked: 20_000_000})
	f.session.Connect("alice")

	var switched Result
	f.store.OnCall = func(op string) {
		if op != testutil.OpFetchVotes || f.session.Current() != "alice" {
			return
		}
		f.session.Connect("bob")
		switched = f.sched.Reconcile(ctx, true)
	}

	if got := f.sched.Reconcile(ctx, true); got != Committed {
		t.Fatalf("Reconcile() = %s, want %s", got, Committed)
	}
	if switched != SkippedInFlight {
		t.Errorf("session Reconcile() = %s, want %s", switched, SkippedInFlight)
	}
	v, ok := f.cache.Vote("p1", "bob")
	if !ok || v.Coins() != 2 {
		t.Errorf("bob's vote = %+v, %v; want 2 coins", v, ok)
	}
}

func TestReconcileFiltersTombstones(t *testing.T) {
	f := setup(t, Config{})
	ctx := context.Background()
	f.store.SeedPoll(testutil.TestPoll("gone", "creator"))
	f.store.SeedVote(models.Vote{PollID: "gone", Voter: "alice", VotesPerOption: []int64{1, 0}})
	f.session.Connect("alice")
	f.tracker.Tombstone("gone")

	f.sched.Reconcile(ctx, true)
	if _, ok := f.cache.Poll("gone"); ok {
		t.Error("tombstoned poll resurrected by reconciliation")
	}
	if _, ok := f.cache.Vote("gone", "alice"); ok {
		t.Error("vote on tombstoned poll resurrected")
	}

	f.clock.Advance(tracker.DefaultTombstoneTTL)
	f.sched.Reconcile(ctx, true)
	if _, ok := f.cache.Poll("gone"); !ok {
		t.Error("poll should reappear after its tombstone expired")
	}
	if _, ok := f.cache.Vote("gone", "alice"); !ok {
		t.Error("vote should reappear after its tombstone expired")
	}
}

func TestReconcileFailureKeepsCache(t *testing.T) {
	f := setup(t, Config{})
	ctx := context.Background()
	f.store.SeedPoll(testutil.TestPoll("p1", "creator"))
	f.sched.Reconcile(ctx, true)

	for _, op := range []string{testutil.OpFetchPolls, testutil.OpFetchUsers} {
		f.store.Fail(op, errors.New("connection refused"))
		if got := f.sched.Reconcile(ctx, true); got != Failed {
			t.Errorf("Reconcile() with %s failing = %s, want %s", op, got, Failed)
		}
		if _, ok := f.cache.Poll("p1"); !ok {
			t.Errorf("failed reconciliation (%s) cleared the cache", op)
		}
		f.store.Fail(op, nil)
	}
}

func TestReconcileSessionVotes(t *testing.T) {
	f := setup(t, Config{})
	ctx := context.Background()
	f.store.SeedPoll(testutil.TestPoll("p1", "creator"))
	f.store.SeedVote(models.Vote{PollID: "p1", Voter: "alice", VotesPerOption: []int64{2, 0}, TotalStaked: 20_000_000})
	f.store.SeedVote(models.Vote{PollID: "p1", Voter: "bob", VotesPerOption: []int64{0, 1}, TotalStaked: 10_000_000})

	f.sched.Reconcile(ctx, true)
	if _, ok := f.cache.Vote("p1", "alice"); ok {
		t.Error("votes fetched without a session")
	}

	f.session.Connect("alice")
	f.sched.Reconcile(ctx, true)
	v, ok := f.cache.Vote("p1", "alice")
	if !ok || v.TotalStaked != 20_000_000 {
		t.Errorf("session vote = %+v, %v", v, ok)
	}
	if _, ok := f.cache.Vote("p1", "bob"); ok {
		t.Error("other voters' records should not be fetched")
	}
}

type fixedLedger struct {
	ledger.Null
	balance int64
}

func (fixedLedger) Active() bool { return true }

func (l fixedLedger) Balance(context.Context, string) (int64, error) { return l.balance, nil }

func TestReconcileLedgerBalance(t *testing.T) {
	f := setup(t, Config{}, WithLedger(fixedLedger{balance: 777}))
	f.store.SeedUser(testutil.TestUser("alice", 5_000_000_000))
	f.session.Connect("alice")

	f.sched.Reconcile(context.Background(), true)
	if u, _ := f.cache.User("alice"); u.Balance != 777 {
		t.Errorf("balance = %d, want ledger balance 777", u.Balance)
	}
	if u, _ := f.cache.User("alice"); u.WeeklyResetAt.IsZero() {
		t.Error("ledger balance should not drop the rest of the account")
	}
}

func waitForCalls(t *testing.T, s *testutil.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Calls(testutil.OpFetchPolls) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("FetchPolls called %d times, want %d", s.Calls(testutil.OpFetchPolls), want)
}

func TestStartRealtimeDebounce(t *testing.T) {
	f := setup(t, Config{Interval: time.Hour, Debounce: 20 * time.Millisecond, ActiveTTL: 5 * time.Second})
	ctx := context.Background()

	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.sched.Stop()
	waitForCalls(t, f.store, 1)

	for i := 0; i < 5; i++ {
		f.store.Feed.Publish(ctx, remote.Change{Table: models.TableVotes, Op: remote.OpInsert, ID: "p1"})
	}
	f.store.Feed.Publish(ctx, remote.Change{Table: models.TableUsers, Op: remote.OpUpdate, ID: "alice"})

	waitForCalls(t, f.store, 2)
	time.Sleep(60 * time.Millisecond)
	if n := f.store.Calls(testutil.OpFetchPolls); n != 2 {
		t.Errorf("burst produced %d fetches after startup, want 1", n-1)
	}

	if !f.sched.RecentlyActive("p1") {
		t.Error("vote event should mark p1 recently active")
	}
	if f.sched.RecentlyActive("p2") {
		t.Error("p2 saw no votes")
	}
	f.clock.Advance(5 * time.Second)
	if f.sched.RecentlyActive("p1") {
		t.Error("recently-active marker should expire")
	}
}

func TestStartSessionChange(t *testing.T) {
	f := setup(t, Config{Interval: time.Hour})
	f.store.SeedPoll(testutil.TestPoll("p1", "creator"))
	f.store.SeedVote(models.Vote{PollID: "p1", Voter: "alice", VotesPerOption: []int64{1, 0}})

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.sched.Stop()

	// Session changes reconcile even inside the cooldown window.
	f.mutate(t, testutil.TestPoll("local", "creator"))
	f.session.Connect("alice")

	if n := f.store.Calls(testutil.OpFetchPolls); n != 2 {
		t.Errorf("FetchPolls called %d times, want 2", n)
	}
	if _, ok := f.cache.Vote("p1", "alice"); !ok {
		t.Error("session votes not loaded after connect")
	}

	f.sched.Stop()
	f.session.Connect("bob")
	if n := f.store.Calls(testutil.OpFetchPolls); n != 2 {
		t.Errorf("listener still active after Stop: %d fetches", n)
	}
}
