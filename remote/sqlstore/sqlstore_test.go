// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/danielhkuo/coinpoll/db"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/realtime"
	"github.com/danielhkuo/coinpoll/remote"
)

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(db.DialectSQLite, ":memory:", opts...)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPoll(id string, seq int64) models.Poll {
	return models.Poll{
		ID:                id,
		Seq:               seq,
		Creator:           "creator",
		Title:             "Poll " + id,
		Options:           []string{"Yes", "No"},
		VoteCounts:        []int64{0, 0},
		UnitPrice:         10_000_000,
		EndTime:           time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		TotalPool:         98_000_000,
		CreatorInvestment: 100_000_000,
		PlatformFee:       1_000_000,
		CreatorReward:     1_000_000,
		Status:            models.StatusActive,
		WinningOption:     models.NoWinner,
		CreatedAt:         time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPollLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p := testPoll("p1", 1)
	if err := s.UpsertPoll(ctx, models.PollToRow(p)); err != nil {
		t.Fatalf("UpsertPoll() error = %v", err)
	}

	polls, err := s.FetchPolls(ctx)
	if err != nil {
		t.Fatalf("FetchPolls() error = %v", err)
	}
	if len(polls) != 1 {
		t.Fatalf("Expected 1 poll, got %d", len(polls))
	}
	if !reflect.DeepEqual(polls[0], p) {
		t.Errorf("stored poll mismatch:\n got  %+v\n want %+v", polls[0], p)
	}

	p.VoteCounts = []int64{3, 0}
	p.TotalPool += 30_000_000
	p.TotalVoters = 1
	fields := models.PollToRow(p).Pick("vote_counts", "total_pool_lamports", "total_voters")
	if err := s.UpdatePoll(ctx, "p1", fields); err != nil {
		t.Fatalf("UpdatePoll() error = %v", err)
	}

	polls, _ = s.FetchPolls(ctx)
	if !reflect.DeepEqual(polls[0], p) {
		t.Errorf("updated poll mismatch:\n got  %+v\n want %+v", polls[0], p)
	}

	if err := s.UpdatePoll(ctx, "missing", fields); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("UpdatePoll(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.UpdatePoll(ctx, "p1", models.Row{"bogus; DROP TABLE polls": 1}); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestVotesAndDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	s.UpsertPoll(ctx, models.PollToRow(testPoll("p1", 1)))
	s.UpsertPoll(ctx, models.PollToRow(testPoll("p2", 2)))

	votes := []models.Vote{
		{PollID: "p1", Voter: "alice", VotesPerOption: []int64{2, 0}, TotalStaked: 20_000_000},
		{PollID: "p1", Voter: "bob", VotesPerOption: []int64{0, 1}, TotalStaked: 10_000_000},
		{PollID: "p2", Voter: "alice", VotesPerOption: []int64{1, 1}, TotalStaked: 20_000_000},
	}
	for _, v := range votes {
		if err := s.UpsertVote(ctx, models.VoteToRow(v)); err != nil {
			t.Fatalf("UpsertVote() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter remote.VoteFilter
		want   int
	}{
		{"all", remote.VoteFilter{}, 3},
		{"by poll", remote.VoteFilter{PollID: "p1"}, 2},
		{"by voter", remote.VoteFilter{Voter: "alice"}, 2},
		{"by both", remote.VoteFilter{PollID: "p2", Voter: "alice"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FetchVotes(ctx, tt.filter)
			if err != nil {
				t.Fatalf("FetchVotes() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("FetchVotes() returned %d votes, want %d", len(got), tt.want)
			}
		})
	}

	if err := s.UpdateVote(ctx, "p1", "alice", models.Row{"claimed": true}); err != nil {
		t.Fatalf("UpdateVote() error = %v", err)
	}
	got, _ := s.FetchVotes(ctx, remote.VoteFilter{PollID: "p1", Voter: "alice"})
	if len(got) != 1 || !got[0].Claimed {
		t.Errorf("claimed flag not persisted: %+v", got)
	}

	if err := s.DeletePoll(ctx, "p1"); err != nil {
		t.Fatalf("DeletePoll() error = %v", err)
	}
	polls, _ := s.FetchPolls(ctx)
	if len(polls) != 1 || polls[0].ID != "p2" {
		t.Errorf("after delete polls = %v", polls)
	}
	remaining, _ := s.FetchVotes(ctx, remote.VoteFilter{PollID: "p1"})
	if len(remaining) != 0 {
		t.Errorf("votes of deleted poll should be removed, got %d", len(remaining))
	}
}

func TestUpdateUserCreatesAccount(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.UpdateUser(ctx, "alice", models.Row{"balance_lamports": int64(5_000_000_000)}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	u := models.UserAccount{
		Wallet:        "alice",
		Balance:       4_970_000_000,
		TotalSpent:    30_000_000,
		Weekly:        models.WindowStats{Spent: 30_000_000},
		WeeklyResetAt: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
	}
	if err := s.UpdateUser(ctx, "alice", models.UserToRow(u)); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	users, err := s.FetchUsers(ctx)
	if err != nil {
		t.Fatalf("FetchUsers() error = %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(users))
	}
	if !reflect.DeepEqual(users[0], u) {
		t.Errorf("user mismatch:\n got  %+v\n want %+v", users[0], u)
	}
}

func TestWritesPublishChanges(t *testing.T) {
	feed := realtime.NewLocal()
	s := setupStore(t, WithFeed(feed, true))
	ctx := context.Background()

	var changes []remote.Change
	unsub, err := s.Subscribe([]string{models.TablePolls, models.TableVotes}, func(c remote.Change) {
		changes = append(changes, c)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	s.UpsertPoll(ctx, models.PollToRow(testPoll("p1", 1)))
	s.UpsertVote(ctx, models.VoteToRow(models.Vote{PollID: "p1", Voter: "bob", VotesPerOption: []int64{1, 0}}))
	s.UpdateUser(ctx, "bob", models.Row{"balance_lamports": int64(1)})
	s.DeletePoll(ctx, "p1")

	want := []remote.Change{
		{Table: "polls", Op: remote.OpInsert, ID: "p1"},
		{Table: "votes", Op: remote.OpInsert, ID: "p1"},
		{Table: "polls", Op: remote.OpDelete, ID: "p1"},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("changes = %+v, want %+v", changes, want)
	}
}

func TestSubscribeWithoutFeed(t *testing.T) {
	s := setupStore(t)
	unsub, err := s.Subscribe(nil, func(remote.Change) {})
	if err != nil {
		t.Fatal(err)
	}
	unsub()
}
