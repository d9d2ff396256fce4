// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"reflect"
	"testing"
	"time"
)

func samplePoll() Poll {
	return Poll{
		ID:                "poll-1",
		Seq:               7,
		Creator:           "wallet-creator",
		Title:             "Who wins the final?",
		Description:       "Best of five",
		Category:          "sports",
		ImageURL:          "https://img.example/final.png",
		Options:           []string{"Red", "Blue", "Draw"},
		VoteCounts:        []int64{3, 5, 0},
		UnitPrice:         10_000_000,
		EndTime:           time.Date(2026, 11, 1, 12, 0, 0, 123456789, time.UTC),
		TotalPool:         178_000_000,
		CreatorInvestment: 100_000_000,
		PlatformFee:       1_000_000,
		CreatorReward:     1_000_000,
		Status:            StatusSettled,
		WinningOption:     1,
		TotalVoters:       2,
		CreatedAt:         time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestPollRowRoundTrip(t *testing.T) {
	p := samplePoll()

	got, err := PollFromRow(PollToRow(p))
	if err != nil {
		t.Fatalf("PollFromRow() error = %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, p)
	}

	// Mutating the row must not alias the poll's slices
	row := PollToRow(p)
	row["vote_counts"].([]int64)[0] = 99
	if p.VoteCounts[0] != 3 {
		t.Error("PollToRow aliased VoteCounts")
	}
}

func TestVoteAndUserRowRoundTrip(t *testing.T) {
	v := Vote{
		PollID:         "poll-1",
		Voter:          "wallet-a",
		VotesPerOption: []int64{0, 3, 1},
		TotalStaked:    40_000_000,
		Claimed:        true,
		VotedAt:        time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC),
	}
	gotVote, err := VoteFromRow(VoteToRow(v))
	if err != nil {
		t.Fatalf("VoteFromRow() error = %v", err)
	}
	if !reflect.DeepEqual(gotVote, v) {
		t.Errorf("vote round trip mismatch: got %+v want %+v", gotVote, v)
	}

	u := UserAccount{
		Wallet:          "wallet-a",
		Balance:         5_000_000_000,
		TotalVotesCast:  12,
		TotalPollsVoted: 3,
		TotalPollsWon:   1,
		TotalSpent:      120_000_000,
		TotalWinnings:   55_500_000,
		CreatorEarnings: 1_000_000,
		PollsCreated:    2,
		Weekly:          WindowStats{VotesCast: 4, PollsVoted: 1, Spent: 40_000_000},
		Monthly:         WindowStats{VotesCast: 12, PollsVoted: 3, PollsWon: 1, Spent: 120_000_000, Winnings: 55_500_000},
		WeeklyResetAt:   time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC),
		MonthlyResetAt:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	gotUser, err := UserFromRow(UserToRow(u))
	if err != nil {
		t.Fatalf("UserFromRow() error = %v", err)
	}
	if !reflect.DeepEqual(gotUser, u) {
		t.Errorf("user round trip mismatch: got %+v want %+v", gotUser, u)
	}
}

func TestPollFromRow_Coercion(t *testing.T) {
	row := Row{
		"id":                  "poll-2",
		"seq":                 "12",
		"options":             `["Yes","No"]`,
		"vote_counts":         []byte(`[4, "6"]`),
		"unit_price_lamports": "10000000",
		"total_pool_lamports": float64(98_000_000),
		"winning_option":      nil,
		"end_time":            "2026-11-01T12:00:00Z",
		"claimed":             "true",
	}

	p, err := PollFromRow(row)
	if err != nil {
		t.Fatalf("PollFromRow() error = %v", err)
	}

	if p.Seq != 12 {
		t.Errorf("Seq = %d, want 12", p.Seq)
	}
	if !reflect.DeepEqual(p.Options, []string{"Yes", "No"}) {
		t.Errorf("Options = %v", p.Options)
	}
	if !reflect.DeepEqual(p.VoteCounts, []int64{4, 6}) {
		t.Errorf("VoteCounts = %v", p.VoteCounts)
	}
	if p.UnitPrice != 10_000_000 || p.TotalPool != 98_000_000 {
		t.Errorf("amounts not coerced: price=%d pool=%d", p.UnitPrice, p.TotalPool)
	}
	if p.WinningOption != NoWinner {
		t.Errorf("WinningOption = %d, want NoWinner", p.WinningOption)
	}
	if p.Status != StatusActive {
		t.Errorf("Status = %q, want default active", p.Status)
	}
	// Missing optional fields default to empty values, never nil
	if p.Description != "" || p.Category != "" {
		t.Error("missing strings should default to empty")
	}
	if !p.CreatedAt.IsZero() {
		t.Error("missing created_at should be zero time")
	}
}

func TestPollFromRow_MissingCountsArePadded(t *testing.T) {
	p, err := PollFromRow(Row{"id": "p", "options": []string{"A", "B", "C"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.VoteCounts) != 3 {
		t.Errorf("VoteCounts length = %d, want 3", len(p.VoteCounts))
	}
}

func TestPollFromRow_BadValue(t *testing.T) {
	_, err := PollFromRow(Row{"id": "p", "seq": "twelve"})
	if err == nil {
		t.Error("expected error for non-numeric seq")
	}
}

func TestRefreshWindows(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		weeklyReset  time.Time
		monthlyReset time.Time
		wantWeekly   int64
		wantMonthly  int64
		wantChanged  bool
	}{
		{"both fresh", now.Add(-24 * time.Hour), now.Add(-24 * time.Hour), 5, 9, false},
		{"weekly expired", now.Add(-8 * 24 * time.Hour), now.Add(-8 * 24 * time.Hour), 0, 9, true},
		{"both expired", now.Add(-31 * 24 * time.Hour), now.Add(-31 * 24 * time.Hour), 0, 0, true},
		{"never reset", time.Time{}, time.Time{}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := UserAccount{
				Weekly:         WindowStats{VotesCast: 5},
				Monthly:        WindowStats{VotesCast: 9},
				WeeklyResetAt:  tt.weeklyReset,
				MonthlyResetAt: tt.monthlyReset,
			}
			changed := u.RefreshWindows(now)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if u.Weekly.VotesCast != tt.wantWeekly {
				t.Errorf("weekly = %d, want %d", u.Weekly.VotesCast, tt.wantWeekly)
			}
			if u.Monthly.VotesCast != tt.wantMonthly {
				t.Errorf("monthly = %d, want %d", u.Monthly.VotesCast, tt.wantMonthly)
			}
		})
	}
}

func TestFormatSOL(t *testing.T) {
	tests := []struct {
		lamports int64
		want     string
	}{
		{1_000_000_000, "1"},
		{30_000_000, "0.03"},
		{55_500_000, "0.0555"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := FormatSOL(tt.lamports); got != tt.want {
			t.Errorf("FormatSOL(%d) = %q, want %q", tt.lamports, got, tt.want)
		}
	}
}
