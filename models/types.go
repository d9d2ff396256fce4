// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PollStatus is the lifecycle state of a poll.
type PollStatus string

// Poll status constants
const (
	StatusActive  PollStatus = "active"
	StatusSettled PollStatus = "settled"
)

// NoWinner marks a poll without a winning option. It is distinct from
// every valid option index.
const NoWinner = -1

// LamportsPerSOL converts ledger minor units to whole SOL.
const LamportsPerSOL int64 = 1_000_000_000

// Rolling window lengths for account statistics
const (
	WeeklyWindow  = 7 * 24 * time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// Table names used by the remote store and change events
const (
	TablePolls    = "polls"
	TableVotes    = "votes"
	TableUsers    = "users"
	TableComments = "comments"
)

// Domain types

type Poll struct {
	ID                string     `json:"id"`
	Seq               int64      `json:"seq"`
	Creator           string     `json:"creator"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	ImageURL          string     `json:"image_url"`
	Options           []string   `json:"options"`
	VoteCounts        []int64    `json:"vote_counts"`
	UnitPrice         int64      `json:"unit_price_lamports"`
	EndTime           time.Time  `json:"end_time"`
	TotalPool         int64      `json:"total_pool_lamports"`
	CreatorInvestment int64      `json:"creator_investment_lamports"`
	PlatformFee       int64      `json:"platform_fee_lamports"`
	CreatorReward     int64      `json:"creator_reward_lamports"`
	Status            PollStatus `json:"status"`
	WinningOption     int        `json:"winning_option"`
	TotalVoters       int64      `json:"total_voters"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TotalVotes sums the coins cast across every option.
func (p Poll) TotalVotes() int64 {
	var total int64
	for _, c := range p.VoteCounts {
		total += c
	}
	return total
}

// Ended reports whether the poll's end time has passed.
func (p Poll) Ended(now time.Time) bool {
	return !now.Before(p.EndTime)
}

// HasWinner reports whether the poll is settled with a valid winning index.
func (p Poll) HasWinner() bool {
	return p.Status == StatusSettled && p.WinningOption >= 0 && p.WinningOption < len(p.Options)
}

// Clone returns a deep copy so callers can mutate slices freely.
func (p Poll) Clone() Poll {
	p.Options = append([]string(nil), p.Options...)
	p.VoteCounts = append([]int64(nil), p.VoteCounts...)
	return p
}

type Vote struct {
	PollID         string    `json:"poll_id"`
	Voter          string    `json:"voter"`
	VotesPerOption []int64   `json:"votes_per_option"`
	TotalStaked    int64     `json:"total_staked_lamports"`
	Claimed        bool      `json:"claimed"`
	VotedAt        time.Time `json:"voted_at"`
}

// VoteKey identifies a vote: one record per (poll, voter).
type VoteKey struct {
	PollID string
	Voter  string
}

func (v Vote) Key() VoteKey {
	return VoteKey{PollID: v.PollID, Voter: v.Voter}
}

// Coins returns the voter's total coins across every option.
func (v Vote) Coins() int64 {
	var total int64
	for _, c := range v.VotesPerOption {
		total += c
	}
	return total
}

// CoinsOn returns the coins held on one option, or zero when out of range.
func (v Vote) CoinsOn(option int) int64 {
	if option < 0 || option >= len(v.VotesPerOption) {
		return 0
	}
	return v.VotesPerOption[option]
}

func (v Vote) Clone() Vote {
	v.VotesPerOption = append([]int64(nil), v.VotesPerOption...)
	return v
}

// WindowStats holds counters for a rolling statistics window.
type WindowStats struct {
	VotesCast  int64 `json:"votes_cast"`
	PollsVoted int64 `json:"polls_voted"`
	PollsWon   int64 `json:"polls_won"`
	Spent      int64 `json:"spent_lamports"`
	Winnings   int64 `json:"winnings_lamports"`
}

type UserAccount struct {
	Wallet          string      `json:"wallet"`
	Balance         int64       `json:"balance_lamports"`
	TotalVotesCast  int64       `json:"total_votes_cast"`
	TotalPollsVoted int64       `json:"total_polls_voted"`
	TotalPollsWon   int64       `json:"total_polls_won"`
	TotalSpent      int64       `json:"total_spent_lamports"`
	TotalWinnings   int64       `json:"total_winnings_lamports"`
	CreatorEarnings int64       `json:"creator_earnings_lamports"`
	PollsCreated    int64       `json:"polls_created"`
	Weekly          WindowStats `json:"weekly"`
	Monthly         WindowStats `json:"monthly"`
	WeeklyResetAt   time.Time   `json:"weekly_reset_at"`
	MonthlyResetAt  time.Time   `json:"monthly_reset_at"`
}

// RefreshWindows zeroes any rolling window whose length has elapsed since
// its reset time and restarts it at now. Returns true if anything changed.
// Windows are only refreshed on access; nothing runs this eagerly.
func (u *UserAccount) RefreshWindows(now time.Time) bool {
	changed := false
	if now.Sub(u.WeeklyResetAt) > WeeklyWindow {
		u.Weekly = WindowStats{}
		u.WeeklyResetAt = now
		changed = true
	}
	if now.Sub(u.MonthlyResetAt) > MonthlyWindow {
		u.Monthly = WindowStats{}
		u.MonthlyResetAt = now
		changed = true
	}
	return changed
}

// RecordVote applies a cast to lifetime and window counters.
// firstOnPoll increments the polls-voted counters.
func (u *UserAccount) RecordVote(coins, cost int64, firstOnPoll bool) {
	u.TotalVotesCast += coins
	u.TotalSpent += cost
	u.Weekly.VotesCast += coins
	u.Weekly.Spent += cost
	u.Monthly.VotesCast += coins
	u.Monthly.Spent += cost
	if firstOnPoll {
		u.TotalPollsVoted++
		u.Weekly.PollsVoted++
		u.Monthly.PollsVoted++
	}
}

// RecordWin applies a claimed reward to lifetime and window counters.
func (u *UserAccount) RecordWin(amount int64) {
	u.TotalPollsWon++
	u.TotalWinnings += amount
	u.Weekly.PollsWon++
	u.Weekly.Winnings += amount
	u.Monthly.PollsWon++
	u.Monthly.Winnings += amount
}

// RecordCreatorReward credits a settlement reward to the creator's earnings.
func (u *UserAccount) RecordCreatorReward(amount int64) {
	u.CreatorEarnings += amount
	u.TotalWinnings += amount
	u.Weekly.Winnings += amount
	u.Monthly.Winnings += amount
}

// Refunds maps wallet to refunded lamports for a deleted poll.
type Refunds map[string]int64

// Total sums every refund.
func (r Refunds) Total() int64 {
	var total int64
	for _, amount := range r {
		total += amount
	}
	return total
}

// Notification kinds
const (
	NotifySubmitting = "submitting"
	NotifyConfirmed  = "confirmed"
	NotifyFailed     = "failed"
	NotifySettled    = "poll_settled"
	NotifyWon        = "poll_won"
	NotifyClaimed    = "reward_claimed"
)

type Notification struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	RelatedPollID string    `json:"related_poll_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// FormatSOL renders lamports as a decimal SOL amount, e.g. "0.03".
func FormatSOL(lamports int64) string {
	return decimal.New(lamports, -9).String()
}

// Request types

// PollDraft is the creator's input for a new poll.
type PollDraft struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	Options     []string  `json:"options"`
	UnitPrice   int64     `json:"unit_price_lamports"`
	EndTime     time.Time `json:"end_time"`
	Investment  int64     `json:"investment_lamports"`
}

// PollUpdates is a partial edit. Nil fields are left unchanged.
type PollUpdates struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *string    `json:"category,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Options     []string   `json:"options,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type CastVoteRequest struct {
	Option int   `json:"option"`
	Coins  int64 `json:"coins"`
}

type SettlePollRequest struct {
	Winner *int `json:"winner,omitempty"`
}

type ConnectRequest struct {
	Wallet string `json:"wallet"`
}

// Response types

type DeletePollResponse struct {
	PollID  string  `json:"poll_id"`
	Refunds Refunds `json:"refunds"`
}

type ClaimRewardResponse struct {
	PollID string `json:"poll_id"`
	Reward int64  `json:"reward_lamports"`
}

type PollView struct {
	Poll           Poll  `json:"poll"`
	RecentlyActive bool  `json:"recently_active"`
	MyVote         *Vote `json:"my_vote,omitempty"`
}

type SessionResponse struct {
	Wallet string `json:"wallet"`
}

type SyncResponse struct {
	Result string `json:"result"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
