// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a flat snake_case record as persisted by the remote store.
type Row map[string]any

// Pick returns a new row holding only the named columns.
func (r Row) Pick(cols ...string) Row {
	out := make(Row, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Poll columns
var PollColumns = []string{
	"id", "seq", "creator", "title", "description", "category", "image_url",
	"options", "vote_counts", "unit_price_lamports", "end_time",
	"total_pool_lamports", "creator_investment_lamports", "platform_fee_lamports",
	"creator_reward_lamports", "status", "winning_option", "total_voters", "created_at",
}

// Vote columns
var VoteColumns = []string{
	"poll_id", "voter", "votes_per_option", "total_staked_lamports", "claimed", "voted_at",
}

// User columns
var UserColumns = []string{
	"wallet", "balance_lamports",
	"total_votes_cast", "total_polls_voted", "total_polls_won",
	"total_spent_lamports", "total_winnings_lamports", "creator_earnings_lamports", "polls_created",
	"weekly_votes_cast", "weekly_polls_voted", "weekly_polls_won", "weekly_spent_lamports", "weekly_winnings_lamports",
	"monthly_votes_cast", "monthly_polls_voted", "monthly_polls_won", "monthly_spent_lamports", "monthly_winnings_lamports",
	"weekly_reset_at", "monthly_reset_at",
}

func PollToRow(p Poll) Row {
	return Row{
		"id":                          p.ID,
		"seq":                         p.Seq,
		"creator":                     p.Creator,
		"title":                       p.Title,
		"description":                 p.Description,
		"category":                    p.Category,
		"image_url":                   p.ImageURL,
		"options":                     append([]string{}, p.Options...),
		"vote_counts":                 append([]int64{}, p.VoteCounts...),
		"unit_price_lamports":         p.UnitPrice,
		"end_time":                    p.EndTime,
		"total_pool_lamports":         p.TotalPool,
		"creator_investment_lamports": p.CreatorInvestment,
		"platform_fee_lamports":       p.PlatformFee,
		"creator_reward_lamports":     p.CreatorReward,
		"status":                      string(p.Status),
		"winning_option":              int64(p.WinningOption),
		"total_voters":                p.TotalVoters,
		"created_at":                  p.CreatedAt,
	}
}

func PollFromRow(r Row) (Poll, error) {
	var c coercer
	p := Poll{
		ID:                c.str(r, "id"),
		Seq:               c.int(r, "seq"),
		Creator:           c.str(r, "creator"),
		Title:             c.str(r, "title"),
		Description:       c.str(r, "description"),
		Category:          c.str(r, "category"),
		ImageURL:          c.str(r, "image_url"),
		Options:           c.strs(r, "options"),
		VoteCounts:        c.ints(r, "vote_counts"),
		UnitPrice:         c.int(r, "unit_price_lamports"),
		EndTime:           c.time(r, "end_time"),
		TotalPool:         c.int(r, "total_pool_lamports"),
		CreatorInvestment: c.int(r, "creator_investment_lamports"),
		PlatformFee:       c.int(r, "platform_fee_lamports"),
		CreatorReward:     c.int(r, "creator_reward_lamports"),
		Status:            PollStatus(c.str(r, "status")),
		WinningOption:     NoWinner,
		TotalVoters:       c.int(r, "total_voters"),
		CreatedAt:         c.time(r, "created_at"),
	}
	if _, ok := r["winning_option"]; ok && r["winning_option"] != nil {
		p.WinningOption = int(c.int(r, "winning_option"))
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	// Vote counts are index-aligned with options; pad rows written before
	// counts existed.
	for len(p.VoteCounts) < len(p.Options) {
		p.VoteCounts = append(p.VoteCounts, 0)
	}
	if c.err != nil {
		return Poll{}, fmt.Errorf("poll row %q: %w", p.ID, c.err)
	}
	return p, nil
}

func VoteToRow(v Vote) Row {
	return Row{
		"poll_id":               v.PollID,
		"voter":                 v.Voter,
		"votes_per_option":      append([]int64{}, v.VotesPerOption...),
		"total_staked_lamports": v.TotalStaked,
		"claimed":               v.Claimed,
		"voted_at":              v.VotedAt,
	}
}

func VoteFromRow(r Row) (Vote, error) {
	var c coercer
	v := Vote{
		PollID:         c.str(r, "poll_id"),
		Voter:          c.str(r, "voter"),
		VotesPerOption: c.ints(r, "votes_per_option"),
		TotalStaked:    c.int(r, "total_staked_lamports"),
		Claimed:        c.bool(r, "claimed"),
		VotedAt:        c.time(r, "voted_at"),
	}
	if c.err != nil {
		return Vote{}, fmt.Errorf("vote row %s/%s: %w", v.PollID, v.Voter, c.err)
	}
	return v, nil
}

func UserToRow(u UserAccount) Row {
	return Row{
		"wallet":                    u.Wallet,
		"balance_lamports":          u.Balance,
		"total_votes_cast":          u.TotalVotesCast,
		"total_polls_voted":         u.TotalPollsVoted,
		"total_polls_won":           u.TotalPollsWon,
		"total_spent_lamports":      u.TotalSpent,
		"total_winnings_lamports":   u.TotalWinnings,
		"creator_earnings_lamports": u.CreatorEarnings,
		"polls_created":             u.PollsCreated,
		"weekly_votes_cast":         u.Weekly.VotesCast,
		"weekly_polls_voted":        u.Weekly.PollsVoted,
		"weekly_polls_won":          u.Weekly.PollsWon,
		"weekly_spent_lamports":     u.Weekly.Spent,
		"weekly_winnings_lamports":  u.Weekly.Winnings,
		"monthly_votes_cast":        u.Monthly.VotesCast,
		"monthly_polls_voted":       u.Monthly.PollsVoted,
		"monthly_polls_won":         u.Monthly.PollsWon,
		"monthly_spent_lamports":    u.Monthly.Spent,
		"monthly_winnings_lamports": u.Monthly.Winnings,
		"weekly_reset_at":           u.WeeklyResetAt,
		"monthly_reset_at":          u.MonthlyResetAt,
	}
}

func UserFromRow(r Row) (UserAccount, error) {
	var c coercer
	u := UserAccount{
		Wallet:          c.str(r, "wallet"),
		Balance:         c.int(r, "balance_lamports"),
		TotalVotesCast:  c.int(r, "total_votes_cast"),
		TotalPollsVoted: c.int(r, "total_polls_voted"),
		TotalPollsWon:   c.int(r, "total_polls_won"),
		TotalSpent:      c.int(r, "total_spent_lamports"),
		TotalWinnings:   c.int(r, "total_winnings_lamports"),
		CreatorEarnings: c.int(r, "creator_earnings_lamports"),
		PollsCreated:    c.int(r, "polls_created"),
		Weekly: WindowStats{
			VotesCast:  c.int(r, "weekly_votes_cast"),
			PollsVoted: c.int(r, "weekly_polls_voted"),
			PollsWon:   c.int(r, "weekly_polls_won"),
			Spent:      c.int(r, "weekly_spent_lamports"),
			Winnings:   c.int(r, "weekly_winnings_lamports"),
		},
		Monthly: WindowStats{
			VotesCast:  c.int(r, "monthly_votes_cast"),
			PollsVoted: c.int(r, "monthly_polls_voted"),
			PollsWon:   c.int(r, "monthly_polls_won"),
			Spent:      c.int(r, "monthly_spent_lamports"),
			Winnings:   c.int(r, "monthly_winnings_lamports"),
		},
		WeeklyResetAt:  c.time(r, "weekly_reset_at"),
		MonthlyResetAt: c.time(r, "monthly_reset_at"),
	}
	if c.err != nil {
		return UserAccount{}, fmt.Errorf("user row %q: %w", u.Wallet, c.err)
	}
	return u, nil
}

// coercer converts loosely typed row values. Missing or nil values become
// zero values; the first conversion failure is kept in err.
type coercer struct {
	err error
}

func (c *coercer) fail(col string, v any) {
	if c.err == nil {
		c.err = fmt.Errorf("column %s: cannot convert %T", col, v)
	}
}

func (c *coercer) str(r Row, col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		c.fail(col, v)
		return ""
	}
}

func (c *coercer) int(r Row, col string) int64 {
	n, ok := toInt64(r[col])
	if !ok {
		c.fail(col, r[col])
	}
	return n
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, true
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case []byte:
		return toInt64(string(v))
	default:
		return 0, false
	}
}

func (c *coercer) bool(r Row, col string) bool {
	switch v := r[col].(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.fail(col, v)
		}
		return b
	case []byte:
		b, err := strconv.ParseBool(string(v))
		if err != nil {
			c.fail(col, v)
		}
		return b
	default:
		c.fail(col, v)
		return false
	}
}

func (c *coercer) time(r Row, col string) time.Time {
	switch v := r[col].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v
	case int64:
		return time.UnixMilli(v).UTC()
	case string:
		return c.parseTime(col, v)
	case []byte:
		return c.parseTime(col, string(v))
	default:
		c.fail(col, v)
		return time.Time{}
	}
}

func (c *coercer) parseTime(col, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if ms, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			return time.UnixMilli(ms).UTC()
		}
		c.fail(col, s)
	}
	return t
}

func (c *coercer) strs(r Row, col string) []string {
	switch v := r[col].(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				c.fail(col, item)
				return []string{}
			}
			out = append(out, s)
		}
		return out
	case string, []byte:
		var out []string
		if err := json.Unmarshal(asBytes(v), &out); err != nil {
			c.fail(col, v)
			return []string{}
		}
		if out == nil {
			out = []string{}
		}
		return out
	default:
		c.fail(col, v)
		return []string{}
	}
}

func (c *coercer) ints(r Row, col string) []int64 {
	switch v := r[col].(type) {
	case nil:
		return []int64{}
	case []int64:
		return append([]int64{}, v...)
	case []any:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			n, ok := toInt64(item)
			if !ok {
				c.fail(col, item)
				return []int64{}
			}
			out = append(out, n)
		}
		return out
	case string, []byte:
		var raw []any
		dec := json.NewDecoder(strings.NewReader(string(asBytes(v))))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			c.fail(col, v)
			return []int64{}
		}
		return c.ints(Row{col: raw}, col)
	default:
		c.fail(col, v)
		return []int64{}
	}
}

func asBytes(v any) []byte {
	if s, ok := v.(string); ok {
		return []byte(s)
	}
	return v.([]byte)
}
