// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package executor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/errclass"
	"github.com/danielhkuo/coinpoll/ledger"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/notify"
	"github.com/danielhkuo/coinpoll/remote"
)

// errNothingToClaim ends a claim plan without changes. ClaimReward maps it
// to a zero reward.
var errNothingToClaim = errors.New("nothing to claim")

// CastVote buys coins on one option of an active poll. Repeated casts
// accumulate into the caller's single vote record.
func (e *Executor) CastVote(ctx context.Context, pollID string, option int, coins int64) (models.Vote, error) {
	caller, err := e.caller()
	if err != nil {
		return models.Vote{}, err
	}
	if coins <= 0 {
		return models.Vote{}, ErrInvalidCoins
	}
	now := e.now()
	loaded, err := e.loadAccounts(ctx, caller)
	if err != nil {
		return models.Vote{}, &OpError{Op: "cast_vote", Kind: errclass.Classify(err), Err: err}
	}
	stored, hasStored, err := e.loadVote(ctx, pollID, caller)
	if err != nil {
		return models.Vote{}, &OpError{Op: "cast_vote", Kind: errclass.Classify(err), Err: err}
	}

	var poll models.Poll
	var vote models.Vote
	var voter models.UserAccount
	var cost int64

	err = e.run(ctx, operation{
		name:   "cast_vote",
		kind:   ledger.KindCastVote,
		title:  "Cast vote",
		pollID: pollID,
		plan: func(v cache.View) (*cache.Command, error) {
			p, ok := v.Poll(pollID)
			if !ok {
				return nil, ErrNotFound
			}
			if p.Status != models.StatusActive {
				return nil, ErrPollNotActive
			}
			if p.Ended(now) {
				return nil, ErrPollEnded
			}
			if p.Creator == caller {
				return nil, ErrCreatorVote
			}
			if option < 0 || option >= len(p.Options) {
				return nil, ErrInvalidOption
			}

			existing, voted := v.Vote(pollID, caller)
			if !voted && hasStored {
				existing, voted = stored, true
			}
			if coins > e.maxCoins-existing.Coins() {
				return nil, ErrCoinCap
			}
			if p.UnitPrice <= 0 || coins > math.MaxInt64/p.UnitPrice {
				return nil, ErrInvalidCoins
			}
			cost = coins * p.UnitPrice
			voter = account(v, loaded, caller, now)
			if voter.Balance < cost {
				return nil, ErrInsufficientBalance
			}

			p.VoteCounts[option] += coins
			p.TotalPool += cost
			if !voted {
				p.TotalVoters++
				existing = models.Vote{PollID: pollID, Voter: caller}
			}
			for len(existing.VotesPerOption) < len(p.Options) {
				existing.VotesPerOption = append(existing.VotesPerOption, 0)
			}
			existing.VotesPerOption[option] += coins
			existing.TotalStaked += cost
			existing.VotedAt = now.UTC()

			voter.Balance -= cost
			voter.RecordVote(coins, cost, !voted)

			poll, vote = p, existing
			cmd := cache.NewCommand(v, "cast_vote")
			cmd.PutPoll(p)
			cmd.PutVote(existing)
			cmd.PutUser(voter)
			return cmd, nil
		},
		deltas: func() map[string]int64 {
			return map[string]int64{caller: -cost}
		},
		persist: func(ctx context.Context) error {
			if err := e.store.UpsertVote(ctx, models.VoteToRow(vote)); err != nil {
				return fmt.Errorf("upsert vote: %w", err)
			}
			fields := models.PollToRow(poll).Pick("vote_counts", "total_pool_lamports", "total_voters")
			if err := e.store.UpdatePoll(ctx, pollID, fields); err != nil {
				return fmt.Errorf("update poll: %w", err)
			}
			return e.writeUsers(ctx, []models.UserAccount{voter})
		},
		done: func() (string, string) {
			return "Vote confirmed", fmt.Sprintf("Cast %s on %q for %s",
				notify.Coins(coins), poll.Options[option], notify.SOL(cost))
		},
	})
	if err != nil {
		return models.Vote{}, err
	}
	return vote, nil
}

// loadVote fetches the caller's vote on pollID when the cache has none, so
// a repeat vote is never taken for a first one.
func (e *Executor) loadVote(ctx context.Context, pollID, voter string) (models.Vote, bool, error) {
	if _, ok := e.cache.Vote(pollID, voter); ok {
		return models.Vote{}, false, nil
	}
	if _, ok := e.cache.Poll(pollID); !ok {
		return models.Vote{}, false, nil
	}
	votes, err := e.store.FetchVotes(ctx, remote.VoteFilter{PollID: pollID, Voter: voter})
	if err != nil {
		return models.Vote{}, false, fmt.Errorf("load vote: %w", err)
	}
	for _, v := range votes {
		if v.PollID == pollID && v.Voter == voter {
			return v, true, nil
		}
	}
	return models.Vote{}, false, nil
}

// ClaimReward pays the caller's share of a settled poll's pool. It returns
// zero with a nil error when there is nothing to claim.
func (e *Executor) ClaimReward(ctx context.Context, pollID string) (int64, error) {
	caller, err := e.caller()
	if err != nil {
		return 0, err
	}
	if _, ok := e.cache.Poll(pollID); !ok {
		return 0, ErrNotFound
	}
	now := e.now()
	loaded, err := e.loadAccounts(ctx, caller)
	if err != nil {
		return 0, &OpError{Op: "claim_reward", Kind: errclass.Classify(err), Err: err}
	}

	var claimant models.UserAccount
	var reward int64
	var title string

	err = e.run(ctx, operation{
		name:   "claim_reward",
		kind:   ledger.KindClaim,
		title:  "Claim reward",
		pollID: pollID,
		plan: func(v cache.View) (*cache.Command, error) {
			p, ok := v.Poll(pollID)
			if !ok {
				return nil, ErrNotFound
			}
			if !p.HasWinner() {
				return nil, errNothingToClaim
			}
			mine, ok := v.Vote(pollID, caller)
			if !ok || mine.Claimed {
				return nil, errNothingToClaim
			}
			coins := mine.CoinsOn(p.WinningOption)
			if coins == 0 {
				return nil, errNothingToClaim
			}

			reward = RewardShare(coins, p.VoteCounts[p.WinningOption], p.TotalPool)
			title = p.Title
			mine.Claimed = true
			claimant = account(v, loaded, caller, now)
			claimant.Balance += reward
			claimant.RecordWin(reward)

			cmd := cache.NewCommand(v, "claim_reward")
			cmd.PutVote(mine)
			cmd.PutUser(claimant)
			return cmd, nil
		},
		deltas: func() map[string]int64 {
			return map[string]int64{caller: reward}
		},
		persist: func(ctx context.Context) error {
			if err := e.store.UpdateVote(ctx, pollID, caller, models.Row{"claimed": true}); err != nil {
				return fmt.Errorf("update vote: %w", err)
			}
			return e.writeUsers(ctx, []models.UserAccount{claimant})
		},
		done: func() (string, string) {
			return "Claim confirmed", fmt.Sprintf("Claimed %s on %s", notify.SOL(reward), title)
		},
	})
	if errors.Is(err, errNothingToClaim) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	e.emit(models.NotifyClaimed, "Reward claimed", fmt.Sprintf("You received %s from %s", notify.SOL(reward), title), pollID)
	return reward, nil
}
