// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danielhkuo/coinpoll/auth"
	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/errclass"
	"github.com/danielhkuo/coinpoll/ledger"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/notify"
	"github.com/danielhkuo/coinpoll/remote"
)

// Columns written by an edit
var editColumns = []string{"title", "description", "category", "image_url", "options", "vote_counts", "end_time"}

// FeeSplit returns the platform fee, creator reward, and seeded pool for
// an investment. Fee and reward are each one percent, at least 1 lamport.
func FeeSplit(investment int64) (fee, reward, pool int64) {
	fee = max(investment/100, 1)
	reward = fee
	return fee, reward, investment - fee - reward
}

func validOptions(options []string) ([]string, error) {
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: at least two options required", ErrInvalidPoll)
	}
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = strings.TrimSpace(o)
		if out[i] == "" {
			return nil, fmt.Errorf("%w: option %d is empty", ErrInvalidPoll, i)
		}
	}
	return out, nil
}

func validateDraft(d models.PollDraft, now time.Time) (models.PollDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, fmt.Errorf("%w: title required", ErrInvalidPoll)
	}
	options, err := validOptions(d.Options)
	if err != nil {
		return d, err
	}
	d.Options = options
	if d.UnitPrice <= 0 {
		return d, fmt.Errorf("%w: unit price must be positive", ErrInvalidPoll)
	}
	if !d.EndTime.After(now) {
		return d, fmt.Errorf("%w: end time must be in the future", ErrInvalidPoll)
	}
	if _, _, pool := FeeSplit(d.Investment); pool < 0 || d.Investment <= 0 {
		return d, fmt.Errorf("%w: investment too small", ErrInvalidPoll)
	}
	return d, nil
}

// CreatePoll debits the caller's investment and opens a new poll.
func (e *Executor) CreatePoll(ctx context.Context, draft models.PollDraft) (models.Poll, error) {
	caller, err := e.caller()
	if err != nil {
		return models.Poll{}, err
	}
	now := e.now()
	draft, err = validateDraft(draft, now)
	if err != nil {
		return models.Poll{}, err
	}
	id, err := auth.GenerateID(16)
	if err != nil {
		return models.Poll{}, err
	}
	loaded, err := e.loadAccounts(ctx, caller)
	if err != nil {
		return models.Poll{}, &OpError{Op: "create_poll", Kind: errclass.Classify(err), Err: err}
	}

	var poll models.Poll
	var creator models.UserAccount
	fee, reward, pool := FeeSplit(draft.Investment)

	err = e.run(ctx, operation{
		name:   "create_poll",
		kind:   ledger.KindCreatePoll,
		title:  "Create poll",
		pollID: id,
		plan: func(v cache.View) (*cache.Command, error) {
			creator = account(v, loaded, caller, now)
			if creator.Balance < draft.Investment {
				return nil, ErrInsufficientBalance
			}
			poll = models.Poll{
				ID:                id,
				Seq:               v.MaxSeq() + 1,
				Creator:           caller,
				Title:             draft.Title,
				Description:       draft.Description,
				Category:          draft.Category,
				ImageURL:          draft.ImageURL,
				Options:           draft.Options,
				VoteCounts:        make([]int64, len(draft.Options)),
				UnitPrice:         draft.UnitPrice,
				EndTime:           draft.EndTime.UTC(),
				TotalPool:         pool,
				CreatorInvestment: draft.Investment,
				PlatformFee:       fee,
				CreatorReward:     reward,
				Status:            models.StatusActive,
				WinningOption:     models.NoWinner,
				CreatedAt:         now.UTC(),
			}
			creator.Balance -= draft.Investment
			creator.PollsCreated++

			cmd := cache.NewCommand(v, "create_poll")
			cmd.PutPoll(poll)
			cmd.PutUser(creator)
			return cmd, nil
		},
		deltas: func() map[string]int64 {
			return map[string]int64{caller: -draft.Investment}
		},
		persist: func(ctx context.Context) error {
			if err := e.store.UpsertPoll(ctx, models.PollToRow(poll)); err != nil {
				return fmt.Errorf("upsert poll: %w", err)
			}
			return e.writeUsers(ctx, []models.UserAccount{creator})
		},
		done: func() (string, string) {
			return "Poll created", fmt.Sprintf("%q is live with a %s pool", poll.Title, notify.SOL(poll.TotalPool))
		},
	})
	if err != nil {
		return models.Poll{}, err
	}
	return poll, nil
}

// EditPoll merges updates into a poll nobody has voted on. Only an admin
// may change the option count, edit after the end time, or move the end
// time into the past.
func (e *Executor) EditPoll(ctx context.Context, id string, updates models.PollUpdates, admin bool) (models.Poll, error) {
	caller, err := e.caller()
	if err != nil {
		return models.Poll{}, err
	}
	now := e.now()

	var poll models.Poll
	err = e.run(ctx, operation{
		name:   "edit_poll",
		kind:   ledger.KindEditPoll,
		title:  "Edit poll",
		pollID: id,
		plan: func(v cache.View) (*cache.Command, error) {
			p, ok := v.Poll(id)
			if !ok {
				return nil, ErrNotFound
			}
			if p.Creator != caller && !admin {
				return nil, ErrNotAuthorized
			}
			if p.Status != models.StatusActive {
				return nil, ErrPollNotActive
			}
			if p.TotalVotes() > 0 {
				return nil, ErrHasVotes
			}
			if !admin && p.Ended(now) {
				return nil, ErrPollEnded
			}

			if updates.Title != nil {
				title := strings.TrimSpace(*updates.Title)
				if title == "" {
					return nil, fmt.Errorf("%w: title required", ErrInvalidPoll)
				}
				p.Title = title
			}
			if updates.Description != nil {
				p.Description = *updates.Description
			}
			if updates.Category != nil {
				p.Category = *updates.Category
			}
			if updates.ImageURL != nil {
				p.ImageURL = *updates.ImageURL
			}
			if updates.Options != nil {
				options, err := validOptions(updates.Options)
				if err != nil {
					return nil, err
				}
				if !admin && len(options) != len(p.Options) {
					return nil, ErrOptionCount
				}
				p.Options = options
				p.VoteCounts = make([]int64, len(options))
			}
			if updates.EndTime != nil {
				if !admin && !updates.EndTime.After(now) {
					return nil, fmt.Errorf("%w: end time must be in the future", ErrInvalidPoll)
				}
				p.EndTime = updates.EndTime.UTC()
			}

			poll = p
			cmd := cache.NewCommand(v, "edit_poll")
			cmd.PutPoll(p)
			return cmd, nil
		},
		persist: func(ctx context.Context) error {
			fields := models.PollToRow(poll).Pick(editColumns...)
			if err := e.store.UpdatePoll(ctx, id, fields); err != nil {
				return fmt.Errorf("update poll: %w", err)
			}
			return nil
		},
		done: func() (string, string) {
			return "Poll updated", fmt.Sprintf("%q was updated", poll.Title)
		},
	})
	if err != nil {
		return models.Poll{}, err
	}
	return poll, nil
}

// DeletePoll removes a poll and refunds the creator's investment and every
// voter's stake. Without admin the poll must have no votes and not have
// ended. The id is tombstoned so a lagging fetch cannot bring it back.
func (e *Executor) DeletePoll(ctx context.Context, id string, admin bool) (models.Refunds, error) {
	caller, err := e.caller()
	if err != nil {
		return nil, err
	}
	now := e.now()

	cached, ok := e.cache.Poll(id)
	if !ok {
		return nil, ErrNotFound
	}
	if cached.Creator != caller && !admin {
		return nil, ErrNotAuthorized
	}

	// The cache only holds the session's own votes; the store has the rest.
	remoteVotes, err := e.store.FetchVotes(ctx, remote.VoteFilter{PollID: id})
	if err != nil {
		err = fmt.Errorf("fetch votes: %w", err)
		return nil, &OpError{Op: "delete_poll", Kind: errclass.Classify(err), Err: err}
	}
	wallets := []string{cached.Creator}
	for _, v := range remoteVotes {
		wallets = append(wallets, v.Voter)
	}
	loaded, err := e.loadAccounts(ctx, wallets...)
	if err != nil {
		return nil, &OpError{Op: "delete_poll", Kind: errclass.Classify(err), Err: err}
	}

	refunds := models.Refunds{}
	var credited []models.UserAccount

	err = e.run(ctx, operation{
		name:   "delete_poll",
		kind:   ledger.KindDeletePoll,
		title:  "Delete poll",
		pollID: id,
		plan: func(v cache.View) (*cache.Command, error) {
			p, ok := v.Poll(id)
			if !ok {
				return nil, ErrNotFound
			}
			if p.Creator != caller && !admin {
				return nil, ErrNotAuthorized
			}
			if p.Status != models.StatusActive {
				return nil, ErrPollNotActive
			}
			if !admin && p.TotalVotes() > 0 {
				return nil, ErrHasVotes
			}
			if !admin && p.Ended(now) {
				return nil, ErrPollEnded
			}

			votes := make(map[models.VoteKey]models.Vote)
			for _, vote := range remoteVotes {
				votes[vote.Key()] = vote
			}
			cmd := cache.NewCommand(v, "delete_poll")
			for _, vote := range v.VotesForPoll(id) {
				votes[vote.Key()] = vote
				cmd.DeleteVote(vote.Key())
			}

			refunds[p.Creator] += p.CreatorInvestment
			for _, vote := range votes {
				if vote.TotalStaked > 0 {
					refunds[vote.Voter] += vote.TotalStaked
				}
			}

			wallets := make([]string, 0, len(refunds))
			for w := range refunds {
				wallets = append(wallets, w)
			}
			sort.Strings(wallets)
			for _, w := range wallets {
				u := account(v, loaded, w, now)
				u.Balance += refunds[w]
				credited = append(credited, u)
				cmd.PutUser(u)
			}
			cmd.DeletePoll(id)
			e.tracker.Tombstone(id)
			return cmd, nil
		},
		deltas: func() map[string]int64 {
			return refunds
		},
		persist: func(ctx context.Context) error {
			if err := e.store.DeletePoll(ctx, id); err != nil && !errors.Is(err, remote.ErrNotFound) {
				return fmt.Errorf("delete poll: %w", err)
			}
			return e.writeUsers(ctx, credited)
		},
		undo: func() {
			e.tracker.Untombstone(id)
		},
		done: func() (string, string) {
			return "Poll deleted", fmt.Sprintf("Refunded %s", notify.SOL(refunds.Total()))
		},
	})
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// SettlePoll closes a poll with a winner and pays the creator reward. An
// explicit winner is an admin resolution and is used when it is a valid
// index; otherwise the winner comes from the vote counts.
func (e *Executor) SettlePoll(ctx context.Context, id string, explicitWinner *int, admin bool) (models.Poll, error) {
	caller, err := e.caller()
	if err != nil {
		return models.Poll{}, err
	}
	if explicitWinner != nil && !admin {
		return models.Poll{}, ErrNotAuthorized
	}
	now := e.now()

	cached, ok := e.cache.Poll(id)
	if !ok {
		return models.Poll{}, ErrNotFound
	}
	loaded, err := e.loadAccounts(ctx, cached.Creator)
	if err != nil {
		return models.Poll{}, &OpError{Op: "settle_poll", Kind: errclass.Classify(err), Err: err}
	}

	var poll models.Poll
	var creator models.UserAccount
	var callerWon bool

	err = e.run(ctx, operation{
		name:   "settle_poll",
		kind:   ledger.KindSettlePoll,
		title:  "Settle poll",
		pollID: id,
		plan: func(v cache.View) (*cache.Command, error) {
			p, ok := v.Poll(id)
			if !ok {
				return nil, ErrNotFound
			}
			if p.Creator != caller && !admin {
				return nil, ErrNotAuthorized
			}
			if p.Status != models.StatusActive {
				return nil, ErrPollNotActive
			}

			winner := SettlementWinner(p.VoteCounts)
			if explicitWinner != nil && *explicitWinner >= 0 && *explicitWinner < len(p.Options) {
				winner = *explicitWinner
			}
			p.Status = models.StatusSettled
			p.WinningOption = winner
			poll = p

			cmd := cache.NewCommand(v, "settle_poll")
			cmd.PutPoll(p)
			if p.CreatorReward > 0 {
				creator = account(v, loaded, p.Creator, now)
				creator.Balance += p.CreatorReward
				creator.RecordCreatorReward(p.CreatorReward)
				cmd.PutUser(creator)
			}
			if mine, ok := v.Vote(id, caller); ok && winner != models.NoWinner {
				callerWon = mine.CoinsOn(winner) > 0
			}
			return cmd, nil
		},
		deltas: func() map[string]int64 {
			if poll.CreatorReward == 0 {
				return nil
			}
			return map[string]int64{poll.Creator: poll.CreatorReward}
		},
		persist: func(ctx context.Context) error {
			fields := models.PollToRow(poll).Pick("status", "winning_option")
			if err := e.store.UpdatePoll(ctx, id, fields); err != nil {
				return fmt.Errorf("update poll: %w", err)
			}
			if poll.CreatorReward == 0 {
				return nil
			}
			return e.writeUsers(ctx, []models.UserAccount{creator})
		},
		done: func() (string, string) {
			return "Poll settled", "Settlement confirmed"
		},
	})
	if err != nil {
		return models.Poll{}, err
	}

	if poll.WinningOption == models.NoWinner {
		e.emit(models.NotifySettled, "Poll settled", fmt.Sprintf("%s closed with no votes", poll.Title), id)
	} else {
		e.emit(models.NotifySettled, "Poll settled",
			fmt.Sprintf("%s won on %s", poll.Options[poll.WinningOption], poll.Title), id)
	}
	if callerWon {
		e.emit(models.NotifyWon, "You won!",
			fmt.Sprintf("Claim your share of the %s pool", notify.SOL(poll.TotalPool)), id)
	}
	return poll, nil
}
