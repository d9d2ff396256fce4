// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"errors"
	"sort"
	"sync"

	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/tracker"
)

// ErrNoChange is returned by a plan function that decided nothing needs to
// be applied. Execute returns it unchanged and does not bump the generation.
var ErrNoChange = errors.New("no change")

// Cache is the local optimistic view of polls, votes, and accounts.
//
// It is the only shared mutable resource of the engine. Every optimistic
// apply (Execute) and every reconciliation commit (CommitIf) runs under the
// same write lock, and Execute bumps the tracker's generation before
// releasing it. A commit therefore either observes the bump and is
// discarded, or completes before the mutation runs.
//
// An executed command stays pending until Confirm or Rollback resolves it.
// Both bump the generation again, and CommitIf refuses while any command is
// pending, so a fetch that overlaps a persist never commits.
type Cache struct {
	mu      sync.RWMutex
	state   state
	tracker *tracker.Tracker
	pending int
}

type state struct {
	polls map[string]models.Poll
	votes map[models.VoteKey]models.Vote
	users map[string]models.UserAccount
}

func newState() state {
	return state{
		polls: make(map[string]models.Poll),
		votes: make(map[models.VoteKey]models.Vote),
		users: make(map[string]models.UserAccount),
	}
}

func New(t *tracker.Tracker) *Cache {
	return &Cache{state: newState(), tracker: t}
}

// Tracker returns the mutation tracker bound to this cache.
func (c *Cache) Tracker() *tracker.Tracker {
	return c.tracker
}

// Execute runs plan under the write lock. plan inspects the view, checks
// preconditions, and returns a Command describing the optimistic change.
// The command is applied and the generation bumped before the lock is
// released. A plan error leaves the cache untouched.
func (c *Cache) Execute(plan func(View) (*Command, error)) (*Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, err := plan(View{s: &c.state})
	if err != nil {
		return nil, err
	}
	if cmd == nil || cmd.empty() {
		return nil, ErrNoChange
	}
	cmd.apply(&c.state)
	cmd.generation = c.tracker.Bump()
	c.pending++
	return cmd, nil
}

// Confirm marks an executed command as persisted.
func (c *Cache) Confirm(cmd *Command) {
	if cmd == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolve(cmd)
}

// Rollback restores every entity the command touched to its value before
// the command was applied.
func (c *Cache) Rollback(cmd *Command) {
	if cmd == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd.rollback(&c.state)
	c.resolve(cmd)
}

func (c *Cache) resolve(cmd *Command) {
	if cmd.resolved {
		return
	}
	cmd.resolved = true
	c.pending--
	c.tracker.Bump()
}

// Pending returns the number of executed commands not yet confirmed or
// rolled back.
func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// Read runs fn with a consistent read-only view.
func (c *Cache) Read(fn func(View)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(View{s: &c.state})
}

// Snapshot is an authoritative fetch result to be committed.
type Snapshot struct {
	Polls []models.Poll
	Users []models.UserAccount
	// Votes holds the records of Voter. When Voter is empty no vote records
	// were fetched and cached votes are left as they are.
	Voter string
	Votes []models.Vote
}

// CommitIf replaces the cache contents with snap only if the tracker's
// generation still equals gen and no command is pending. Returns false when
// the snapshot is stale.
//
// Polls and users are replaced wholesale. Votes of snap.Voter are replaced;
// votes of other voters are kept only while their poll still exists.
func (c *Cache) CommitIf(gen uint64, snap Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending > 0 || c.tracker.Generation() != gen {
		return false
	}

	next := newState()
	for _, p := range snap.Polls {
		next.polls[p.ID] = p.Clone()
	}
	for _, u := range snap.Users {
		next.users[u.Wallet] = u
	}
	for key, v := range c.state.votes {
		if _, ok := next.polls[key.PollID]; !ok {
			continue
		}
		if snap.Voter != "" && key.Voter == snap.Voter {
			continue
		}
		next.votes[key] = v
	}
	for _, v := range snap.Votes {
		if _, ok := next.polls[v.PollID]; !ok {
			continue
		}
		next.votes[v.Key()] = v.Clone()
	}
	c.state = next
	return true
}

// Poll returns a copy of the cached poll.
func (c *Cache) Poll(id string) (models.Poll, bool) {
	var p models.Poll
	var ok bool
	c.Read(func(v View) { p, ok = v.Poll(id) })
	return p, ok
}

// Polls returns every cached poll, newest first.
func (c *Cache) Polls() []models.Poll {
	var out []models.Poll
	c.Read(func(v View) { out = v.Polls() })
	return out
}

func (c *Cache) Vote(pollID, voter string) (models.Vote, bool) {
	var vote models.Vote
	var ok bool
	c.Read(func(v View) { vote, ok = v.Vote(pollID, voter) })
	return vote, ok
}

func (c *Cache) User(wallet string) (models.UserAccount, bool) {
	var u models.UserAccount
	var ok bool
	c.Read(func(v View) { u, ok = v.User(wallet) })
	return u, ok
}

// View is a read-only window onto cache state, valid only inside the
// callback that received it. Returned values are copies.
type View struct {
	s *state
}

func (v View) Poll(id string) (models.Poll, bool) {
	p, ok := v.s.polls[id]
	if !ok {
		return models.Poll{}, false
	}
	return p.Clone(), true
}

func (v View) Polls() []models.Poll {
	out := make([]models.Poll, 0, len(v.s.polls))
	for _, p := range v.s.polls {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq > out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MaxSeq returns the largest poll sequence number in the cache.
func (v View) MaxSeq() int64 {
	var max int64
	for _, p := range v.s.polls {
		if p.Seq > max {
			max = p.Seq
		}
	}
	return max
}

func (v View) Vote(pollID, voter string) (models.Vote, bool) {
	vote, ok := v.s.votes[models.VoteKey{PollID: pollID, Voter: voter}]
	if !ok {
		return models.Vote{}, false
	}
	return vote.Clone(), true
}

// VotesForPoll returns the cached votes on a poll ordered by voter.
func (v View) VotesForPoll(pollID string) []models.Vote {
	var out []models.Vote
	for key, vote := range v.s.votes {
		if key.PollID == pollID {
			out = append(out, vote.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Voter < out[j].Voter })
	return out
}

func (v View) User(wallet string) (models.UserAccount, bool) {
	u, ok := v.s.users[wallet]
	return u, ok
}
