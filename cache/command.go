// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"github.com/danielhkuo/coinpoll/models"
)

// change records one entity write together with the value it replaces.
type change[K comparable, V any] struct {
	key      K
	prior    V
	hadPrior bool
	next     V
	remove   bool
}

// Command is an optimistic mutation with its rollback. Prior values are
// captured from the view when each write is recorded, before anything is
// applied, so Rollback restores exactly what was there.
type Command struct {
	Name       string
	generation uint64
	resolved   bool

	view  View
	polls []change[string, models.Poll]
	votes []change[models.VoteKey, models.Vote]
	users []change[string, models.UserAccount]
}

// NewCommand starts a command that captures prior values from v.
func NewCommand(v View, name string) *Command {
	return &Command{Name: name, view: v}
}

// Generation is the tracker generation produced when the command was applied.
func (c *Command) Generation() uint64 {
	return c.generation
}

func (c *Command) PutPoll(p models.Poll) {
	prior, ok := c.view.s.polls[p.ID]
	c.polls = append(c.polls, change[string, models.Poll]{
		key: p.ID, prior: prior.Clone(), hadPrior: ok, next: p.Clone(),
	})
}

func (c *Command) DeletePoll(id string) {
	prior, ok := c.view.s.polls[id]
	c.polls = append(c.polls, change[string, models.Poll]{
		key: id, prior: prior.Clone(), hadPrior: ok, remove: true,
	})
}

func (c *Command) PutVote(v models.Vote) {
	prior, ok := c.view.s.votes[v.Key()]
	c.votes = append(c.votes, change[models.VoteKey, models.Vote]{
		key: v.Key(), prior: prior.Clone(), hadPrior: ok, next: v.Clone(),
	})
}

func (c *Command) DeleteVote(key models.VoteKey) {
	prior, ok := c.view.s.votes[key]
	c.votes = append(c.votes, change[models.VoteKey, models.Vote]{
		key: key, prior: prior.Clone(), hadPrior: ok, remove: true,
	})
}

func (c *Command) PutUser(u models.UserAccount) {
	prior, ok := c.view.s.users[u.Wallet]
	c.users = append(c.users, change[string, models.UserAccount]{
		key: u.Wallet, prior: prior, hadPrior: ok, next: u,
	})
}

// Polls returns the poll values this command writes.
func (c *Command) Polls() []models.Poll {
	var out []models.Poll
	for _, ch := range c.polls {
		if !ch.remove {
			out = append(out, ch.next.Clone())
		}
	}
	return out
}

// Users returns the account values this command writes.
func (c *Command) Users() []models.UserAccount {
	var out []models.UserAccount
	for _, ch := range c.users {
		out = append(out, ch.next)
	}
	return out
}

// Votes returns the vote values this command writes.
func (c *Command) Votes() []models.Vote {
	var out []models.Vote
	for _, ch := range c.votes {
		if !ch.remove {
			out = append(out, ch.next.Clone())
		}
	}
	return out
}

func (c *Command) empty() bool {
	return len(c.polls) == 0 && len(c.votes) == 0 && len(c.users) == 0
}

func (c *Command) apply(s *state) {
	applyChanges(s.polls, c.polls)
	applyChanges(s.votes, c.votes)
	applyChanges(s.users, c.users)
}

func (c *Command) rollback(s *state) {
	rollbackChanges(s.polls, c.polls)
	rollbackChanges(s.votes, c.votes)
	rollbackChanges(s.users, c.users)
}

func applyChanges[K comparable, V any](m map[K]V, changes []change[K, V]) {
	for _, ch := range changes {
		if ch.remove {
			delete(m, ch.key)
		} else {
			m[ch.key] = ch.next
		}
	}
}

// rollbackChanges walks changes in reverse so that the earliest prior value
// of a key written twice wins.
func rollbackChanges[K comparable, V any](m map[K]V, changes []change[K, V]) {
	for i := len(changes) - 1; i >= 0; i-- {
		ch := changes[i]
		if ch.hadPrior {
			m[ch.key] = ch.prior
		} else {
			delete(m, ch.key)
		}
	}
}
