// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/realtime"
	"github.com/danielhkuo/coinpoll/remote"
)

// Store operation names accepted by Fail and Calls
const (
	OpFetchPolls = "FetchPolls"
	OpFetchVotes = "FetchVotes"
	OpFetchUsers = "FetchUsers"
	OpUpsertPoll = "UpsertPoll"
	OpUpdatePoll = "UpdatePoll"
	OpDeletePoll = "DeletePoll"
	OpUpsertVote = "UpsertVote"
	OpUpdateVote = "UpdateVote"
	OpUpdateUser = "UpdateUser"
)

// Store is an in-memory remote.Store. Rows go through the same row mapping
// as the SQL store, and every write publishes a change on Feed.
type Store struct {
	mu       sync.Mutex
	polls    map[string]models.Row
	votes    map[models.VoteKey]models.Row
	users    map[string]models.Row
	failures map[string]failure
	calls    map[string]int

	// BeforeFetchReturn, when set, runs inside FetchPolls after the rows
	// were read and before they are returned. Tests use it to interleave a
	// local mutation with an in-flight fetch.
	BeforeFetchReturn func()

	// OnCall, when set, runs at the start of every store operation before
	// its failure (if any) is returned. It runs without the store lock held.
	OnCall func(op string)

	Feed *realtime.Local
}

var _ remote.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		polls:    make(map[string]models.Row),
		votes:    make(map[models.VoteKey]models.Row),
		users:    make(map[string]models.Row),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
		Feed:     realtime.NewLocal(),
	}
}

type failure struct {
	err       error
	remaining int // 0 means until cleared
}

// Fail makes every later call of op return err. A nil err clears it.
func (s *Store) Fail(op string, err error) {
	s.FailN(op, 0, err)
}

// FailN makes the next n calls of op return err, or every call when n is 0.
func (s *Store) FailN(op string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = failure{err: err, remaining: n}
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) begin(op string) error {
	hook, err := s.record(op)
	if hook != nil {
		hook(op)
	}
	return err
}

func (s *Store) record(op string) (func(string), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	f, ok := s.failures[op]
	if !ok {
		return s.OnCall, nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.failures, op)
		} else {
			s.failures[op] = f
		}
	}
	return s.OnCall, f.err
}

// Seeding and inspection bypass failure injection and publish nothing.

func (s *Store) SeedPoll(p models.Poll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[p.ID] = models.PollToRow(p)
}

func (s *Store) SeedVote(v models.Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[v.Key()] = models.VoteToRow(v)
}

func (s *Store) SeedUser(u models.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Wallet] = models.UserToRow(u)
}

func (s *Store) Poll(id string) (models.Poll, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.polls[id]
	if !ok {
		return models.Poll{}, false
	}
	p, _ := models.PollFromRow(row)
	return p, true
}

func (s *Store) Vote(pollID, voter string) (models.Vote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.votes[models.VoteKey{PollID: pollID, Voter: voter}]
	if !ok {
		return models.Vote{}, false
	}
	v, _ := models.VoteFromRow(row)
	return v, true
}

func (s *Store) User(wallet string) (models.UserAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[wallet]
	if !ok {
		return models.UserAccount{}, false
	}
	u, _ := models.UserFromRow(row)
	return u, true
}

func (s *Store) FetchPolls(ctx context.Context) ([]models.Poll, error) {
	if err := s.begin(OpFetchPolls); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]models.Poll, 0, len(s.polls))
	for _, row := range s.polls {
		p, err := models.PollFromRow(row)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		out = append(out, p)
	}
	hook := s.BeforeFetchReturn
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (s *Store) FetchVotes(ctx context.Context, filter remote.VoteFilter) ([]models.Vote, error) {
	if err := s.begin(OpFetchVotes); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Vote
	for key, row := range s.votes {
		if filter.PollID != "" && key.PollID != filter.PollID {
			continue
		}
		if filter.Voter != "" && key.Voter != filter.Voter {
			continue
		}
		v, err := models.VoteFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PollID != out[j].PollID {
			return out[i].PollID < out[j].PollID
		}
		return out[i].Voter < out[j].Voter
	})
	return out, nil
}

func (s *Store) FetchUsers(ctx context.Context) ([]models.UserAccount, error) {
	if err := s.begin(OpFetchUsers); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserAccount, 0, len(s.users))
	for _, row := range s.users {
		u, err := models.UserFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out, nil
}

func (s *Store) UpsertPoll(ctx context.Context, row models.Row) error {
	if err := s.begin(OpUpsertPoll); err != nil {
		return err
	}
	id, _ := row["id"].(string)
	s.mu.Lock()
	_, existed := s.polls[id]
	s.polls[id] = merge(s.polls[id], row)
	s.mu.Unlock()
	return s.publish(ctx, models.TablePolls, opFor(existed), id)
}

func (s *Store) UpdatePoll(ctx context.Context, id string, fields models.Row) error {
	if err := s.begin(OpUpdatePoll); err != nil {
		return err
	}
	s.mu.Lock()
	row, ok := s.polls[id]
	if !ok {
		s.mu.Unlock()
		return remote.ErrNotFound
	}
	s.polls[id] = merge(row, fields)
	s.mu.Unlock()
	return s.publish(ctx, models.TablePolls, remote.OpUpdate, id)
}

func (s *Store) DeletePoll(ctx context.Context, id string) error {
	if err := s.begin(OpDeletePoll); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.polls, id)
	for key := range s.votes {
		if key.PollID == id {
			delete(s.votes, key)
		}
	}
	s.mu.Unlock()
	return s.publish(ctx, models.TablePolls, remote.OpDelete, id)
}

func (s *Store) UpsertVote(ctx context.Context, row models.Row) error {
	if err := s.begin(OpUpsertVote); err != nil {
		return err
	}
	pollID, _ := row["poll_id"].(string)
	voter, _ := row["voter"].(string)
	key := models.VoteKey{PollID: pollID, Voter: voter}
	s.mu.Lock()
	_, existed := s.votes[key]
	s.votes[key] = merge(s.votes[key], row)
	s.mu.Unlock()
	return s.publish(ctx, models.TableVotes, opFor(existed), pollID)
}

func (s *Store) UpdateVote(ctx context.Context, pollID, voter string, fields models.Row) error {
	if err := s.begin(OpUpdateVote); err != nil {
		return err
	}
	key := models.VoteKey{PollID: pollID, Voter: voter}
	s.mu.Lock()
	row, ok := s.votes[key]
	if !ok {
		s.mu.Unlock()
		return remote.ErrNotFound
	}
	s.votes[key] = merge(row, fields)
	s.mu.Unlock()
	return s.publish(ctx, models.TableVotes, remote.OpUpdate, pollID)
}

func (s *Store) UpdateUser(ctx context.Context, wallet string, fields models.Row) error {
	if err := s.begin(OpUpdateUser); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row := merge(s.users[wallet], fields)
	row["wallet"] = wallet
	s.users[wallet] = row
	return nil
}

func (s *Store) Subscribe(tables []string, onChange func(remote.Change)) (func(), error) {
	return s.Feed.Subscribe(tables, onChange)
}

func (s *Store) publish(ctx context.Context, table, op, id string) error {
	return s.Feed.Publish(ctx, remote.Change{Table: table, Op: op, ID: id})
}

func opFor(existed bool) string {
	if existed {
		return remote.OpUpdate
	}
	return remote.OpInsert
}

func merge(base, fields models.Row) models.Row {
	out := make(models.Row, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
