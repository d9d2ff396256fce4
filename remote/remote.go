// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package remote

import (
	"context"
	"errors"

	"github.com/danielhkuo/coinpoll/models"
)

// ErrNotFound is returned by updates that match no row.
var ErrNotFound = errors.New("row not found")

// Change operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Change is a realtime notification that a row in Table changed.
// ID is the poll id the row belongs to.
type Change struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// VoteFilter narrows FetchVotes. Empty fields match everything.
type VoteFilter struct {
	PollID string
	Voter  string
}

// Store is the authoritative persistence service.
type Store interface {
	FetchPolls(ctx context.Context) ([]models.Poll, error)
	FetchVotes(ctx context.Context, filter VoteFilter) ([]models.Vote, error)
	FetchUsers(ctx context.Context) ([]models.UserAccount, error)

	UpsertPoll(ctx context.Context, row models.Row) error
	UpdatePoll(ctx context.Context, id string, fields models.Row) error
	DeletePoll(ctx context.Context, id string) error
	UpsertVote(ctx context.Context, row models.Row) error
	UpdateVote(ctx context.Context, pollID, voter string, fields models.Row) error
	UpdateUser(ctx context.Context, wallet string, fields models.Row) error

	// Subscribe delivers changes on the named tables to onChange until the
	// returned function is called.
	Subscribe(tables []string, onChange func(Change)) (unsubscribe func(), err error)
}

// Feed is a realtime change channel a Store can publish to and subscribe on.
type Feed interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(tables []string, onChange func(Change)) (unsubscribe func(), err error)
	Close() error
}

// Matches reports whether change belongs to one of tables. An empty list
// matches every table.
func Matches(tables []string, change Change) bool {
	if len(tables) == 0 {
		return true
	}
	for _, t := range tables {
		if t == change.Table {
			return true
		}
	}
	return false
}
