// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Kind names the operation being settled on the ledger.
type Kind string

// Operation kinds
const (
	KindCreatePoll Kind = "create_poll"
	KindEditPoll   Kind = "edit_poll"
	KindDeletePoll Kind = "delete_poll"
	KindCastVote   Kind = "cast_vote"
	KindSettlePoll Kind = "settle_poll"
	KindClaim      Kind = "claim_reward"
)

// ErrRejected is wrapped by adapters when the ledger refuses an operation.
var ErrRejected = errors.New("ledger rejected operation")

// Params describes one ledger operation. Deltas are signed balance changes
// per wallet that must be applied atomically with the submission.
type Params struct {
	PollID string
	Actor  string
	Deltas map[string]int64
	Memo   string
}

// Adapter is the external settlement ledger. It is chosen once at startup;
// the inactive implementation is Null.
type Adapter interface {
	// Active reports whether operations are settled on a ledger at all.
	Active() bool
	// Submit settles an operation and returns its confirmation id.
	Submit(ctx context.Context, kind Kind, params Params) (string, error)
	// Balance returns the authoritative balance for wallet.
	Balance(ctx context.Context, wallet string) (int64, error)
}

// Null is the inactive ledger. Every call succeeds without effect; Submit
// still hands back a unique confirmation id so callers can log it.
type Null struct{}

func (Null) Active() bool { return false }

func (Null) Submit(context.Context, Kind, Params) (string, error) {
	return uuid.NewString(), nil
}

func (Null) Balance(context.Context, string) (int64, error) { return 0, nil }
