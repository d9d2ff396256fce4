// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	balancePrefix = "coinpoll:ledger:balance:"
	streamName    = "coinpoll:ledger"
)

// Redis is a ledger kept in redis: an append-only stream of operations and
// one balance counter per wallet. A submission that would take any balance
// below zero is rejected before anything is written.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Active() bool { return true }

// Submit checks debits against current balances, then appends the entry to
// the stream and applies every delta in one MULTI/EXEC. The confirmation id
// is the stream entry id.
func (r *Redis) Submit(ctx context.Context, kind Kind, params Params) (string, error) {
	wallets := make([]string, 0, len(params.Deltas))
	for w := range params.Deltas {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	deltas, err := json.Marshal(params.Deltas)
	if err != nil {
		return "", fmt.Errorf("ledger submit: %w", err)
	}

	var confirmation string
	txf := func(tx *redis.Tx) error {
		for _, w := range wallets {
			if params.Deltas[w] >= 0 {
				continue
			}
			bal, err := balanceOf(ctx, tx, w)
			if err != nil {
				return err
			}
			if bal+params.Deltas[w] < 0 {
				return fmt.Errorf("%w: insufficient balance for %s", ErrRejected, w)
			}
		}

		var add *redis.StringCmd
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			add = pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: streamName,
				Values: map[string]any{
					"kind":    string(kind),
					"poll_id": params.PollID,
					"actor":   params.Actor,
					"deltas":  string(deltas),
					"memo":    params.Memo,
				},
			})
			for _, w := range wallets {
				pipe.IncrBy(ctx, balancePrefix+w, params.Deltas[w])
			}
			return nil
		})
		if err != nil {
			return err
		}
		confirmation = add.Val()
		return nil
	}

	keys := make([]string, len(wallets))
	for i, w := range wallets {
		keys[i] = balancePrefix + w
	}
	// Retry when a watched balance changed underneath us
	for attempt := 0; attempt < 3; attempt++ {
		err = r.rdb.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("ledger submit %s: %w", kind, err)
	}
	return confirmation, nil
}

func (r *Redis) Balance(ctx context.Context, wallet string) (int64, error) {
	bal, err := balanceOf(ctx, r.rdb, wallet)
	if err != nil {
		return 0, fmt.Errorf("ledger balance %s: %w", wallet, err)
	}
	return bal, nil
}

// Fund credits wallet outside any poll operation, e.g. an airdrop.
func (r *Redis) Fund(ctx context.Context, wallet string, amount int64) (string, error) {
	return r.Submit(ctx, "fund", Params{Actor: wallet, Deltas: map[string]int64{wallet: amount}})
}

func balanceOf(ctx context.Context, c redis.Cmdable, wallet string) (int64, error) {
	raw, err := c.Get(ctx, balancePrefix+wallet).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}
