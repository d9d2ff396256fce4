// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestNull(t *testing.T) {
	var a Adapter = Null{}
	ctx := context.Background()

	if a.Active() {
		t.Error("Null ledger should be inactive")
	}

	first, err := a.Submit(ctx, KindCastVote, Params{PollID: "p1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("confirmation %q is not a uuid: %v", first, err)
	}
	second, _ := a.Submit(ctx, KindCastVote, Params{PollID: "p1"})
	if first == second {
		t.Error("confirmations should be unique")
	}

	bal, err := a.Balance(ctx, "alice")
	if err != nil || bal != 0 {
		t.Errorf("Balance() = %d, %v; want 0, nil", bal, err)
	}
}

func setupRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("bad TEST_REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb)
}

func TestRedisSubmitAndBalance(t *testing.T) {
	l := setupRedis(t)
	ctx := context.Background()

	wallet := "ledger-test-" + uuid.NewString()
	other := "ledger-test-" + uuid.NewString()
	t.Cleanup(func() {
		l.rdb.Del(context.Background(), balancePrefix+wallet, balancePrefix+other)
	})

	if _, err := l.Fund(ctx, wallet, 100); err != nil {
		t.Fatalf("Fund() error = %v", err)
	}

	id, err := l.Submit(ctx, KindCastVote, Params{
		PollID: "p1",
		Actor:  wallet,
		Deltas: map[string]int64{wallet: -30, other: 30},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id == "" {
		t.Error("expected a stream entry id")
	}

	for w, want := range map[string]int64{wallet: 70, other: 30} {
		got, err := l.Balance(ctx, w)
		if err != nil {
			t.Fatalf("Balance() error = %v", err)
		}
		if got != want {
			t.Errorf("Balance(%s) = %d, want %d", w, got, want)
		}
	}

	_, err = l.Submit(ctx, KindCastVote, Params{Deltas: map[string]int64{wallet: -71}})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("overdraft error = %v, want ErrRejected", err)
	}
	if got, _ := l.Balance(ctx, wallet); got != 70 {
		t.Errorf("rejected submit changed balance to %d", got)
	}
}
