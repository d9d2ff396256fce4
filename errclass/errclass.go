// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package errclass

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jpillora/backoff"
)

// Kind is a coarse failure category used for user-facing messages and
// retry decisions.
type Kind string

// Error kinds
const (
	WalletRejection     Kind = "wallet-rejection"
	InsufficientBalance Kind = "insufficient-balance"
	Timeout             Kind = "timeout"
	Network             Kind = "network"
	LedgerError         Kind = "ledger-error"
	Unknown             Kind = "unknown"
)

// Failures come from drivers, redis, the ledger, and HTTP clients with no
// shared error types, so classification matches on message text. Order
// matters: the first matching rule wins.
var rules = []struct {
	kind    Kind
	needles []string
}{
	{WalletRejection, []string{"user rejected", "rejected the request", "declined", "wallet rejected"}},
	{InsufficientBalance, []string{"insufficient balance", "insufficient funds", "insufficient lamports"}},
	{Timeout, []string{"timeout", "timed out", "deadline exceeded", "blockhash not found", "block height exceeded", "expired"}},
	{Network, []string{"connection refused", "connection reset", "no such host", "network", "broken pipe", "eof", "unreachable", "fetch failed"}},
	{LedgerError, []string{"ledger", "transaction simulation failed", "instruction error", "program error"}},
}

// Classify maps err to a Kind. A nil error is Unknown.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(msg, needle) {
				return r.kind
			}
		}
	}
	return Unknown
}

// Message returns a short human-readable reason for kind.
func Message(kind Kind) string {
	switch kind {
	case WalletRejection:
		return "The request was rejected in the wallet."
	case InsufficientBalance:
		return "Insufficient balance for this operation."
	case Timeout:
		return "The request timed out. Please try again."
	case Network:
		return "Network error. Check your connection and try again."
	case LedgerError:
		return "The ledger rejected the operation."
	default:
		return "Something went wrong."
	}
}

// Retryable reports whether an automatic retry may succeed.
func Retryable(kind Kind) bool {
	return kind == Timeout || kind == Network
}

// RetryPolicy bounds Retry.
type RetryPolicy struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
}

// DefaultRetry is used by Retry.
var DefaultRetry = RetryPolicy{Attempts: 4, Min: 200 * time.Millisecond, Max: 5 * time.Second}

// Retry calls fn until it succeeds, fails with a non-retryable kind, the
// attempts run out, or ctx is done. It returns the last error.
func Retry(ctx context.Context, fn func(context.Context) error) error {
	return DefaultRetry.Do(ctx, fn)
}

func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: 2, Jitter: true}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		kind := Classify(err)
		if !Retryable(kind) || i == attempts-1 {
			return err
		}

		wait := b.Duration()
		slog.Warn("retrying after transient error", "kind", kind, "attempt", i+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
	return err
}
