// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, row, request, and response types.

# Domain Types

  - Poll: options, index-aligned vote counts, pool and fee amounts, lifecycle
  - Vote: one record per (poll, voter) with a per-option coin vector
  - UserAccount: balance, lifetime counters, weekly and monthly windows
  - Notification: user-facing event emitted by operations

All amounts are int64 lamports. FormatSOL renders them for messages.

# Rows

Persisted rows are flat snake_case maps (Row). The conversions

	row := models.PollToRow(poll)
	poll, err := models.PollFromRow(row)

round-trip every field exactly. On read, numeric strings are coerced to
numbers, JSON-encoded arrays are decoded, and missing values become empty
strings, empty slices, or zero.

# Rolling Windows

UserAccount.RefreshWindows is lazy: expired weekly or monthly counters are
zeroed only when an operation touches the account.

# Constants

Status values:

	StatusActive  = "active"
	StatusSettled = "settled"

Winning option sentinel:

	NoWinner = -1
*/
package models
