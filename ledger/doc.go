// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger is the optional settlement ledger seam.

An Adapter is picked once at startup. With no ledger configured the
executor receives Null and runs purely against the remote store. With
LEDGER_REDIS_URL set it receives a Redis ledger, which appends every
operation to the coinpoll:ledger stream and keeps per-wallet balance
counters that the sync scheduler treats as authoritative.
*/
package ledger
