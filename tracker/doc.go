// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tracker holds the mutation counters shared by the operation executor
and the sync scheduler.

# Generation

Every successful optimistic apply calls Bump. A reconciliation captures
Generation before fetching and only commits if it is unchanged afterwards:

	gen := t.Generation()
	snapshot := fetch()
	if t.Generation() == gen {
		commit(snapshot)
	}

# Cooldown

SinceLastMutation lets routine reconciliation back off while a very recent
local write is still landing remotely.

# Tombstones

Deleted poll ids are tombstoned for a fixed TTL so a lagging read cannot
bring them back. After the TTL the id may reappear.

	t.Tombstone(pollID)
	t.IsTombstoned(pollID) // true until TTL elapses
*/
package tracker
