// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache is the local optimistic view of polls, votes, and accounts.

# Optimistic Apply

Operations run their precondition checks and build a Command inside
Execute, which holds the write lock:

	cmd, err := c.Execute(func(v cache.View) (*cache.Command, error) {
		poll, ok := v.Poll(id)
		if !ok {
			return nil, ErrNotFound
		}
		cmd := cache.NewCommand(v, "settle_poll")
		cmd.PutPoll(settled)
		return cmd, nil
	})

Each Put or Delete captures the prior value at record time, so

	c.Rollback(cmd)

restores exactly what the command replaced. Once the change is persisted
the caller confirms it instead:

	c.Confirm(cmd)

# Generation-Gated Commit

Reconciliation captures the tracker generation before fetching, then calls
CommitIf. The commit is dropped if any Execute, Confirm or Rollback bumped
the generation in the meantime, or while a command is still pending, so a
stale read never overwrites a newer local mutation.
*/
package cache
