// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package syncer reconciles the local cache with the remote store.

A Scheduler reconciles once at Start, then on a fixed interval, after every
session change and after debounced realtime events:

	sched := syncer.New(c, store, syncer.DefaultConfig(), syncer.WithSession(sess))
	if err := sched.Start(ctx); err != nil { ... }
	defer sched.Stop()

Each pass captures the cache generation before fetching and commits only
if no local write happened while the fetch was in flight. Non-mandatory
passes are skipped during the cooldown after a local write.
*/
package syncer
