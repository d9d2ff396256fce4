// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package realtime provides change feeds for remote.Store subscriptions.

# Feeds

  - Local: in-process fan-out, used with sqlite and in tests
  - Postgres: LISTEN/NOTIFY on channel coinpoll_changes via lib/pq
  - Redis: pub/sub on channel coinpoll:changes via go-redis

All feeds carry the same JSON payload:

	{"table":"votes","op":"INSERT","id":"<poll id>"}

Delivery is best effort. A missed notification only delays the local view
until the next periodic reconciliation.
*/
package realtime
