// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the coinpoll API server.

coinpoll is a prediction-poll service: creators stake SOL to open a poll,
voters buy coins on options, and when the poll settles the winning
option's holders split the pool. Reads are served from an in-memory cache
that writes update optimistically and a background scheduler reconciles
against the database.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=coinpoll.db ADMIN_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is loaded first.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (--redis): Realtime change feed over redis pub/sub
  - LEDGER_REDIS_URL (--ledger-redis): Settlement ledger
  - SYNC_INTERVAL, SYNC_COOLDOWN, TOMBSTONE_TTL, DEBOUNCE: Sync timings
  - MAX_COINS_PER_POLL (--max-coins): Coin cap per voter (default: 100)
  - LOG_FORMAT (--log-format): text or json

# Architecture

  - handlers, router, middleware: HTTP surface
  - executor: Optimistic operations with rollback
  - cache, tracker: Local state and mutation generations
  - syncer: Reconciliation scheduler
  - remote, remote/sqlstore, realtime: Persistence and change feeds
  - ledger: Optional balance ledger
  - session, notify, errclass, auth, models, db, cliparse: Supporting pieces

See package documentation for each component.
*/
package main
