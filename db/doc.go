// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables for a dialect:

	if err := db.CreateSchema(conn, db.DialectSQLite); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

The schema includes:

  - polls: Poll metadata, option list, vote counts, pool amounts, lifecycle
  - votes: One row per (poll_id, voter) with the per-option coin vector
  - users: Balances plus lifetime and rolling-window counters
  - comments: Poll comments, watched through change notifications

Column names match models.Row keys one-to-one.

# Change Notifications

On postgres, CreateSchema installs AFTER triggers on polls, votes, and
comments that NOTIFY the coinpoll_changes channel consumed by
realtime.Postgres.

# Indexes

Performance indexes on:

  - polls.creator
  - polls.status
  - votes.voter
  - comments.poll_id
*/
package db
