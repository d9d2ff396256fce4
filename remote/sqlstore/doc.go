// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sqlstore implements remote.Store over database/sql.

Two dialects share one schema (see package db):

	s, err := sqlstore.Open(db.DialectSQLite, "file:coinpoll.db")
	s, err := sqlstore.Open(db.DialectPostgres, "postgres://...",
		sqlstore.WithFeed(pgFeed, false))

Row keys are validated against the model column lists before they are
placed in SQL. Slices are stored as JSON text and times as RFC 3339 text.

UpdateUser upserts, since an account row is created on first activity.
DeletePoll removes the poll and its votes in one transaction.
*/
package sqlstore
