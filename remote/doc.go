// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package remote defines the boundary to the authoritative persistence
// service: bulk reads, row writes keyed by snake_case column names, and a
// realtime change subscription. See remote/sqlstore for the database/sql
// implementation and realtime for the change feeds.
package remote
