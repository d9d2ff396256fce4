// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// Supported database dialects
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DriverName maps a dialect to its database/sql driver name.
func DriverName(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database type %q", dialect)
	}
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// On postgres it also installs the change-notification triggers.
func CreateSchema(db *sql.DB, dialect string) error {
	if _, err := DriverName(dialect); err != nil {
		return err
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if dialect == DialectPostgres {
		if _, err := db.Exec(notifyTriggers); err != nil {
			return fmt.Errorf("failed to create notify triggers: %w", err)
		}
	}

	return nil
}

// Amounts are BIGINT lamports. Arrays are JSON text and timestamps are
// RFC 3339 text so both dialects share one schema.
const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    seq BIGINT NOT NULL DEFAULT 0,
    creator TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    options TEXT NOT NULL DEFAULT '[]',
    vote_counts TEXT NOT NULL DEFAULT '[]',
    unit_price_lamports BIGINT NOT NULL DEFAULT 0,
    end_time TEXT NOT NULL DEFAULT '',
    total_pool_lamports BIGINT NOT NULL DEFAULT 0,
    creator_investment_lamports BIGINT NOT NULL DEFAULT 0,
    platform_fee_lamports BIGINT NOT NULL DEFAULT 0,
    creator_reward_lamports BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'settled')),
    winning_option BIGINT NOT NULL DEFAULT -1,
    total_voters BIGINT NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_polls_creator ON polls(creator);
CREATE INDEX IF NOT EXISTS idx_polls_status ON polls(status);

-- Votes: one row per (poll, voter)
CREATE TABLE IF NOT EXISTS votes (
    poll_id TEXT NOT NULL,
    voter TEXT NOT NULL,
    votes_per_option TEXT NOT NULL DEFAULT '[]',
    total_staked_lamports BIGINT NOT NULL DEFAULT 0,
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    voted_at TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (poll_id, voter)
);

CREATE INDEX IF NOT EXISTS idx_votes_voter ON votes(voter);

-- Users
CREATE TABLE IF NOT EXISTS users (
    wallet TEXT PRIMARY KEY,
    balance_lamports BIGINT NOT NULL DEFAULT 0,
    total_votes_cast BIGINT NOT NULL DEFAULT 0,
    total_polls_voted BIGINT NOT NULL DEFAULT 0,
    total_polls_won BIGINT NOT NULL DEFAULT 0,
    total_spent_lamports BIGINT NOT NULL DEFAULT 0,
    total_winnings_lamports BIGINT NOT NULL DEFAULT 0,
    creator_earnings_lamports BIGINT NOT NULL DEFAULT 0,
    polls_created BIGINT NOT NULL DEFAULT 0,
    weekly_votes_cast BIGINT NOT NULL DEFAULT 0,
    weekly_polls_voted BIGINT NOT NULL DEFAULT 0,
    weekly_polls_won BIGINT NOT NULL DEFAULT 0,
    weekly_spent_lamports BIGINT NOT NULL DEFAULT 0,
    weekly_winnings_lamports BIGINT NOT NULL DEFAULT 0,
    monthly_votes_cast BIGINT NOT NULL DEFAULT 0,
    monthly_polls_voted BIGINT NOT NULL DEFAULT 0,
    monthly_polls_won BIGINT NOT NULL DEFAULT 0,
    monthly_spent_lamports BIGINT NOT NULL DEFAULT 0,
    monthly_winnings_lamports BIGINT NOT NULL DEFAULT 0,
    weekly_reset_at TEXT NOT NULL DEFAULT '',
    monthly_reset_at TEXT NOT NULL DEFAULT ''
);

-- Comments (only observed through change notifications)
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL,
    author TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_comments_poll_id ON comments(poll_id);
`

// notifyTriggers publishes {"table","op","id"} on coinpoll_changes for every
// row change. The trigger argument names the column holding the poll id.
const notifyTriggers = `
CREATE OR REPLACE FUNCTION coinpoll_notify() RETURNS trigger AS $$
DECLARE
    rec RECORD;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;
    PERFORM pg_notify('coinpoll_changes', json_build_object(
        'table', TG_TABLE_NAME,
        'op', TG_OP,
        'id', to_jsonb(rec) ->> TG_ARGV[0]
    )::text);
    RETURN rec;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS polls_notify ON polls;
CREATE TRIGGER polls_notify AFTER INSERT OR UPDATE OR DELETE ON polls
    FOR EACH ROW EXECUTE FUNCTION coinpoll_notify('id');

DROP TRIGGER IF EXISTS votes_notify ON votes;
CREATE TRIGGER votes_notify AFTER INSERT OR UPDATE OR DELETE ON votes
    FOR EACH ROW EXECUTE FUNCTION coinpoll_notify('poll_id');

DROP TRIGGER IF EXISTS comments_notify ON comments;
CREATE TRIGGER comments_notify AFTER INSERT OR UPDATE OR DELETE ON comments
    FOR EACH ROW EXECUTE FUNCTION coinpoll_notify('poll_id');
`
