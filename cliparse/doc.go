// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

LoadEnv reads a .env file if one exists, then ParseFlags returns a Config:

	cliparse.LoadEnv()
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Flags and Environment Variables

Each flag falls back to an environment variable, then to a default:

	-p              PORT                (3318)
	-d              DATABASE_URL        (required)
	-t              DATABASE_TYPE       (sqlite; or postgres)
	-admin-salt     ADMIN_KEY_SALT      (required)
	-redis          REDIS_URL           (realtime over redis pub/sub)
	-ledger-redis   LEDGER_REDIS_URL    (enables the redis ledger)
	-sync-interval  SYNC_INTERVAL       (30s)
	-sync-cooldown  SYNC_COOLDOWN       (10s)
	-tombstone-ttl  TOMBSTONE_TTL       (60s)
	-debounce       DEBOUNCE            (500ms)
	-max-coins      MAX_COINS_PER_POLL  (100)
	-log-format     LOG_FORMAT          (text; or json)

CLI flags take precedence over environment variables, and variables
already in the environment take precedence over .env.
*/
package cliparse
