// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the coinpoll API.

# Handler Types

Each handler is a thin struct over the executor, the cache or the scheduler:

  - PollHandler: Poll lifecycle (create, edit, delete, settle)
  - VotingHandler: Coin purchases and reward claims
  - ResultsHandler: Cached reads (polls, accounts, notifications)
  - SessionHandler: Wallet connect/disconnect and manual sync

	pollHandler := handlers.NewPollHandler(exec, cfg)

# Identity

Mutating routes act as the connected session wallet. The caller repeats the
wallet in the X-Wallet-Address header; see middleware.RequireSession.
Administrative overrides (deleting a poll with votes, naming a settlement
winner) also need X-Admin-Key.

# Poll Lifecycle

Polls progress through two states: active → settled

	POST   /polls              → CreatePoll (investment minus fee and reward seeds the pool)
	PATCH  /polls/{id}         → EditPoll (creator, no votes yet)
	DELETE /polls/{id}         → DeletePoll (refunds stakes)
	POST   /polls/{id}/settle  → SettlePoll (most coins wins)

# Voting Flow

	POST /polls/{id}/votes → CastVote (buys coins on one option)
	POST /polls/{id}/claim → ClaimReward (winner's pro-rata share)

# Errors

Executor errors map onto status codes in errors.go. Validation failures are
400, state conflicts 409, and store failures 502 or 504 depending on how
the failure was classified.
*/
package handlers
