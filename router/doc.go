// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the coinpoll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Deps{Executor: exec, Cache: c, ...})

# Endpoints

Health:

	GET /health

Reads (served from the cache):

	GET /polls             - List polls (?status, ?category, ?creator)
	GET /polls/{id}        - Poll with the session's vote
	GET /users/{wallet}    - Account and leaderboard stats
	GET /notifications     - Recent notifications (?limit)

Poll lifecycle (requires X-Wallet-Address of the connected session):

	POST   /polls             - Create poll
	PATCH  /polls/{id}        - Edit poll
	DELETE /polls/{id}        - Delete poll and refund stakes
	POST   /polls/{id}/settle - Settle poll

Voting (requires X-Wallet-Address):

	POST /polls/{id}/votes - Buy coins on an option
	POST /polls/{id}/claim - Claim winnings

Session:

	POST /session/connect    - Connect a wallet
	POST /session/disconnect - Disconnect
	POST /sync               - Reconcile now (?force=true skips the cooldown)
*/
package router
