// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, client_ip, wallet) and completion
(status, duration_ms).

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PATCH, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Wallet-Address, X-Admin-Key.

# Identity

The caller names its wallet in X-Wallet-Address. Mutating routes are
wrapped with RequireSession, which only lets the request through when the
header matches the connected session:

	mux.HandleFunc("POST /polls", middleware.RequireSession(sess, h.CreatePoll))

An administrative override is claimed with X-Admin-Key, the HMAC of the
wallet under ADMIN_KEY_SALT:

	admin := middleware.IsAdmin(r, cfg.AdminKeySalt)

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
