// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/coinpoll/errclass"
	"github.com/danielhkuo/coinpoll/executor"
	"github.com/danielhkuo/coinpoll/middleware"
)

// statusFor maps executor precondition errors to HTTP status codes
var statusFor = []struct {
	err    error
	status int
}{
	{executor.ErrNoSession, http.StatusUnauthorized},
	{executor.ErrNotAuthorized, http.StatusForbidden},
	{executor.ErrNotFound, http.StatusNotFound},
	{executor.ErrInvalidPoll, http.StatusBadRequest},
	{executor.ErrOptionCount, http.StatusBadRequest},
	{executor.ErrInvalidOption, http.StatusBadRequest},
	{executor.ErrInvalidCoins, http.StatusBadRequest},
	{executor.ErrCoinCap, http.StatusBadRequest},
	{executor.ErrCreatorVote, http.StatusBadRequest},
	{executor.ErrInsufficientBalance, http.StatusConflict},
	{executor.ErrPollNotActive, http.StatusConflict},
	{executor.ErrPollEnded, http.StatusConflict},
	{executor.ErrHasVotes, http.StatusConflict},
}

// writeOpError writes the response for an error returned by the executor.
func writeOpError(w http.ResponseWriter, op string, err error) {
	var opErr *executor.OpError
	if errors.As(err, &opErr) {
		slog.Warn("operation failed", "op", op, "kind", opErr.Kind, "error", err)
		middleware.ErrorResponse(w, opStatus(opErr.Kind), opErr.Message())
		return
	}

	for _, s := range statusFor {
		if errors.Is(err, s.err) {
			middleware.ErrorResponse(w, s.status, err.Error())
			return
		}
	}

	slog.Error("unexpected operation error", "op", op, "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
}

func opStatus(kind errclass.Kind) int {
	switch kind {
	case errclass.Timeout:
		return http.StatusGatewayTimeout
	case errclass.InsufficientBalance, errclass.WalletRejection:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
